package domain

import "time"

// ChatType represents the chat type
type ChatType string

const (
	ChatTypeP2P   ChatType = "p2p"
	ChatTypeGroup ChatType = "group"
)

// InboundMessage represents a message received from a monitored chat
type InboundMessage struct {
	ID         string
	ChannelID  string
	ChatType   ChatType
	MsgType    string   // text, post, image, sticker, ...
	RawContent string   // Content JSON exactly as delivered
	Text       string   // Plain text with formatting and mentions stripped
	Elements   []string // Element tags found in rich content (text, at, img, ...)
	SenderID   string
	SenderType string // user, app
	CreateTime time.Time
}

// HasText reports whether the message carries any text content
func (m *InboundMessage) HasText() bool {
	for _, r := range m.Text {
		if r != ' ' && r != '\n' && r != '\t' && r != '\r' {
			return true
		}
	}
	return false
}

// IsFromApp checks if the message was sent by a bot application
func (m *InboundMessage) IsFromApp() bool {
	return m.SenderType == "app"
}

// RecallEvent represents the retraction of a previously delivered message
type RecallEvent struct {
	MessageID string
	ChannelID string
}

// Target identifies where an outbound message goes
type Target struct {
	ID      string
	IsGroup bool // chat_id when true, open_id otherwise
}

// ChannelTarget returns the group target for a chat id
func ChannelTarget(chatID string) Target {
	return Target{ID: chatID, IsGroup: true}
}

// MonitorTarget is a monitored channel (static configuration)
type MonitorTarget struct {
	ChannelID          string
	SendHelperMessages bool
}
