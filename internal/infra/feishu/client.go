package feishu

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	lark "github.com/larksuite/oapi-sdk-go/v3"
	larkcore "github.com/larksuite/oapi-sdk-go/v3/core"
	"github.com/larksuite/oapi-sdk-go/v3/event/dispatcher"
	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	larkws "github.com/larksuite/oapi-sdk-go/v3/ws"
	"go.uber.org/zap"
)

// Message represents a received Feishu message
type Message struct {
	ChatID     string
	MsgID      string
	MsgType    string // text, post, image, ...
	ChatType   string // p2p, group
	RawContent string // Content JSON as delivered
	Content    string // Plain text, mentions stripped
	Elements   []string
	SenderID   string
	SenderType string // user, app
	CreateTime int64  // Milliseconds since epoch
}

// Recall represents a recalled message
type Recall struct {
	ChatID string
	MsgID  string
}

// MessageHandler is the callback for received messages
type MessageHandler func(msg *Message)

// RecallHandler is the callback for recalled messages
type RecallHandler func(r *Recall)

// Client is the Feishu API client
type Client struct {
	appID     string
	appSecret string
	larkCli   *lark.Client
	wsCli     *larkws.Client
	onMessage MessageHandler
	onRecall  RecallHandler
	logger    *zap.Logger
	cancel    context.CancelFunc
}

// NewClient creates a new Feishu client
func NewClient(appID, appSecret string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("feishu")
	return &Client{
		appID:     appID,
		appSecret: appSecret,
		larkCli:   lark.NewClient(appID, appSecret, lark.WithLogger(newLarkZapLogger(logger))),
		logger:    logger,
	}
}

// OnMessage sets the message handler
func (c *Client) OnMessage(handler MessageHandler) {
	c.onMessage = handler
}

// OnRecall sets the recall handler
func (c *Client) OnRecall(handler RecallHandler) {
	c.onRecall = handler
}

// Start connects to Feishu via WebSocket and blocks until ctx is done
func (c *Client) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)

	// Handlers must return quickly so the SDK can ACK, otherwise Feishu redelivers
	eventHandler := dispatcher.NewEventDispatcher("", "").
		OnP2MessageReceiveV1(func(_ context.Context, event *larkim.P2MessageReceiveV1) error {
			go c.handleMessage(event)
			return nil
		}).
		OnP2MessageRecalledV1(func(_ context.Context, event *larkim.P2MessageRecalledV1) error {
			go c.handleRecall(event)
			return nil
		})

	c.wsCli = larkws.NewClient(c.appID, c.appSecret,
		larkws.WithEventHandler(eventHandler),
		larkws.WithLogger(newLarkZapLogger(c.logger)),
		larkws.WithLogLevel(larkcore.LogLevelInfo),
	)

	c.logger.Info("starting websocket connection")
	return c.wsCli.Start(ctx)
}

// Stop disconnects from Feishu
func (c *Client) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

func (c *Client) handleMessage(event *larkim.P2MessageReceiveV1) {
	if event == nil || event.Event == nil || event.Event.Message == nil {
		return
	}
	rawMsg := event.Event.Message

	msg := &Message{
		ChatID:     deref(rawMsg.ChatId),
		MsgID:      deref(rawMsg.MessageId),
		MsgType:    deref(rawMsg.MessageType),
		ChatType:   deref(rawMsg.ChatType),
		RawContent: deref(rawMsg.Content),
	}
	if ts, err := strconv.ParseInt(deref(rawMsg.CreateTime), 10, 64); err == nil {
		msg.CreateTime = ts
	}
	if sender := event.Event.Sender; sender != nil {
		msg.SenderType = deref(sender.SenderType)
		if sender.SenderId != nil {
			msg.SenderID = deref(sender.SenderId.OpenId)
		}
	}

	var mentionKeys []string
	for _, m := range rawMsg.Mentions {
		if m != nil && m.Key != nil {
			mentionKeys = append(mentionKeys, *m.Key)
		}
	}

	msg.Content, msg.Elements = ParseContent(msg.MsgType, msg.RawContent)
	msg.Content = stripMentions(msg.Content, mentionKeys)

	c.logger.Debug("message received",
		zap.String("chat_id", msg.ChatID),
		zap.String("msg_id", msg.MsgID),
		zap.String("msg_type", msg.MsgType),
		zap.String("preview", truncate(msg.Content, 50)),
	)

	if c.onMessage != nil {
		c.onMessage(msg)
	}
}

func (c *Client) handleRecall(event *larkim.P2MessageRecalledV1) {
	if event == nil || event.Event == nil {
		return
	}
	r := &Recall{
		ChatID: deref(event.Event.ChatId),
		MsgID:  deref(event.Event.MessageId),
	}
	if r.MsgID == "" {
		return
	}

	c.logger.Debug("message recalled", zap.String("chat_id", r.ChatID), zap.String("msg_id", r.MsgID))

	if c.onRecall != nil {
		c.onRecall(r)
	}
}

// ParseContent extracts plain text and element tags from message content JSON.
// Non-text messages yield empty text.
func ParseContent(msgType, content string) (string, []string) {
	switch msgType {
	case "text":
		var parsed struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			return "", nil
		}
		return parsed.Text, []string{"text"}
	case "post":
		return parsePostContent(content)
	default:
		return "", []string{msgType}
	}
}

// parsePostContent flattens a rich text message, one output line per paragraph
func parsePostContent(content string) (string, []string) {
	type element struct {
		Tag  string `json:"tag"`
		Text string `json:"text,omitempty"`
		Href string `json:"href,omitempty"`
	}
	var parsed struct {
		Title   string      `json:"title"`
		Content [][]element `json:"content"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", nil
	}

	var lines []string
	var tags []string
	seen := make(map[string]bool)

	if parsed.Title != "" {
		lines = append(lines, parsed.Title)
	}
	for _, paragraph := range parsed.Content {
		var b strings.Builder
		for _, elem := range paragraph {
			if !seen[elem.Tag] {
				seen[elem.Tag] = true
				tags = append(tags, elem.Tag)
			}
			switch elem.Tag {
			case "text", "a":
				b.WriteString(elem.Text)
				if elem.Tag == "a" && elem.Href != "" && elem.Href != elem.Text {
					b.WriteString(" " + elem.Href)
				}
			}
		}
		if b.Len() > 0 {
			lines = append(lines, b.String())
		}
	}
	return strings.Join(lines, "\n"), tags
}

// stripMentions removes mention placeholders such as @_user_1
func stripMentions(text string, keys []string) string {
	for _, key := range keys {
		text = strings.ReplaceAll(text, key, "")
	}
	return strings.TrimSpace(text)
}

// SendText sends a text message and returns the created message id.
// isGroup selects chat_id, otherwise the receiver is an open_id.
func (c *Client) SendText(ctx context.Context, receiveID string, isGroup bool, text string) (string, error) {
	contentJSON, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}

	receiveIDType := larkim.ReceiveIdTypeOpenId
	if isGroup {
		receiveIDType = larkim.ReceiveIdTypeChatId
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(receiveIDType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(receiveID).
			MsgType(larkim.MsgTypeText).
			Content(string(contentJSON)).
			Uuid(uuid.NewString()).
			Build()).
		Build()

	resp, err := c.larkCli.Im.Message.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("send message failed: %w", err)
	}
	if !resp.Success() {
		return "", fmt.Errorf("send message error: code=%d msg=%s", resp.Code, resp.Msg)
	}
	if resp.Data == nil || resp.Data.MessageId == nil {
		return "", fmt.Errorf("send message: response carries no message id")
	}

	c.logger.Debug("message sent", zap.String("receive_id", receiveID), zap.String("msg_id", *resp.Data.MessageId))
	return *resp.Data.MessageId, nil
}

// DeleteMessage recalls a message previously sent by the bot
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	req := larkim.NewDeleteMessageReqBuilder().
		MessageId(messageID).
		Build()

	resp, err := c.larkCli.Im.Message.Delete(ctx, req)
	if err != nil {
		return fmt.Errorf("delete message failed: %w", err)
	}
	if !resp.Success() {
		return fmt.Errorf("delete message error: code=%d msg=%s", resp.Code, resp.Msg)
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
