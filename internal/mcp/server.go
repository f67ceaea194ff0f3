package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/repo"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
)

// Server exposes the admission pipeline as MCP tools
type Server struct {
	mcp       *mcp.Server
	admission *usecase.AdmissionUsecase
	relay     *Client // nil when no running relay is configured
}

// NewServer creates the MCP server.
// The ledger and archive tools are only registered when relay is set.
func NewServer(admission *usecase.AdmissionUsecase, relay *Client, version string) *Server {
	s := &Server{
		mcp: mcp.NewServer(&mcp.Implementation{
			Name:    "reward-relay",
			Version: version,
		}, nil),
		admission: admission,
		relay:     relay,
	}
	s.registerTools()
	return s
}

// Run serves MCP over the transport until the client disconnects
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcp.Run(ctx, t)
}

// MCP exposes the underlying server, mainly for tests
func (s *Server) MCP() *mcp.Server {
	return s.mcp
}

// ParseInput is the input of parse_reward_message
type ParseInput struct {
	Text      string `json:"text" jsonschema:"Message text exactly as posted in the chat"`
	ChannelID string `json:"channel_id,omitempty" jsonschema:"Monitored chat id; omit to skip the channel check"`
}

// ParseOutput is the admission decision
type ParseOutput struct {
	Admitted bool            `json:"admitted"`
	Gate     string          `json:"gate"`
	RoomIDs  []string        `json:"room_ids,omitempty"`
	RoomID   string          `json:"room_id,omitempty"`
	DateTime string          `json:"date_time,omitempty"`
	Rewards  []domain.Reward `json:"rewards,omitempty"`
}

// LedgerInput is the input of list_forwarded_events
type LedgerInput struct{}

// LedgerOutput lists the live ledger
type LedgerOutput struct {
	Count   int           `json:"count"`
	Entries []LedgerEntry `json:"entries"`
}

// LedgerEntry is a forwarded event the relay can still retract
type LedgerEntry struct {
	SourceMessageID    string `json:"source_message_id"`
	ForwardedMessageID string `json:"forwarded_message_id"`
	HelperMessageID    string `json:"helper_message_id,omitempty"`
	RoomID             string `json:"room_id"`
	DateTime           string `json:"date_time"`
	CreatedAt          string `json:"created_at"`
}

// ArchiveInput is the input of recent_archived_events
type ArchiveInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Maximum number of events (default 50)"`
}

// ArchiveOutput lists archived events, newest first
type ArchiveOutput struct {
	Count  int            `json:"count"`
	Events []ArchiveEntry `json:"events"`
}

// ArchiveEntry is one archived forward
type ArchiveEntry struct {
	SourceMessageID string          `json:"source_message_id"`
	RoomID          string          `json:"room_id"`
	DateTime        string          `json:"date_time"`
	Rewards         []domain.Reward `json:"rewards"`
	VideoCount      int64           `json:"video_count"`
	CreatedAt       string          `json:"created_at"`
	RetractedAt     string          `json:"retracted_at,omitempty"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "parse_reward_message",
		Description: "Run a chat message through the reward admission pipeline without forwarding it. Returns the gate that stopped it, or the room id, time and rewards when admitted.",
	}, s.handleParse)

	if s.relay == nil {
		return
	}

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "list_forwarded_events",
		Description: "List the events the running relay has forwarded and can still retract, oldest first.",
	}, s.handleLedger)

	mcp.AddTool(s.mcp, &mcp.Tool{
		Name:        "recent_archived_events",
		Description: "List recently archived forwards from the running relay, newest first.",
	}, s.handleArchive)
}

func (s *Server) handleParse(ctx context.Context, req *mcp.CallToolRequest, in ParseInput) (*mcp.CallToolResult, ParseOutput, error) {
	if in.Text == "" {
		return nil, ParseOutput{}, errors.New("text is required")
	}

	var d *usecase.Decision
	if in.ChannelID != "" {
		d = s.admission.Evaluate(&domain.InboundMessage{ChannelID: in.ChannelID, Text: in.Text})
	} else {
		d = s.admission.EvaluateText(in.Text)
	}

	out := ParseOutput{
		Admitted: d.Admitted(),
		Gate:     string(d.Gate),
		RoomIDs:  d.RoomIDs,
		RoomID:   d.RoomID,
	}
	summary := "rejected at gate " + out.Gate
	if d.Event != nil {
		out.DateTime = d.Event.DateTime
		out.Rewards = d.Event.Rewards
	}
	if out.Admitted {
		summary = fmt.Sprintf("admitted: room %s, %s", out.RoomID, d.Event.Summary())
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: summary}},
	}, out, nil
}

func (s *Server) handleLedger(ctx context.Context, req *mcp.CallToolRequest, _ LedgerInput) (*mcp.CallToolResult, LedgerOutput, error) {
	entries, err := s.relay.Ledger(ctx)
	if err != nil {
		return nil, LedgerOutput{}, err
	}
	out := LedgerOutput{Count: len(entries), Entries: make([]LedgerEntry, 0, len(entries))}
	for _, e := range entries {
		out.Entries = append(out.Entries, LedgerEntry{
			SourceMessageID:    e.SourceMessageID,
			ForwardedMessageID: e.ForwardedMessageID,
			HelperMessageID:    e.HelperMessageID,
			RoomID:             e.RoomID,
			DateTime:           e.DateTime,
			CreatedAt:          e.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, out, nil
}

func (s *Server) handleArchive(ctx context.Context, req *mcp.CallToolRequest, in ArchiveInput) (*mcp.CallToolResult, ArchiveOutput, error) {
	events, err := s.relay.Archive(ctx, in.Limit)
	if err != nil {
		return nil, ArchiveOutput{}, err
	}
	out := ArchiveOutput{Count: len(events), Events: make([]ArchiveEntry, 0, len(events))}
	for _, e := range events {
		out.Events = append(out.Events, toArchiveEntry(e))
	}
	return nil, out, nil
}

func toArchiveEntry(e *repo.ArchivedEvent) ArchiveEntry {
	entry := ArchiveEntry{
		SourceMessageID: e.SourceMessageID,
		RoomID:          e.RoomID,
		DateTime:        e.DateTime,
		Rewards:         e.Rewards,
		VideoCount:      e.VideoCount,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
	if e.RetractedAt != nil {
		entry.RetractedAt = e.RetractedAt.Format(time.RFC3339)
	}
	return entry
}
