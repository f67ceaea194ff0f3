package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/DevRickLin/reward-relay/internal/biz"
	"github.com/DevRickLin/reward-relay/internal/biz/domain"
	"github.com/DevRickLin/reward-relay/internal/biz/usecase"
	"github.com/DevRickLin/reward-relay/internal/conf"
	"github.com/DevRickLin/reward-relay/internal/data"
	"github.com/DevRickLin/reward-relay/internal/service"
)

type result struct {
	Admitted   bool                `json:"admitted"`
	Gate       string              `json:"gate"`
	RoomIDs    []string            `json:"room_ids,omitempty"`
	RoomID     string              `json:"room_id,omitempty"`
	Normalized string              `json:"normalized,omitempty"`
	Event      *domain.ParsedEvent `json:"event,omitempty"`
	Forward    string              `json:"forward,omitempty"`
	ProfileErr string              `json:"profile_error,omitempty"`
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: parse-message <text | -> [channel_id]")
		fmt.Println("  '-' reads the message from stdin. Set PROFILE_BASE_URL to preview the forward.")
		os.Exit(1)
	}

	text := os.Args[1]
	if text == "-" {
		raw, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			os.Exit(1)
		}
		text = strings.TrimRight(string(raw), "\n")
	}

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	uc := biz.NewUsecases(cfg.ToMonitors(), cfg.ToAdmissionRules(), time.Now)

	var d *usecase.Decision
	if len(os.Args) > 2 {
		d = uc.Admission.Evaluate(&domain.InboundMessage{ChannelID: os.Args[2], Text: text})
	} else {
		d = uc.Admission.EvaluateText(text)
	}

	out := result{
		Admitted:   d.Admitted(),
		Gate:       string(d.Gate),
		RoomIDs:    d.RoomIDs,
		RoomID:     d.RoomID,
		Normalized: d.Normalized,
		Event:      d.Event,
	}

	// Preview the enriched forward when a profile API is available
	if out.Admitted && cfg.Profile.BaseURL != "" {
		profiles := data.NewProfileRepo(cfg.Profile.BaseURL, cfg.Profile.RatePerSec, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		profile, err := profiles.Lookup(ctx, out.RoomID)
		cancel()
		if err != nil {
			out.ProfileErr = err.Error()
		} else {
			out.Forward = service.ForwardPayload(text, profile)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
}
