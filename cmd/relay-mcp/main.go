package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/DevRickLin/reward-relay/internal/biz"
	"github.com/DevRickLin/reward-relay/internal/conf"
	"github.com/DevRickLin/reward-relay/internal/mcp"
)

var version = "v0.0.0-dev"

// Stdout carries the MCP protocol, so diagnostics go to stderr.
func main() {
	log.SetOutput(os.Stderr)
	_ = godotenv.Load()

	cfg, err := conf.LoadFromEnv()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	uc := biz.NewUsecases(cfg.ToMonitors(), cfg.ToAdmissionRules(), time.Now)

	// RELAY_API_URL points at a running relay; defaults to its local admin API
	var relay *mcp.Client
	apiURL := os.Getenv("RELAY_API_URL")
	if apiURL == "" && cfg.APIPort > 0 {
		apiURL = fmt.Sprintf("http://127.0.0.1:%d", cfg.APIPort)
	}
	if apiURL != "" {
		relay = mcp.NewClient(apiURL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := mcp.NewServer(uc.Admission, relay, version)
	if err := server.Run(ctx, &gomcp.StdioTransport{}); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
