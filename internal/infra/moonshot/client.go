package moonshot

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const (
	moonshotBaseURL = "https://api.moonshot.cn/v1"
	defaultModel    = "moonshot-v1-8k"
)

// RewardScreenPrompt asks the model for a YES/NO verdict on one message
const RewardScreenPrompt = `You screen messages from live-streaming fan groups.

Decide whether the message announces an upcoming giveaway in a live room: it names a room,
a reward amount (gold, diamonds, batteries, "w" meaning ten thousand) and optionally a time
or a fan-badge level requirement.

Rules:
1. Giveaway announcement for a live room -> YES
2. Leaderboards, check-in tallies, reports of past events, casual chat -> NO
3. Uncertain -> YES

Reply only "YES" or "NO", no explanations.`

// Client is the Moonshot API client using the OpenAI-compatible interface
type Client struct {
	client *openai.Client
	model  string
}

// NewClient creates a new Moonshot client
func NewClient(apiKey, model string) *Client {
	return NewClientWithBaseURL(apiKey, model, moonshotBaseURL)
}

// NewClientWithBaseURL creates a client against a custom endpoint
func NewClientWithBaseURL(apiKey, model, baseURL string) *Client {
	if model == "" {
		model = defaultModel
	}

	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL

	return &Client{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

// Chat sends a message and returns the response
func (c *Client) Chat(ctx context.Context, systemPrompt, userMessage string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userMessage},
		},
		Temperature: 0.1,
		MaxTokens:   10,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response choices")
	}

	return resp.Choices[0].Message.Content, nil
}

// Classify asks a YES/NO question about text
func (c *Client) Classify(ctx context.Context, prompt, text string) (bool, error) {
	answer, err := c.Chat(ctx, prompt, text)
	if err != nil {
		return false, err
	}
	return ParseVerdict(answer)
}

// ParseVerdict reads a YES/NO answer
func ParseVerdict(answer string) (bool, error) {
	a := strings.ToUpper(strings.TrimSpace(answer))
	switch {
	case strings.HasPrefix(a, "YES"):
		return true, nil
	case strings.HasPrefix(a, "NO"):
		return false, nil
	default:
		return false, fmt.Errorf("unexpected verdict %q", answer)
	}
}
