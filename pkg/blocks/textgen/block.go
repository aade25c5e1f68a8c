// Package textgen provides the block that calls the external
// text-generation service.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

const defaultTimeoutSeconds = 120

var ErrEmptyCompletion = errors.New("generation service returned no choices")

// Block generates an assistant turn from system/user prompts. Prompts
// come from the block configuration first and fall back to the "system"
// and "user" keys of the accumulated state.
type Block struct {
	Model        string
	Endpoint     string
	APIKey       string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	UserPrompt   string

	client *http.Client
}

// NewBlock creates a textgen block from configuration, falling back to
// the LLM_MODEL, LLM_ENDPOINT and LLM_API_KEY environment variables.
func NewBlock(config map[string]any) (*Block, error) {
	model, _ := config["model"].(string)
	if model == "" {
		model = os.Getenv("LLM_MODEL")
	}

	endpoint, _ := config["endpoint"].(string)
	if endpoint == "" {
		endpoint = os.Getenv("LLM_ENDPOINT")
	}

	if endpoint == "" {
		return nil, errors.New("textgen block requires an 'endpoint' or the LLM_ENDPOINT environment variable")
	}

	temperature := 0.7
	if t, ok := config["temperature"].(float64); ok {
		temperature = t
	}

	maxTokens := 2048
	if mt, ok := config["max_tokens"].(float64); ok {
		maxTokens = int(mt)
	}

	systemPrompt, _ := config["system_prompt"].(string)
	userPrompt, _ := config["user_prompt"].(string)

	return &Block{
		Model:        model,
		Endpoint:     endpoint,
		APIKey:       os.Getenv("LLM_API_KEY"),
		Temperature:  temperature,
		MaxTokens:    maxTokens,
		SystemPrompt: systemPrompt,
		UserPrompt:   userPrompt,
		client:       &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Execute calls the generation service and returns the assistant turn
// along with the prompts that produced it.
func (b *Block) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	system := b.SystemPrompt
	if system == "" {
		system, _ = state["system"].(string)
	}

	user := b.UserPrompt
	if user == "" {
		user, _ = state["user"].(string)
	}

	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}

	if user != "" {
		messages = append(messages, chatMessage{Role: "user", Content: user})
	}

	assistant, err := b.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"assistant": assistant,
		"system":    system,
		"user":      user,
	}, nil
}

func (b *Block) complete(ctx context.Context, messages []chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:       b.Model,
		Messages:    messages,
		Temperature: b.Temperature,
		MaxTokens:   b.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.Endpoint+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generation request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("generation request failed: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generation service returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to decode generation response: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", ErrEmptyCompletion
	}

	return parsed.Choices[0].Message.Content, nil
}
