// Package structured provides the block that asks the generation
// service for schema-shaped JSON output.
package structured

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"time"
)

const defaultTimeoutSeconds = 120

// defaultPrompt is used when neither the configuration nor the state
// carries a prompt.
const defaultPrompt = "Generate data according to schema"

var ErrEmptyCompletion = errors.New("generation service returned no choices")

// fencedJSON extracts the body of a markdown code fence when the model
// wraps its JSON answer in one.
var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*\\n(.*?)\\n```")

// Block generates structured JSON data. The prompt comes from the block
// configuration first and falls back to the "prompt" key of the
// accumulated state.
type Block struct {
	Model       string
	Endpoint    string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Prompt      string
	JSONSchema  map[string]any

	client *http.Client
}

// NewBlock creates a structured generator block from configuration,
// falling back to the LLM_MODEL, LLM_ENDPOINT and LLM_API_KEY
// environment variables.
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
		return nil, errors.New("structured generator block requires an 'endpoint' or the LLM_ENDPOINT environment variable")
	}

	temperature := 0.7
	if t, ok := config["temperature"].(float64); ok {
		temperature = t
	}

	maxTokens := 2048
	if mt, ok := config["max_tokens"].(float64); ok {
		maxTokens = int(mt)
	}

	prompt, _ := config["prompt"].(string)
	jsonSchema, _ := config["json_schema"].(map[string]any)

	return &Block{
		Model:       model,
		Endpoint:    endpoint,
		APIKey:      os.Getenv("LLM_API_KEY"),
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Prompt:      prompt,
		JSONSchema:  jsonSchema,
		client:      &http.Client{Timeout: defaultTimeoutSeconds * time.Second},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Execute calls the generation service in JSON mode and parses the
// completion. Unparseable completions come back under "raw_response"
// instead of failing the run.
func (b *Block) Execute(ctx context.Context, state map[string]any) (map[string]any, error) {
	prompt := b.Prompt
	if prompt == "" {
		prompt, _ = state["prompt"].(string)
	}

	if prompt == "" {
		prompt = defaultPrompt
	}

	messages := make([]chatMessage, 0, 2)

	if b.JSONSchema != nil {
		schemaJSON, err := json.Marshal(b.JSONSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode json_schema: %w", err)
		}

		messages = append(messages, chatMessage{
			Role:    "system",
			Content: "Respond with a single JSON object conforming to this JSON Schema:\n" + string(schemaJSON),
		})
	}

	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	content, err := b.complete(ctx, messages)
	if err != nil {
		return nil, err
	}

	return map[string]any{"generated": parseCompletion(content)}, nil
}

// parseCompletion decodes the completion as JSON, retrying the content
// of a markdown fence before giving up and returning the raw text.
func parseCompletion(content string) any {
	var generated any
	if err := json.Unmarshal([]byte(content), &generated); err == nil {
		return generated
	}

	if match := fencedJSON.FindStringSubmatch(content); match != nil {
		if err := json.Unmarshal([]byte(match[1]), &generated); err == nil {
			return generated
		}
	}

	return map[string]any{"raw_response": content}
}

func (b *Block) complete(ctx context.Context, messages []chatMessage) (string, error) {
	payload, err := json.Marshal(chatRequest{
		Model:          b.Model,
		Messages:       messages,
		Temperature:    b.Temperature,
		MaxTokens:      b.MaxTokens,
		ResponseFormat: responseFormat{Type: "json_object"},
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
