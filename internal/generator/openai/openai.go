package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"docqa/internal/generator"
)

// Client generates text through an OpenAI-compatible chat completions
// endpoint.
type Client struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
}

type Config struct {
	BaseURL        string
	APIKeyEnv      string
	Model          string
	Temperature    float64
	MaxTokens      int
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func NewClient(cfg Config) (*Client, error) {
	env := cfg.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	key := os.Getenv(env)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", env)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 300
	}
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 120 * time.Second
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{Timeout: cfg.ConnectTimeout}).DialContext,
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      key,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		client:      &http.Client{Transport: transport, Timeout: cfg.ReadTimeout},
	}, nil
}

func (c *Client) Provider() string { return "openai" }

func (c *Client) Model() string { return c.model }

// Generate runs one chat completion and returns the assistant content.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":       c.model,
		"temperature": c.temperature,
		"max_tokens":  c.maxTokens,
		"messages": []map[string]string{
			{"role": "system", "content": "Return ONLY valid JSON as instructed."},
			{"role": "user", "content": prompt},
		},
	}
	data, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(data))
	if err != nil {
		return "", &generator.Error{Provider: "openai", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &generator.Error{Provider: "openai", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &generator.Error{Provider: "openai", Err: fmt.Errorf("status %s", resp.Status)}
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &generator.Error{Provider: "openai", Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &generator.Error{Provider: "openai", Err: fmt.Errorf("empty choices")}
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
