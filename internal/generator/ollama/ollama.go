package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"docqa/internal/generator"
)

// Client generates text through an Ollama server's /api/generate endpoint,
// requesting JSON-formatted output.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	numPredict  int
	topP        float64
	client      *http.Client
}

// Config configures the Ollama client. Connect and read timeouts are
// separate so a stalled generation cannot hang a request indefinitely.
type Config struct {
	BaseURL        string
	Model          string
	Temperature    float64
	NumPredict     int
	TopP           float64
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://127.0.0.1:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1:8b"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	if cfg.NumPredict == 0 {
		cfg.NumPredict = 180
	}
	if cfg.TopP == 0 {
		cfg.TopP = 0.9
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
		model:       cfg.Model,
		temperature: cfg.Temperature,
		numPredict:  cfg.NumPredict,
		topP:        cfg.TopP,
		client:      &http.Client{Transport: transport, Timeout: cfg.ReadTimeout},
	}
}

func (c *Client) Provider() string { return "ollama" }

func (c *Client) Model() string { return c.model }

// Generate runs one non-streaming completion and returns the raw text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.model,
		"prompt": prompt,
		"stream": false,
		"format": "json",
		"options": map[string]any{
			"temperature": c.temperature,
			"num_predict": c.numPredict,
			"top_p":       c.topP,
		},
	}
	data, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(data))
	if err != nil {
		return "", &generator.Error{Provider: "ollama", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &generator.Error{Provider: "ollama", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", &generator.Error{Provider: "ollama", Err: fmt.Errorf("status %s", resp.Status)}
	}

	var out struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &generator.Error{Provider: "ollama", Err: err}
	}
	return strings.TrimSpace(out.Response), nil
}
