package augment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// SystemPrompt frames every hosted model call.
const SystemPrompt = `You are an expert automotive service assistant at Cool Car Auto Garage in Freetown.
Your knowledge covers:
- Car maintenance and repairs
- Diagnostics and troubleshooting
- Service scheduling and recommendations
- Vehicle specifications and features

Provide helpful, professional answers in a friendly tone, in at most a few sentences.
Focus on automotive questions and guide visitors toward proper vehicle care.`

// OpenAI calls an OpenAI-compatible chat completions endpoint. DeepSeek is
// the default deployment.
type OpenAI struct {
	client      *Client
	name        string
	apiKey      string
	apiBase     string
	model       string
	temperature float64
	maxTokens   int
	system      string
}

type OpenAIConfig struct {
	Name        string
	APIKey      string
	APIBase     string
	Model       string
	Temperature float64
	MaxTokens   int
	System      string
}

func NewOpenAI(client *Client, cfg OpenAIConfig) *OpenAI {
	if cfg.APIBase == "" {
		cfg.APIBase = "https://api.deepseek.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "deepseek-chat"
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Model
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 500
	}
	if cfg.System == "" {
		cfg.System = SystemPrompt
	}
	return &OpenAI{
		client:      client,
		name:        cfg.Name,
		apiKey:      cfg.APIKey,
		apiBase:     strings.TrimSuffix(cfg.APIBase, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		system:      cfg.System,
	}
}

func (o *OpenAI) Name() string { return o.name }

type oaiRequest struct {
	Model       string       `json:"model"`
	Messages    []oaiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens,omitempty"`
	Temperature float64      `json:"temperature"`
	Stream      bool         `json:"stream"`
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponse struct {
	Choices []struct {
		Message      oaiMessage `json:"message"`
		FinishReason string     `json:"finish_reason"`
	} `json:"choices"`
}

func (o *OpenAI) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(oaiRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: o.system},
			{Role: "user", Content: prompt},
		},
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var out oaiResponse
	err = o.client.Do(ctx, "model", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.apiBase+"/chat/completions", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if o.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+o.apiKey)
		}
		return req, nil
	}, func(resp *http.Response) error {
		return json.NewDecoder(resp.Body).Decode(&out)
	})
	if err != nil {
		return "", fmt.Errorf("%s: %w", o.name, err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s: empty completion", o.name)
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}
