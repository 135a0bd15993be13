package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kolzchut/ragbot/pkg/engine"
	"github.com/kolzchut/ragbot/pkg/settings"
)

// DefaultBaseURL is the default OpenAI API URL.
const DefaultBaseURL = "https://api.openai.com"

// maxAnswerTokens caps the completion length.
const maxAnswerTokens = 512

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	// BaseURL is the API URL. Defaults to DefaultBaseURL if empty.
	BaseURL string

	// APIKey is the bearer token for the chat completions API.
	APIKey string
}

// OpenAIClient answers queries via OpenAI's Chat Completions API. Model,
// prompts and temperature come from the settings store on every call, so
// configuration changes apply without a restart.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	settings   *settings.Store
	httpClient *http.Client
	logger     *zap.Logger
}

// NewOpenAIClient creates a new OpenAI answering client.
func NewOpenAIClient(cfg OpenAIConfig, st *settings.Store, logger *zap.Logger) *OpenAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &OpenAIClient{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		settings: st,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model            string        `json:"model"`
	Messages         []chatMessage `json:"messages"`
	Temperature      float64       `json:"temperature"`
	MaxTokens        int           `json:"max_tokens"`
	TopP             float64       `json:"top_p"`
	FrequencyPenalty float64       `json:"frequency_penalty"`
	PresencePenalty  float64       `json:"presence_penalty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Answer sends the query and retrieved documents to the model configured in
// the settings store and returns the answer with timing and token usage.
func (c *OpenAIClient) Answer(ctx context.Context, query string, docs []engine.Document) (*Result, error) {
	cfg, err := c.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading answering configuration: %w", err)
	}

	temperature, err := strconv.ParseFloat(cfg.Temperature, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing temperature %q: %w", cfg.Temperature, err)
	}

	reqBody := chatRequest{
		Model: cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: cfg.SystemPrompt},
			{Role: "user", Content: cfg.UserPrompt + "\n" + promptBody(query, docs)},
		},
		Temperature: temperature,
		MaxTokens:   maxAnswerTokens,
		TopP:        1,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("openai returned status %d: %s", resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}

	elapsed := math.Round(time.Since(start).Seconds()*10000) / 10000

	c.logger.Debug("answer generated",
		zap.String("model", cfg.Model),
		zap.Float64("elapsed", elapsed),
		zap.Int("tokens", chatResp.Usage.CompletionTokens),
	)

	return &Result{
		Text:    chatResp.Choices[0].Message.Content,
		Elapsed: elapsed,
		Tokens:  chatResp.Usage.CompletionTokens,
	}, nil
}

// promptBody lays out the question and each retrieved document on its own
// line, in the Hebrew layout the prompts expect.
func promptBody(query string, docs []engine.Document) string {
	var b strings.Builder
	b.WriteString("שאלה: ")
	b.WriteString(query)
	for i, doc := range docs {
		b.WriteString(fmt.Sprintf("\nמסמך %d: %s", i+1, doc.Content))
	}
	return b.String()
}
