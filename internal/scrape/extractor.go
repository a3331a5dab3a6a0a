package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ExtractOptions tune a single extraction call.
type ExtractOptions struct {
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Extractor turns a prompt (usually carrying page HTML) into the JSON shape
// the prompt describes, decoded into out.
type Extractor interface {
	ExtractJSON(ctx context.Context, prompt string, opts ExtractOptions, out interface{}) error
}

// LLMExtractor calls an OpenAI-style chat completions endpoint.
type LLMExtractor struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewLLMExtractor(baseURL, apiKey, model string, timeout time.Duration) *LLMExtractor {
	return &LLMExtractor{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (e *LLMExtractor) ExtractJSON(ctx context.Context, prompt string, opts ExtractOptions, out interface{}) error {
	if e.baseURL == "" {
		return errors.New("extractor endpoint not configured")
	}

	system := opts.SystemPrompt
	if system == "" {
		system = "You extract structured data from web pages. Respond with JSON only, no prose."
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: e.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("extractor request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extractor: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var chat chatResponse
	if err := json.Unmarshal(body, &chat); err != nil {
		return fmt.Errorf("extractor: decode response: %w", err)
	}
	if len(chat.Choices) == 0 {
		return errors.New("extractor: empty response")
	}

	payload := StripCodeFences(chat.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return fmt.Errorf("extractor: non-parseable output: %w", err)
	}
	return nil
}

// StripCodeFences removes a ```json ... ``` (or bare ```) wrapper when the
// model fences its output.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.Index(s, "\n"); i >= 0 {
		// drop the language tag line
		s = s[i+1:]
	}
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
