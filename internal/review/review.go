package review

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"strings"
)

// Returned when the completion service cannot be reached or answers with a failure
var ErrUpstream = errors.New("review upstream failed")

const (
	CategoryBug          = "Bug"
	CategoryOptimization = "Optimization"
	CategoryBestPractice = "Best Practice"
	CategoryGeneral      = "General"

	fallbackMessage = "Code analysis completed, but response format needs adjustment."
)

type Suggestion struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// Fallback is returned whenever the model reply cannot be parsed
func Fallback() []Suggestion {
	return []Suggestion{{Category: CategoryGeneral, Message: fallbackMessage}}
}

type Client struct {
	Endpoint string
	Model    string
	APIKey   string
	HTTP     *http.Client
}

func New(endpoint, model, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		Endpoint: endpoint,
		Model:    model,
		APIKey:   apiKey,
		HTTP:     httpClient,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func Prompt(code string) string {
	return `You are a code reviewer. Analyze the following code and provide suggestions in JSON format as an array of objects with "category" and "message" fields. Categories should be "Bug", "Optimization", or "Best Practice". Here's the code:

` + code
}

// Review sends code to the completion service and turns the reply into
// suggestions. Transport and HTTP failures return ErrUpstream; an
// unparseable reply yields the single fallback suggestion.
func (c *Client) Review(ctx context.Context, code string) ([]Suggestion, error) {
	body, err := json.Marshal(chatRequest{
		Model:    c.Model,
		Messages: []chatMessage{{Role: "user", Content: Prompt(code)}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode review request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build review request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUpstream, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var result chatResponse
	if err := json.Unmarshal(data, &result); err != nil {
		log.Printf("Review: undecodable completion response: %v", err)
		return Fallback(), nil
	}

	content := ""
	if len(result.Choices) > 0 {
		content = result.Choices[0].Message.Content
	}

	suggestions, err := ParseSuggestions(content)
	if err != nil {
		log.Printf("Review: failed to parse suggestions: %v", err)
		log.Printf("Review: raw response: %s", content)
		return Fallback(), nil
	}
	return suggestions, nil
}

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ParseSuggestions extracts the JSON array from a free-text model reply.
// Reasoning blocks are removed first; the array may be wrapped in prose.
func ParseSuggestions(raw string) ([]Suggestion, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		raw = "[]"
	}
	raw = strings.TrimSpace(thinkBlock.ReplaceAllString(raw, ""))

	candidate := raw
	if start := strings.Index(raw, "["); start >= 0 {
		if end := strings.LastIndex(raw, "]"); end > start {
			candidate = raw[start : end+1]
		}
	}

	var suggestions []Suggestion
	if err := json.Unmarshal([]byte(candidate), &suggestions); err != nil {
		return nil, err
	}
	if suggestions == nil {
		suggestions = []Suggestion{}
	}
	return suggestions, nil
}
