package ai

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

	"github.com/tidwall/gjson"
)

const (
	// DefaultModel is the Gemini model used when none is configured.
	DefaultModel = "gemini-pro"
	// DefaultBaseURL is the Gemini REST endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	defaultTimeout = 30 * time.Second
)

// ErrEmptyResponse is returned when the model produced no usable text.
var ErrEmptyResponse = errors.New("empty model response")

// GeminiClient implements Enhancer against the Gemini REST API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GeminiOption configures a GeminiClient.
type GeminiOption func(*GeminiClient)

// WithModel overrides the default model name.
func WithModel(model string) GeminiOption {
	return func(c *GeminiClient) {
		if model != "" {
			c.model = model
		}
	}
}

// WithBaseURL overrides the API endpoint. Useful for testing.
func WithBaseURL(url string) GeminiOption {
	return func(c *GeminiClient) {
		if url != "" {
			c.baseURL = strings.TrimRight(url, "/")
		}
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) GeminiOption {
	return func(c *GeminiClient) {
		if client != nil {
			c.client = client
		}
	}
}

// NewGeminiClient creates an Enhancer backed by the Gemini API.
func NewGeminiClient(apiKey string, opts ...GeminiOption) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key cannot be empty")
	}

	c := &GeminiClient{
		apiKey:  apiKey,
		model:   DefaultModel,
		baseURL: DefaultBaseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Enhance rewrites the source through the model. The returned text is
// the content of the response's code fence; errors propagate so the
// caller can fall back to the original source.
func (c *GeminiClient) Enhance(ctx context.Context, source string, hints Hints) (string, error) {
	prompt := buildEnhancePrompt(source, hints)

	response, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	language := "python"
	if strings.Contains(strings.ToLower(hints.Runtime), "docker") {
		language = "dockerfile"
	}
	code := ExtractCode(response, language)
	if code == "" {
		return "", ErrEmptyResponse
	}
	return code + "\n", nil
}

// Suggest returns up to ten workflow improvement suggestions.
func (c *GeminiClient) Suggest(ctx context.Context, summary string) ([]string, error) {
	prompt := fmt.Sprintf(`Review the following cloud workflow and suggest improvements.

%s

Return one suggestion per line, no numbering, at most 10 lines.`, summary)

	response, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}

	var suggestions []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-* \t"))
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		suggestions = append(suggestions, line)
		if len(suggestions) == 10 {
			break
		}
	}
	if len(suggestions) == 0 {
		return nil, ErrEmptyResponse
	}
	return suggestions, nil
}

// generate performs one generateContent call and returns the first
// candidate's text.
func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"contents": []any{
			map[string]any{
				"parts": []any{map[string]any{"text": prompt}},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read model response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("model request failed with status %d", resp.StatusCode)
	}

	text := gjson.GetBytes(data, "candidates.0.content.parts.0.text")
	if !text.Exists() || text.String() == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func buildEnhancePrompt(source string, hints Hints) string {
	var b strings.Builder
	b.WriteString("Improve the following generated source file.\n\n")
	fmt.Fprintf(&b, "Node: %s (%s)\n", hints.NodeName, hints.Kind)
	if hints.Runtime != "" {
		fmt.Fprintf(&b, "Runtime: %s\n", hints.Runtime)
	}
	if hints.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", hints.Description)
	}
	if hints.Prompt != "" {
		fmt.Fprintf(&b, "Requirements: %s\n", hints.Prompt)
	}
	b.WriteString("\nKeep the entry point signature and the input/output contract unchanged.\n")
	b.WriteString("Return only the improved file in a single code block.\n\n")
	b.WriteString("```\n")
	b.WriteString(source)
	b.WriteString("\n```\n")
	return b.String()
}
