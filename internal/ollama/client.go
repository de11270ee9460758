// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with a locally
// running Ollama inference server.
package ollama

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

	"github.com/jeranaias/lumen/internal/util"
)

// systemPrompt is always prepended to chat requests.
const systemPrompt = "You are a helpful AI assistant running locally via Ollama. " +
	"If the user speaks Japanese, reply in natural Japanese."

// maxErrorBodyRunes bounds how much of an error response body is carried in
// diagnostics.
const maxErrorBodyRunes = 500

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the inference client.
type ClientConfig struct {
	// BaseURL is the Ollama API base URL (default: http://127.0.0.1:11434).
	// Note: uses explicit IPv4 address instead of localhost to avoid IPv6
	// resolution issues on Windows.
	BaseURL string

	// DefaultModel is used when a call passes an empty model name.
	DefaultModel string

	// Timeout bounds every request. Defaults to 10 minutes: a cold model
	// load can legitimately take that long on slow hardware.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:      "http://127.0.0.1:11434",
		DefaultModel: "qwen2.5:7b-instruct",
		Timeout:      10 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with the Ollama API. Safe for concurrent use.
//
// Example:
//
//	client := ollama.NewClient()
//	if err := client.Generate(ctx, "qwen2.5:7b-instruct"); err != nil {
//	    info := ollama.ClassifyError(err)
//	    // surface info.Kind / info.Message to the UI
//	}
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

// NewClient creates a new client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new client with custom configuration.
// Zero values are filled with defaults.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:11434"
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "qwen2.5:7b-instruct"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Minute
	}

	return &Client{
		config: config,
		// Timeout is enforced per request via context so a caller-supplied
		// deadline can be shorter.
		httpClient: &http.Client{},
	}
}

// GetConfig returns the client configuration.
func (c *Client) GetConfig() *ClientConfig {
	return c.config
}

// DefaultModel returns the configured default model name.
func (c *Client) DefaultModel() string {
	return c.config.DefaultModel
}

// =============================================================================
// GENERATE (MODEL PRELOAD)
// =============================================================================

// Generate issues a priming request with an empty prompt to force the server
// to load the model into memory. Any 2xx response with a parseable JSON body
// counts as success; the content is ignored.
func (c *Client) Generate(ctx context.Context, model string) error {
	if model == "" {
		model = c.config.DefaultModel
	}

	reqBody := GenerateRequest{
		Model:  model,
		Prompt: "",
		Stream: false,
	}

	var ignored json.RawMessage
	return c.postJSON(ctx, "/api/generate", reqBody, &ignored)
}

// =============================================================================
// CHAT
// =============================================================================

// Chat sends a non-streaming chat request and returns the reply text. The
// system message is always prepended; history entries with unknown roles are
// normalized to "user" and entries with empty content are dropped.
// Fails with an empty-response error when the reply carries no content.
func (c *Client) Chat(ctx context.Context, model string, message string, history []Message) (string, error) {
	if model == "" {
		model = c.config.DefaultModel
	}

	apiMessages := make([]Message, 0, len(history)+2)
	apiMessages = append(apiMessages, NewSystemMessage(systemPrompt))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "assistant"
		}
		apiMessages = append(apiMessages, Message{Role: role, Content: m.Content})
	}
	apiMessages = append(apiMessages, NewUserMessage(message))

	reqBody := ChatRequest{
		Model:    model,
		Messages: apiMessages,
		Stream:   false,
	}

	var result ChatResponse
	if err := c.postJSON(ctx, "/api/chat", reqBody, &result); err != nil {
		return "", err
	}

	text := result.Message.Content
	if strings.TrimSpace(text) == "" {
		return "", &ClientError{
			Kind:    KindEmptyResponse,
			Message: "empty response from Ollama /api/chat",
		}
	}
	return text, nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// postJSON performs a JSON POST against the given API path, enforcing the
// configured timeout. Non-2xx responses fail with the status and up to 500
// characters of body; malformed JSON fails distinctly from HTTP errors.
func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &ClientError{Kind: KindUnknown, Message: "failed to marshal request", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return &ClientError{Kind: KindUnknown, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.ContentLength = int64(len(body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &ClientError{
				Kind:    KindServerUnreachable,
				Message: "request timeout to Ollama " + path,
				Cause:   err,
			}
		}
		return &ClientError{
			Kind:    KindServerUnreachable,
			Message: "request to Ollama " + path + " failed",
			Cause:   err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &ClientError{Kind: KindUnknown, Message: "failed to read response from Ollama " + path, Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		clamped := util.TruncateRunesNoEllipsis(string(respBody), maxErrorBodyRunes)
		return &ClientError{
			Kind:    KindUnknown,
			Message: fmt.Sprintf("HTTP %d from Ollama %s: %s", resp.StatusCode, path, clamped),
		}
	}

	if out != nil {
		trimmed := bytes.TrimSpace(respBody)
		if len(trimmed) == 0 {
			trimmed = []byte("{}")
		}
		if err := json.Unmarshal(trimmed, out); err != nil {
			return &ClientError{
				Kind:    KindUnknown,
				Message: "failed to parse JSON from Ollama " + path,
				Cause:   err,
			}
		}
	}
	return nil
}
