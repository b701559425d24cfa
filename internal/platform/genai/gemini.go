// Package genai is a streaming client for the Gemini generative language API.
package genai

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/medinexus/hms/internal/domain/assistant"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("genai: api key not configured")

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

var _ assistant.Provider = (*Client)(nil)

// Client implements assistant.Provider.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateChunk struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Minute
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream")

	return &Client{http: client, cfg: cfg, logger: logger}
}

// CreateSession starts a conversation. History lives in the returned handle;
// nothing is sent upstream until the first message.
func (c *Client) CreateSession(_ context.Context, systemInstruction, userContext string) (assistant.Conversation, error) {
	if c.cfg.APIKey == "" {
		return nil, ErrNotConfigured
	}
	instruction := systemInstruction
	if userContext != "" {
		instruction = systemInstruction + "\n" + userContext
	}
	return &conversation{client: c, instruction: instruction}, nil
}

type conversation struct {
	client      *Client
	instruction string

	mu      sync.Mutex
	history []content
}

// SendStream posts the history plus message and streams the reply. The
// exchange is added to the history only when the stream completes.
func (cv *conversation) SendStream(ctx context.Context, message string) (<-chan assistant.Fragment, error) {
	user := content{Role: "user", Parts: []part{{Text: message}}}

	cv.mu.Lock()
	contents := make([]content, 0, len(cv.history)+1)
	contents = append(contents, cv.history...)
	contents = append(contents, user)
	cv.mu.Unlock()

	c := cv.client
	resp, err := c.http.R().
		SetContext(ctx).
		SetDoNotParseResponse(true).
		SetHeader("x-goog-api-key", c.cfg.APIKey).
		SetQueryParam("alt", "sse").
		SetPathParam("model", c.cfg.Model).
		SetBody(generateRequest{
			SystemInstruction: &content{Parts: []part{{Text: cv.instruction}}},
			Contents:          contents,
		}).
		Post("/v1beta/models/{model}:streamGenerateContent")
	if err != nil {
		return nil, fmt.Errorf("genai stream request: %w", err)
	}

	body := resp.RawBody()
	if resp.StatusCode() >= 300 {
		defer body.Close()
		return nil, readError(resp.StatusCode(), body)
	}

	out := make(chan assistant.Fragment, 16)
	go func() {
		defer close(out)
		defer body.Close()

		var reply strings.Builder
		if err := scanEvents(body, func(chunk generateChunk) error {
			if chunk.Error != nil {
				return fmt.Errorf("genai stream: %s (%d)", chunk.Error.Message, chunk.Error.Code)
			}
			if chunk.PromptFeedback != nil && chunk.PromptFeedback.BlockReason != "" {
				return fmt.Errorf("genai stream: prompt blocked: %s", chunk.PromptFeedback.BlockReason)
			}
			text := chunkText(chunk)
			if text == "" {
				return nil
			}
			reply.WriteString(text)
			select {
			case out <- assistant.Fragment{Text: text}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}); err != nil {
			c.logger.Warn().Err(err).Str("model", c.cfg.Model).Msg("genai stream aborted")
			out <- assistant.Fragment{Err: err}
			return
		}

		cv.mu.Lock()
		cv.history = append(cv.history, user, content{Role: "model", Parts: []part{{Text: reply.String()}}})
		cv.mu.Unlock()
	}()
	return out, nil
}

// scanEvents reads server-sent events and hands each decoded data payload to fn.
func scanEvents(r io.Reader, fn func(generateChunk) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" || strings.HasPrefix(line, ":") {
			continue
		}
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "" || data == "[DONE]" {
			continue
		}
		var chunk generateChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("genai stream: decode event: %w", err)
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("genai stream: read: %w", err)
	}
	return nil
}

func chunkText(chunk generateChunk) string {
	if len(chunk.Candidates) == 0 {
		return ""
	}
	var b strings.Builder
	for _, p := range chunk.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}
	return b.String()
}

func readError(status int, body io.Reader) error {
	raw, _ := io.ReadAll(io.LimitReader(body, 64*1024))
	var wrapped struct {
		Error apiError `json:"error"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && wrapped.Error.Message != "" {
		return fmt.Errorf("genai: status %d: %s", status, wrapped.Error.Message)
	}
	return fmt.Errorf("genai: status %d", status)
}
