// Package speech converts recorded audio into text for dictation.
package speech

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

var (
	// ErrUnavailable means no recognition backend is configured.
	ErrUnavailable = errors.New("speech recognition is unavailable")
	// ErrNoSpeech means the backend returned no transcript.
	ErrNoSpeech = errors.New("no speech recognized")
)

// Transcriber turns one utterance into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Unavailable is the Transcriber used when dictation is not configured.
type Unavailable struct{}

func (Unavailable) Transcribe(context.Context, []byte) (string, error) {
	return "", ErrUnavailable
}

type Config struct {
	BaseURL         string
	APIKey          string
	LanguageCode    string
	Encoding        string
	SampleRateHertz int
	Timeout         time.Duration
}

// GoogleClient calls the Cloud Speech-to-Text recognize endpoint.
type GoogleClient struct {
	http   *resty.Client
	cfg    Config
	logger zerolog.Logger
}

type recognizeRequest struct {
	Config recognitionConfig `json:"config"`
	Audio  recognitionAudio  `json:"audio"`
}

type recognitionConfig struct {
	Encoding        string `json:"encoding,omitempty"`
	SampleRateHertz int    `json:"sampleRateHertz,omitempty"`
	LanguageCode    string `json:"languageCode"`
	MaxAlternatives int    `json:"maxAlternatives"`
}

type recognitionAudio struct {
	Content string `json:"content"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"results"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func NewGoogleClient(cfg Config, logger zerolog.Logger) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://speech.googleapis.com"
	}
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = "en-US"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &GoogleClient{http: client, cfg: cfg, logger: logger}
}

// Transcribe sends audio for synchronous recognition and returns the top
// alternative of every result joined by spaces.
func (c *GoogleClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if c.cfg.APIKey == "" {
		return "", ErrUnavailable
	}
	if len(audio) == 0 {
		return "", ErrNoSpeech
	}

	body := recognizeRequest{
		Config: recognitionConfig{
			Encoding:        c.cfg.Encoding,
			SampleRateHertz: c.cfg.SampleRateHertz,
			LanguageCode:    c.cfg.LanguageCode,
			MaxAlternatives: 1,
		},
		Audio: recognitionAudio{Content: base64.StdEncoding.EncodeToString(audio)},
	}

	var result recognizeResponse
	var failure apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("key", c.cfg.APIKey).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post("/v1/speech:recognize")
	if err != nil {
		return "", fmt.Errorf("speech recognize: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn().
			Int("status_code", resp.StatusCode()).
			Str("status", failure.Error.Status).
			Msg("speech recognize rejected")
		return "", fmt.Errorf("speech recognize: status %d: %s", resp.StatusCode(), failure.Error.Message)
	}

	parts := make([]string, 0, len(result.Results))
	for _, r := range result.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if t := strings.TrimSpace(r.Alternatives[0].Transcript); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoSpeech
	}
	return strings.Join(parts, " "), nil
}
