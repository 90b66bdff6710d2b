package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/daejeonsafe/safenet/internal/config"
)

const paraphraseInstruction = "You translate Korean missing-person case descriptions into short, " +
	"plain English suitable for an international alert. Keep every identifying detail " +
	"(clothing, physical features, medical conditions, last seen location). Output only " +
	"the English text, no preamble."

// Paraphraser produces an English paraphrase of a Korean case description
// via the Gemini API.
type Paraphraser struct {
	client     *genai.Client
	log        *slog.Logger
	model      string
	cfg        *genai.GenerateContentConfig
	maxRetries int
	retryDelay time.Duration
}

// NewParaphraser creates a Gemini-backed paraphraser. Returns nil when no
// API key is configured; callers treat a nil paraphraser as "feature off".
func NewParaphraser(ctx context.Context, cfg config.GeminiConfig, log *slog.Logger) (*Paraphraser, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	if log == nil {
		log = slog.Default()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temp := cfg.Temperature
	return &Paraphraser{
		client: client,
		log:    log.With("component", "paraphraser"),
		model:  cfg.Model,
		cfg: &genai.GenerateContentConfig{
			Temperature:       &temp,
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: paraphraseInstruction}}},
		},
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
	}, nil
}

// Paraphrase translates a lone Korean case description into English.
func (p *Paraphraser) Paraphrase(ctx context.Context, koreanText string) (string, error) {
	koreanText = strings.TrimSpace(koreanText)
	if koreanText == "" {
		return "", fmt.Errorf("empty description")
	}

	contents := []*genai.Content{
		{Role: genai.RoleUser, Parts: []*genai.Part{{Text: koreanText}}},
	}

	var lastErr error
	for i := 0; i <= p.maxRetries; i++ {
		resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, p.cfg)
		if err == nil {
			text := resp.Text()
			if text == "" {
				return "", fmt.Errorf("empty paraphrase response")
			}
			return strings.TrimSpace(text), nil
		}
		lastErr = err

		var apiErr *genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503) && i < p.maxRetries {
			p.log.WarnContext(ctx, "Gemini call failed, retrying",
				"attempt", i+1, "code", apiErr.Code, "delay", p.retryDelay)
			select {
			case <-time.After(p.retryDelay):
				continue
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}
		break
	}

	return "", fmt.Errorf("gemini paraphrase failed: %w", lastErr)
}
