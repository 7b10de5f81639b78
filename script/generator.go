package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"clipforge-pipeline/config"
	"clipforge-pipeline/sanitize"
)

// promptTemplate embeds the example schema so the model returns a document we
// can decode directly. The trailing constraint matters: without it the model
// loves wrapping the JSON in markdown fences.
const promptTemplate = `Create a JSON video script for this idea: %s

Requirements:
- Maximum 8 seconds duration
- Include dialogue
- Follow this structure:

{
  "characters": [{
    "name": "Character Name",
    "age": 30,
    "height": "6'0\" / 183 cm",
    "build": "athletic",
    "skin_tone": "description",
    "hair": "description",
    "eyes": "description",
    "distinguishing_marks": "description or null",
    "demeanour": "personality description",
    "default_outfit": "outfit description",
    "mouth_shape_intensity": 0.7,
    "eye_contact_ratio": 0.6
  }],
  "clips": [{
    "id": "unique_id",
    "shot": {
      "composition": "camera shot description",
      "camera_motion": "movement description",
      "frame_rate": "24 fps",
      "film_grain": 0.1,
      "camera": "equipment description"
    },
    "subject": {
      "description": "character appearance in scene",
      "wardrobe": "outfit for this scene"
    },
    "scene": {
      "location": "where scene takes place",
      "time_of_day": "mid-day",
      "environment": "environmental details"
    },
    "visual_details": {
      "action": "what character does",
      "props": "objects in scene or null"
    },
    "cinematography": {
      "lighting": "lighting description",
      "tone": "mood/feeling",
      "color_grade": "color scheme"
    },
    "audio_track": {
      "lyrics": "dialogue or null",
      "emotion": "vocal emotion or null",
      "flow": "delivery style or null",
      "format": "wav",
      "sample_rate_hz": 48000,
      "channels": 2,
      "style": "music style or null"
    },
    "dialogue": {
      "character": "speaking character",
      "line": "spoken text",
      "subtitles": false
    },
    "duration_sec": 8,
    "aspect_ratio": "16:9"
  }]
}

Return ONLY valid JSON, no markdown or extra text.`

var (
	errNoChoices           = errors.New("completion returned no choices")
	errEmptyCompletion     = errors.New("completion content is empty or placeholder-only")
	errTruncatedCompletion = errors.New("completion JSON is truncated (missing closing brace)")
)

// GenerationError reports retry exhaustion, carrying the last observed cause.
type GenerationError struct {
	Attempts int
	Last     error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("script generation failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *GenerationError) Unwrap() error { return e.Last }

// Writer turns an idea into a validated VideoScript via the completion
// service.
type Writer struct {
	client *openai.Client
	cfg    config.ScriptConfig
	log    zerolog.Logger
}

func New(cfg config.ScriptConfig, creds *config.Credentials, log zerolog.Logger) (*Writer, error) {
	if creds.OpenRouterKey == "" {
		return nil, &config.MissingCredentialError{Name: "OPENROUTER_API_KEY"}
	}

	oc := openai.DefaultConfig(creds.OpenRouterKey)
	oc.BaseURL = cfg.BaseURL

	return &Writer{
		client: openai.NewClientWithConfig(oc),
		cfg:    cfg,
		log:    log.With().Str("component", "script").Logger(),
	}, nil
}

// Generate runs the bounded retry loop against the completion service. Every
// transient failure (429, other non-200, timeout, empty or placeholder
// content, truncated or unparseable JSON) consumes one shared attempt; rate
// limits back off progressively, everything else waits the base delay.
// Schema violations on a successfully parsed document are not transient and
// return immediately.
func (w *Writer) Generate(ctx context.Context, idea string) (*VideoScript, error) {
	sanitized := sanitize.Clean(idea, true)
	w.log.Info().Str("idea", sanitized).Msg("generating video script")

	prompt := fmt.Sprintf(promptTemplate, sanitized)

	var lastErr error
	for attempt := 1; attempt <= w.cfg.MaxAttempts; attempt++ {
		doc, err := w.attempt(ctx, prompt)
		if err == nil {
			w.log.Info().Int("attempt", attempt).Int("clips", len(doc.Clips)).Msg("script parsed and validated")
			return doc, nil
		}

		var violation *SchemaViolationError
		if errors.As(err, &violation) {
			return nil, err
		}

		lastErr = err
		if attempt == w.cfg.MaxAttempts {
			break
		}

		delay := w.cfg.RetryDelay.Std()
		if rateLimited(err) {
			delay = time.Duration(attempt) * delay
		}
		w.log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", delay).Msg("completion attempt failed")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &GenerationError{Attempts: w.cfg.MaxAttempts, Last: lastErr}
}

func (w *Writer) attempt(ctx context.Context, prompt string) (*VideoScript, error) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.Timeout.Std())
	defer cancel()

	resp, err := w.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: w.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: w.cfg.Temperature,
		MaxTokens:   w.cfg.MaxTokens,
	})
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("completion request timed out: %w", err)
		}
		return nil, fmt.Errorf("completion request: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errNoChoices
	}

	content := resp.Choices[0].Message.Content
	if trimmed := strings.TrimSpace(content); trimmed == "" || trimmed == "..." || trimmed == "…" {
		return nil, errEmptyCompletion
	}

	content = cleanCompletion(content)
	if !strings.HasSuffix(content, "}") {
		return nil, errTruncatedCompletion
	}

	var doc VideoScript
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("parse completion JSON: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// cleanCompletion strips markdown fences and stray backticks, then runs the
// sanitizer without JSON escaping: the content already is JSON and must not
// be escaped a second time.
func cleanCompletion(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.Trim(content, "`")
	return sanitize.Clean(content, false)
}

func rateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429
	}
	return false
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded)
}
