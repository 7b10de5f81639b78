// Package video renders a reduced prompt into an MP4 via Replicate and
// persists it to disk.
package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"clipforge-pipeline/config"
)

// ServiceError wraps any failure from the video service or the subsequent
// download/write. Nothing here is retried; the caller decides what to do.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("video service: %s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error { return e.Err }

// Generator submits prompts to the video model and downloads the result.
type Generator struct {
	// No client timeout on purpose: a prediction with Prefer:wait can
	// legitimately block for minutes. Cancellation comes from ctx.
	httpClient *http.Client
	baseURL    string
	model      string
	token      string
	log        zerolog.Logger
}

func New(cfg config.VideoConfig, creds *config.Credentials, log zerolog.Logger) (*Generator, error) {
	token := creds.Replicate()
	if token == "" {
		return nil, &config.MissingCredentialError{Name: "REPLICATE_API_TOKEN (or REPLICATE_API_KEY)"}
	}

	return &Generator{
		httpClient: &http.Client{},
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		token:      token,
		log:        log.With().Str("component", "video").Logger(),
	}, nil
}

type predictionRequest struct {
	Input predictionInput `json:"input"`
}

type predictionInput struct {
	Prompt string `json:"prompt"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  string          `json:"error"`
}

// Generate sends the prompt as the model's sole input, waits for the
// prediction to finish, downloads the video bytes and writes them verbatim
// under outputDir. Returns the written path.
func (g *Generator) Generate(ctx context.Context, prompt, outputDir, filename string) (string, error) {
	g.log.Info().Str("prompt", head(prompt, 100)).Msg("requesting video generation")

	outputURL, err := g.createPrediction(ctx, prompt)
	if err != nil {
		return "", err
	}

	data, err := g.download(ctx, outputURL)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", &ServiceError{Op: "create output dir", Err: err}
	}
	path := filepath.Join(outputDir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", &ServiceError{Op: "write video file", Err: err}
	}

	g.log.Info().Str("path", path).Int("bytes", len(data)).Msg("video saved")
	return path, nil
}

func (g *Generator) createPrediction(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(predictionRequest{Input: predictionInput{Prompt: prompt}})
	if err != nil {
		return "", &ServiceError{Op: "marshal request", Err: err}
	}

	url := fmt.Sprintf("%s/models/%s/predictions", g.baseURL, g.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", &ServiceError{Op: "build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")
	// Hold the connection until the prediction settles instead of polling.
	req.Header.Set("Prefer", "wait")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Op: "create prediction", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &ServiceError{Op: "read prediction response", Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &ServiceError{Op: "create prediction", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, head(string(respBody), 200))}
	}

	var pred prediction
	if err := json.Unmarshal(respBody, &pred); err != nil {
		return "", &ServiceError{Op: "parse prediction response", Err: err}
	}
	if pred.Error != "" {
		return "", &ServiceError{Op: "prediction", Err: fmt.Errorf("%s", pred.Error)}
	}
	if pred.Status != "succeeded" {
		return "", &ServiceError{Op: "prediction", Err: fmt.Errorf("ended with status %q", pred.Status)}
	}

	out, err := outputURL(pred.Output)
	if err != nil {
		return "", &ServiceError{Op: "prediction output", Err: err}
	}
	return out, nil
}

func (g *Generator) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &ServiceError{Op: "build download request", Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &ServiceError{Op: "download video", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Op: "download video", Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: "read video stream", Err: err}
	}
	// A tiny body is an error page, not a video container.
	if len(data) < 100 {
		return nil, &ServiceError{Op: "download video", Err: fmt.Errorf("response too small (%d bytes)", len(data))}
	}
	return data, nil
}

// outputURL accepts the two shapes Replicate models return: a single URL
// string or a list of URLs.
func outputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", fmt.Errorf("no output in prediction")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil && len(many) > 0 {
		return many[0], nil
	}
	return "", fmt.Errorf("unrecognized prediction output: %s", head(string(raw), 120))
}

func head(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
