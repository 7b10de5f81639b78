package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge-pipeline/config"
)

func fakeVideoBytes() []byte {
	return bytes.Repeat([]byte("mp4-data"), 64)
}

// newReplicateServer serves the two requests the generator makes: the
// prediction create and the output download.
func newReplicateServer(t *testing.T, predictionStatus string, videoBody []byte) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/models/google/veo-3-fast/predictions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "wait", r.Header.Get("Prefer"))

		var req predictionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.NotEmpty(t, req.Input.Prompt)

		resp := map[string]interface{}{
			"id":     "pred_123",
			"status": predictionStatus,
			"output": srv.URL + "/out.mp4",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/out.mp4", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(videoBody)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestGenerator(t *testing.T, baseURL string) *Generator {
	t.Helper()
	g, err := New(
		config.VideoConfig{BaseURL: baseURL, Model: "google/veo-3-fast"},
		&config.Credentials{ReplicateToken: "test-token"},
		zerolog.Nop(),
	)
	require.NoError(t, err)
	return g
}

func TestNewRequiresCredential(t *testing.T) {
	_, err := New(config.VideoConfig{}, &config.Credentials{}, zerolog.Nop())
	var missing *config.MissingCredentialError
	require.ErrorAs(t, err, &missing)
}

func TestGenerateWritesVideoFile(t *testing.T) {
	body := fakeVideoBytes()
	srv := newReplicateServer(t, "succeeded", body)
	g := newTestGenerator(t, srv.URL)

	outDir := filepath.Join(t.TempDir(), "nested", "out")
	path, err := g.Generate(context.Background(), "a dark scene", outDir, "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "clip.mp4"), path)

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, body, written)
}

func TestGenerateFailedPrediction(t *testing.T) {
	srv := newReplicateServer(t, "failed", fakeVideoBytes())
	g := newTestGenerator(t, srv.URL)

	_, err := g.Generate(context.Background(), "a dark scene", t.TempDir(), "clip.mp4")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, err.Error(), `status "failed"`)
}

func TestGenerateServiceHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	g := newTestGenerator(t, srv.URL)

	_, err := g.Generate(context.Background(), "a dark scene", t.TempDir(), "clip.mp4")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, "create prediction", svcErr.Op)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestGenerateRejectsTinyDownload(t *testing.T) {
	srv := newReplicateServer(t, "succeeded", []byte("oops"))
	g := newTestGenerator(t, srv.URL)

	_, err := g.Generate(context.Background(), "a dark scene", t.TempDir(), "clip.mp4")
	var svcErr *ServiceError
	require.ErrorAs(t, err, &svcErr)
	assert.Contains(t, err.Error(), "too small")
}

func TestGeneratePredictionError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "pred_123", "status": "failed", "error": "NSFW content detected",
		})
	}))
	t.Cleanup(srv.Close)
	g := newTestGenerator(t, srv.URL)

	_, err := g.Generate(context.Background(), "a dark scene", t.TempDir(), "clip.mp4")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NSFW content detected")
}

func TestOutputURLShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr bool
	}{
		{"string output", `"https://cdn.example/video.mp4"`, "https://cdn.example/video.mp4", false},
		{"list output", `["https://cdn.example/a.mp4", "https://cdn.example/b.mp4"]`, "https://cdn.example/a.mp4", false},
		{"missing output", ``, "", true},
		{"null output", `null`, "", true},
		{"object output", `{"weird": true}`, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := outputURL(json.RawMessage(tt.raw))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceErrorWrapping(t *testing.T) {
	inner := fmt.Errorf("connection refused")
	err := &ServiceError{Op: "create prediction", Err: inner}
	assert.Equal(t, "video service: create prediction: connection refused", err.Error())
	assert.ErrorIs(t, err, inner)
}
