package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"clipforge-pipeline/config"
	"clipforge-pipeline/pipeline"
	"clipforge-pipeline/reduce"
	"clipforge-pipeline/script"
	"clipforge-pipeline/video"
)

// defaultIdeas drive the pipeline when no ideas are given on the command line.
var defaultIdeas = []string{
	"Type II civilizations large-scale quantum teleporter with city around it. Dramatic music. No text.",
	"Cinematic shot of a dimly lit garage. A supercar's headlights flicker on. Engine roars to life. Doors rise like wings. Light dances on the sharp curves. No text.",
	"Cinematic shot of a sunlit diner counter. A chilled soda bottle hisses open, pours itself into a glass. Fizz rises. Light catches the red label. No text.",
	"Cinematic shot of a sunlit Scandinavian bedroom. A sealed flat-pack box trembles, opens, and furniture assembles rapidly into a serene, styled room. No text.",
	"A yeti being a confused tourist in central London. No text.",
}

type runState struct {
	RunID       string      `json:"run_id"`
	StartedAt   string      `json:"started_at"`
	CompletedAt string      `json:"completed_at"`
	Results     []runResult `json:"results"`
}

type runResult struct {
	Idea      string `json:"idea"`
	VideoFile string `json:"video_file,omitempty"`
	Error     string `json:"error,omitempty"`
}

func main() {
	// Load .env for local dev; CI injects real environment variables.
	_ = godotenv.Load()

	log := zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	creds, err := config.LoadCredentials()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load credentials")
	}

	writer, err := script.New(cfg.Script, creds, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init script generator")
	}
	videos, err := video.New(cfg.Video, creds, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init video generator")
	}
	p := pipeline.New(writer, reduce.New(log), videos, log)

	ideas := os.Args[1:]
	if len(ideas) == 0 {
		ideas = defaultIdeas
	}

	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatal().Err(err).Str("dir", runDir).Msg("failed to create run dir")
	}

	log.Info().Str("run_id", runID).Str("output", runDir).Int("ideas", len(ideas)).Msg("pipeline starting")

	ctx := context.Background()
	state := &runState{RunID: runID, StartedAt: time.Now().UTC().Format(time.RFC3339)}
	defer func() {
		state.CompletedAt = time.Now().UTC().Format(time.RFC3339)
		saveJSON(log, filepath.Join(runDir, "run_state.json"), state)
	}()

	for i, idea := range ideas {
		log.Info().Int("idea", i+1).Int("total", len(ideas)).Msg("processing idea")

		result := runResult{Idea: idea}
		path, err := p.Run(ctx, idea, runDir, slug(idea)+".mp4")
		if err != nil {
			// One bad idea must not sink the rest of the batch.
			log.Error().Err(err).Str("idea", idea).Msg("idea failed, continuing")
			result.Error = err.Error()
		} else {
			result.VideoFile = path
		}
		state.Results = append(state.Results, result)

		// Fixed pause between ideas so we stay under upstream rate limits.
		if i < len(ideas)-1 {
			log.Info().Dur("delay", cfg.Run.IdeaDelay.Std()).Msg("waiting before next idea")
			time.Sleep(cfg.Run.IdeaDelay.Std())
		}
	}
}

// slug derives a filesystem-friendly filename stem from the idea text.
func slug(idea string) string {
	s := strings.ToLower(idea)
	if len(s) > 30 {
		s = s[:30]
	}
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "-")

	var b strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}

func saveJSON(log zerolog.Logger, path string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not marshal JSON")
		return
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not save JSON")
	}
}
