// Package pipeline sequences script generation, prompt reduction and video
// generation for a single idea.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"clipforge-pipeline/reduce"
	"clipforge-pipeline/script"
)

// ScriptGenerator produces a validated script document for an idea.
type ScriptGenerator interface {
	Generate(ctx context.Context, idea string) (*script.VideoScript, error)
}

// VideoGenerator renders a prompt and returns the written file path.
type VideoGenerator interface {
	Generate(ctx context.Context, prompt, outputDir, filename string) (string, error)
}

type Pipeline struct {
	scripts ScriptGenerator
	reducer *reduce.Reducer
	videos  VideoGenerator
	log     zerolog.Logger
}

func New(scripts ScriptGenerator, reducer *reduce.Reducer, videos VideoGenerator, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		scripts: scripts,
		reducer: reducer,
		videos:  videos,
		log:     log.With().Str("component", "pipeline").Logger(),
	}
}

// Run takes one idea end to end. Errors propagate untouched; the caller owns
// the decision to continue with the next idea.
func (p *Pipeline) Run(ctx context.Context, idea, outputDir, filename string) (string, error) {
	doc, err := p.scripts.Generate(ctx, idea)
	if err != nil {
		return "", err
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("serialize script: %w", err)
	}

	prompt, err := p.reducer.Reduce(string(raw))
	if err != nil {
		return "", err
	}
	p.log.Info().Int("prompt_len", len(prompt)).Msg("script reduced to video prompt")

	return p.videos.Generate(ctx, prompt, outputDir, filename)
}
