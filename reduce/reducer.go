// Package reduce condenses a script document into the single bounded-length
// prompt the video service accepts.
package reduce

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"clipforge-pipeline/sanitize"
	"clipforge-pipeline/script"
)

const (
	// maxPromptLen keeps the reduced prompt inside the video service's
	// comfortable range; anything longer gets cut to 397 chars plus "...".
	maxPromptLen = 400
	// fallbackLen bounds how much raw text we take when the input is not a
	// usable script document.
	fallbackLen = 500
)

// MalformedScriptError reports a script whose first clip is missing a field
// the reduction needs.
type MalformedScriptError struct {
	Path string
}

func (e *MalformedScriptError) Error() string {
	return fmt.Sprintf("malformed script: missing required field %s", e.Path)
}

// Reducer builds video prompts from serialized script documents.
type Reducer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Reducer {
	return &Reducer{log: log.With().Str("component", "reduce").Logger()}
}

// Reduce parses the script JSON and concatenates the first clip's visual
// fields in a fixed order. Input that does not parse, or parses to a document
// without clips, falls back to the leading slice of the raw text. Either way
// the result is sanitized and capped.
func (r *Reducer) Reduce(scriptJSON string) (string, error) {
	var doc script.VideoScript
	if err := json.Unmarshal([]byte(scriptJSON), &doc); err != nil {
		r.log.Warn().Err(err).Msg("script not parseable, falling back to raw text")
		return capPrompt(sanitize.Clean(head(scriptJSON, fallbackLen), false)), nil
	}
	if len(doc.Clips) == 0 {
		r.log.Warn().Msg("script has no clips, falling back to raw text")
		return capPrompt(sanitize.Clean(head(scriptJSON, fallbackLen), false)), nil
	}

	clip := doc.Clips[0]
	for _, f := range []struct {
		path  string
		value string
	}{
		{"clips[0].cinematography.tone", clip.Cinematography.Tone},
		{"clips[0].subject.description", clip.Subject.Description},
		{"clips[0].visual_details.action", clip.VisualDetails.Action},
		{"clips[0].scene.location", clip.Scene.Location},
		{"clips[0].shot.composition", clip.Shot.Composition},
		{"clips[0].cinematography.lighting", clip.Cinematography.Lighting},
		{"clips[0].cinematography.color_grade", clip.Cinematography.ColorGrade},
	} {
		if strings.TrimSpace(f.value) == "" {
			return "", &MalformedScriptError{Path: f.path}
		}
	}

	var b strings.Builder
	b.WriteString(clip.Cinematography.Tone + " scene: ")
	b.WriteString(clip.Subject.Description + ". ")
	b.WriteString(clip.VisualDetails.Action + " ")
	b.WriteString("Location: " + clip.Scene.Location + ". ")
	b.WriteString("Shot: " + clip.Shot.Composition + ". ")
	b.WriteString("Lighting: " + clip.Cinematography.Lighting + ". ")
	b.WriteString("Color grade: " + clip.Cinematography.ColorGrade + ".")
	if clip.Dialogue.Line != "" {
		b.WriteString(" Character says: '" + clip.Dialogue.Line + "'")
	}

	return capPrompt(sanitize.Clean(b.String(), false)), nil
}

func head(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func capPrompt(s string) string {
	runes := []rune(s)
	if len(runes) <= maxPromptLen {
		return s
	}
	return string(runes[:maxPromptLen-3]) + "..."
}
