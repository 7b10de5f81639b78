package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clipforge-pipeline/reduce"
	"clipforge-pipeline/script"
)

type fakeScripts struct {
	doc *script.VideoScript
	err error
}

func (f *fakeScripts) Generate(ctx context.Context, idea string) (*script.VideoScript, error) {
	return f.doc, f.err
}

type fakeVideos struct {
	gotPrompt string
	gotDir    string
	gotFile   string
	path      string
	err       error
}

func (f *fakeVideos) Generate(ctx context.Context, prompt, outputDir, filename string) (string, error) {
	f.gotPrompt = prompt
	f.gotDir = outputDir
	f.gotFile = filename
	return f.path, f.err
}

func testDoc() *script.VideoScript {
	return &script.VideoScript{
		Clips: []script.Clip{{
			ID:             "c1",
			Shot:           script.Shot{Composition: "wide"},
			Subject:        script.Subject{Description: "A"},
			Scene:          script.Scene{Location: "street"},
			VisualDetails:  script.VisualDetails{Action: "runs"},
			Cinematography: script.Cinematography{Lighting: "dim", Tone: "dark", ColorGrade: "teal"},
			Dialogue:       script.Dialogue{Character: "N", Line: "Hello"},
			DurationSec:    8,
		}},
	}
}

func TestRunSequencesStages(t *testing.T) {
	videos := &fakeVideos{path: "/out/run/clip.mp4"}
	p := New(&fakeScripts{doc: testDoc()}, reduce.New(zerolog.Nop()), videos, zerolog.Nop())

	path, err := p.Run(context.Background(), "an idea", "/out/run", "clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "/out/run/clip.mp4", path)
	assert.Equal(t, "/out/run", videos.gotDir)
	assert.Equal(t, "clip.mp4", videos.gotFile)
	assert.Equal(t,
		"dark scene: A. runs Location: street. Shot: wide. Lighting: dim. Color grade: teal. Character says: 'Hello'",
		videos.gotPrompt)
}

func TestRunPropagatesScriptError(t *testing.T) {
	genErr := &script.GenerationError{Attempts: 3, Last: errors.New("timeout")}
	videos := &fakeVideos{}
	p := New(&fakeScripts{err: genErr}, reduce.New(zerolog.Nop()), videos, zerolog.Nop())

	_, err := p.Run(context.Background(), "an idea", "/out", "clip.mp4")
	var got *script.GenerationError
	require.ErrorAs(t, err, &got)
	assert.Empty(t, videos.gotPrompt, "video stage must not run after script failure")
}

func TestRunPropagatesReducerError(t *testing.T) {
	doc := testDoc()
	doc.Clips[0].Cinematography.Lighting = ""
	videos := &fakeVideos{}
	p := New(&fakeScripts{doc: doc}, reduce.New(zerolog.Nop()), videos, zerolog.Nop())

	_, err := p.Run(context.Background(), "an idea", "/out", "clip.mp4")
	var malformed *reduce.MalformedScriptError
	require.ErrorAs(t, err, &malformed)
	assert.Empty(t, videos.gotPrompt)
}

func TestRunPropagatesVideoError(t *testing.T) {
	videoErr := errors.New("video service: create prediction: boom")
	p := New(&fakeScripts{doc: testDoc()}, reduce.New(zerolog.Nop()), &fakeVideos{err: videoErr}, zerolog.Nop())

	_, err := p.Run(context.Background(), "an idea", "/out", "clip.mp4")
	assert.ErrorIs(t, err, videoErr)
}
