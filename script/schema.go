package script

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// VideoScript is the root document the completion service produces for one
// idea: the cast plus an ordered list of clips. Field names mirror the JSON
// the model is instructed to emit.
type VideoScript struct {
	Characters []CharacterProfile `json:"characters" validate:"dive"`
	Clips      []Clip             `json:"clips" validate:"min=1,dive"`
}

// CharacterProfile pins down a character's consistent look and behavior.
// Clips reference characters by name; there is no enforced link.
type CharacterProfile struct {
	Name                string  `json:"name" validate:"required"`
	Age                 int     `json:"age" validate:"required"`
	Height              string  `json:"height" validate:"required"`
	Build               string  `json:"build" validate:"required"`
	SkinTone            string  `json:"skin_tone" validate:"required"`
	Hair                string  `json:"hair" validate:"required"`
	Eyes                string  `json:"eyes" validate:"required"`
	DistinguishingMarks string  `json:"distinguishing_marks"`
	Demeanour           string  `json:"demeanour" validate:"required"`
	DefaultOutfit       string  `json:"default_outfit" validate:"required"`
	MouthShapeIntensity float64 `json:"mouth_shape_intensity" validate:"min=0,max=1"`
	EyeContactRatio     float64 `json:"eye_contact_ratio" validate:"min=0,max=1"`
}

// Clip is one video segment.
type Clip struct {
	ID             string         `json:"id"`
	Shot           Shot           `json:"shot"`
	Subject        Subject        `json:"subject"`
	Scene          Scene          `json:"scene"`
	VisualDetails  VisualDetails  `json:"visual_details"`
	Cinematography Cinematography `json:"cinematography"`
	AudioTrack     AudioTrack     `json:"audio_track"`
	Dialogue       Dialogue       `json:"dialogue"`
	Performance    *Performance   `json:"performance,omitempty"`
	DurationSec    int            `json:"duration_sec" validate:"min=1"`
	AspectRatio    string         `json:"aspect_ratio"`
}

// Shot holds the technical camera details for a clip.
type Shot struct {
	Composition  string  `json:"composition" validate:"required"`
	CameraMotion string  `json:"camera_motion"`
	FrameRate    string  `json:"frame_rate"`
	FilmGrain    float64 `json:"film_grain"`
	Camera       string  `json:"camera"`
}

// Subject describes the character's in-scene appearance and wardrobe.
type Subject struct {
	Description string `json:"description" validate:"required"`
	Wardrobe    string `json:"wardrobe"`
}

// Scene describes the setting and environment.
type Scene struct {
	Location    string `json:"location" validate:"required"`
	TimeOfDay   string `json:"time_of_day"`
	Environment string `json:"environment"`
}

// VisualDetails describes the actions and props.
type VisualDetails struct {
	Action string `json:"action" validate:"required"`
	Props  string `json:"props"`
}

// Cinematography sets the artistic visual style.
type Cinematography struct {
	Lighting   string `json:"lighting" validate:"required"`
	Tone       string `json:"tone" validate:"required"`
	ColorGrade string `json:"color_grade" validate:"required"`
}

// AudioTrack defines the sound elements for a clip, with optional external
// audio references.
type AudioTrack struct {
	Lyrics           string `json:"lyrics"`
	Emotion          string `json:"emotion"`
	Flow             string `json:"flow"`
	WaveDownloadURL  string `json:"wave_download_url,omitempty" validate:"omitempty,url"`
	YouTubeReference string `json:"youtube_reference,omitempty" validate:"omitempty,url"`
	AudioBase64      string `json:"audio_base64,omitempty"`
	Format           string `json:"format"`
	SampleRateHz     int    `json:"sample_rate_hz"`
	Channels         int    `json:"channels"`
	Style            string `json:"style"`
}

// Dialogue is a spoken line. Subtitles must always stay false; the renderer
// never burns text into the video.
type Dialogue struct {
	Character string `json:"character"`
	Line      string `json:"line"`
	Subtitles bool   `json:"subtitles"`
}

// Performance carries clip-level overrides of the character's lip-sync and
// eye-contact defaults.
type Performance struct {
	MouthShapeIntensity *float64 `json:"mouth_shape_intensity,omitempty" validate:"omitempty,min=0,max=1"`
	EyeContactRatio     *float64 `json:"eye_contact_ratio,omitempty" validate:"omitempty,min=0,max=1"`
}

// SchemaViolationError reports a parsed document that does not conform to the
// script schema, naming the offending field path.
type SchemaViolationError struct {
	Field  string
	Reason string
}

func (e *SchemaViolationError) Error() string {
	return fmt.Sprintf("script schema violation at %s: %s", e.Field, e.Reason)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report violations under the JSON field names the model actually emits.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "" || name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks the decoded document against the schema so structurally
// wrong JSON fails here with a field path instead of surfacing later as an
// unrelated access error. It also enforces the two document invariants the
// tags cannot express: clip ids are unique and subtitles stay off.
func (s *VideoScript) Validate() error {
	if err := validate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &SchemaViolationError{
				Field:  fieldPath(fe.Namespace()),
				Reason: fmt.Sprintf("failed %q constraint", fe.Tag()),
			}
		}
		return err
	}

	seen := make(map[string]int, len(s.Clips))
	for i, clip := range s.Clips {
		if clip.Dialogue.Subtitles {
			return &SchemaViolationError{
				Field:  fmt.Sprintf("clips[%d].dialogue.subtitles", i),
				Reason: "subtitles must always be false",
			}
		}
		if clip.ID == "" {
			continue
		}
		if prev, dup := seen[clip.ID]; dup {
			return &SchemaViolationError{
				Field:  fmt.Sprintf("clips[%d].id", i),
				Reason: fmt.Sprintf("duplicate clip id %q (first used by clips[%d])", clip.ID, prev),
			}
		}
		seen[clip.ID] = i
	}
	return nil
}

// fieldPath strips the root struct name from validator's namespace, leaving
// "clips[0].shot.composition" style paths.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
