package catalog

import (
	"fmt"

	"github.com/manwarsd/dreamboard/internal/story"
)

// ScenePatch holds user edits to a scene. Nil fields are left unchanged.
type ScenePatch struct {
	Description *string `json:"description,omitempty"`

	ImagePrompt         *string `json:"image_prompt,omitempty"`
	ImageAspectRatio    *string `json:"image_aspect_ratio,omitempty"`
	NumberOfImages      *int    `json:"number_of_images,omitempty"`
	ImageNegativePrompt *string `json:"image_negative_prompt,omitempty"`
	PersonGeneration    *string `json:"person_generation,omitempty"`
	SafetyFilterLevel   *string `json:"safety_filter_level,omitempty"`
	Language            *string `json:"language,omitempty"`
	OutputMimeType      *string `json:"output_mime_type,omitempty"`

	VideoPrompt         *string `json:"video_prompt,omitempty"`
	DurationInSecs      *int    `json:"duration_in_secs,omitempty"`
	VideoAspectRatio    *string `json:"video_aspect_ratio,omitempty"`
	FramesPerSec        *int    `json:"frames_per_sec,omitempty"`
	SampleCount         *int    `json:"sample_count,omitempty"`
	VideoNegativePrompt *string `json:"video_negative_prompt,omitempty"`
	GenerateAudio       *bool   `json:"generate_audio,omitempty"`
	EnhancePrompt       *bool   `json:"enhance_prompt,omitempty"`
	Transition          *string `json:"transition,omitempty"`
	RegenerateVideo     *bool   `json:"regenerate_video,omitempty"`
	IncludeVideoSegment *bool   `json:"include_video_segment,omitempty"`
}

// Apply validates the patch and writes it to s. On error s is unchanged.
func (p ScenePatch) Apply(s *story.Scene) error {
	var transition story.Transition
	if p.Transition != nil {
		t, ok := story.ParseTransition(*p.Transition)
		if !ok {
			return fmt.Errorf("%w: unknown transition %q", ErrInvalidInput, *p.Transition)
		}
		transition = t
	}
	for name, v := range map[string]*int{
		"number_of_images": p.NumberOfImages,
		"duration_in_secs": p.DurationInSecs,
		"frames_per_sec":   p.FramesPerSec,
		"sample_count":     p.SampleCount,
	} {
		if v != nil && *v < 1 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidInput, name)
		}
	}

	setString(&s.Description, p.Description)

	is := &s.ImageSettings
	setString(&is.Prompt, p.ImagePrompt)
	setString(&is.AspectRatio, p.ImageAspectRatio)
	setInt(&is.NumberOfImages, p.NumberOfImages)
	setString(&is.NegativePrompt, p.ImageNegativePrompt)
	setString(&is.PersonGeneration, p.PersonGeneration)
	setString(&is.SafetyFilterLevel, p.SafetyFilterLevel)
	setString(&is.Language, p.Language)
	setString(&is.OutputMimeType, p.OutputMimeType)

	vs := &s.VideoSettings
	setString(&vs.Prompt, p.VideoPrompt)
	setInt(&vs.DurationInSecs, p.DurationInSecs)
	setString(&vs.AspectRatio, p.VideoAspectRatio)
	setInt(&vs.FramesPerSec, p.FramesPerSec)
	setInt(&vs.SampleCount, p.SampleCount)
	setString(&vs.NegativePrompt, p.VideoNegativePrompt)
	setBool(&vs.GenerateAudio, p.GenerateAudio)
	setBool(&vs.EnhancePrompt, p.EnhancePrompt)
	setBool(&vs.RegenerateVideo, p.RegenerateVideo)
	setBool(&vs.IncludeVideoSegment, p.IncludeVideoSegment)
	if p.Transition != nil {
		vs.Transition = transition
	}
	if p.PersonGeneration != nil {
		vs.PersonGeneration = *p.PersonGeneration
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}
