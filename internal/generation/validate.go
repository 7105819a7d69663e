package generation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manwarsd/dreamboard/internal/story"
)

// Report is the pre-flight diagnosis of a story. All fields hold scene
// numbers.
type Report struct {
	ScenesMissingSelection []int `json:"scenes_missing_selection"`
	ScenesMissingPrompt    []int `json:"scenes_missing_prompt"`
	ScenesToGenerate       []int `json:"scenes_to_generate"`
	ScenesToMerge          []int `json:"scenes_to_merge"`
}

// Validate inspects every scene regardless of its batch flags.
func Validate(st *story.Story) Report {
	r := Report{
		ScenesMissingSelection: []int{},
		ScenesMissingPrompt:    []int{},
		ScenesToGenerate:       []int{},
		ScenesToMerge:          []int{},
	}
	for _, s := range st.Scenes {
		vs := s.VideoSettings
		if s.SeedImage() == nil && blank(vs.Prompt) {
			r.ScenesMissingPrompt = append(r.ScenesMissingPrompt, s.Number)
		}
		if vs.IncludeVideoSegment && vs.Selected == nil {
			r.ScenesMissingSelection = append(r.ScenesMissingSelection, s.Number)
		}
		if vs.RegenerateVideo {
			r.ScenesToGenerate = append(r.ScenesToGenerate, s.Number)
		}
		if vs.IncludeVideoSegment {
			r.ScenesToMerge = append(r.ScenesToMerge, s.Number)
		}
	}
	return r
}

// CheckGenerate returns a *ValidationError when a video GENERATE batch must
// not be sent.
func (r Report) CheckGenerate() error {
	if len(r.ScenesMissingPrompt) > 0 {
		return &ValidationError{Action: ActionGenerate, Reason: ReasonMissingPrompt, Scenes: r.ScenesMissingPrompt}
	}
	if len(r.ScenesToGenerate) == 0 {
		return &ValidationError{Action: ActionGenerate, Reason: ReasonNothingSelected}
	}
	return nil
}

// CheckMerge returns a *ValidationError when a MERGE batch must not be sent.
func (r Report) CheckMerge() error {
	if len(r.ScenesMissingSelection) > 0 {
		return &ValidationError{Action: ActionMerge, Reason: ReasonMissingSelection, Scenes: r.ScenesMissingSelection}
	}
	if len(r.ScenesToMerge) == 0 {
		return &ValidationError{Action: ActionMerge, Reason: ReasonNothingSelected}
	}
	return nil
}

// Check dispatches to CheckGenerate or CheckMerge.
func (r Report) Check(action Action) error {
	if action == ActionMerge {
		return r.CheckMerge()
	}
	return r.CheckGenerate()
}

// ImageReport gates an image batch.
type ImageReport struct {
	ScenesMissingImagePrompt []int `json:"scenes_missing_image_prompt"`
	ScenesToGenerate         []int `json:"scenes_to_generate"`
}

func ValidateImages(st *story.Story) ImageReport {
	r := ImageReport{ScenesMissingImagePrompt: []int{}, ScenesToGenerate: []int{}}
	for _, s := range st.Scenes {
		if blank(s.ImageSettings.Prompt) {
			r.ScenesMissingImagePrompt = append(r.ScenesMissingImagePrompt, s.Number)
			continue
		}
		r.ScenesToGenerate = append(r.ScenesToGenerate, s.Number)
	}
	return r
}

// Check refuses an image batch with no prompts at all. Scenes without a
// prompt are skipped rather than blocking the others.
func (r ImageReport) Check() error {
	if len(r.ScenesToGenerate) == 0 {
		return &ValidationError{Action: ActionImages, Reason: ReasonMissingPrompt, Scenes: r.ScenesMissingImagePrompt}
	}
	return nil
}

// ActionImages labels image batches in diagnostics.
const ActionImages Action = "IMAGES"

type Reason string

const (
	ReasonMissingPrompt    Reason = "missing_prompt"
	ReasonMissingSelection Reason = "missing_selection"
	ReasonNothingSelected  Reason = "no_scenes"
)

// ValidationError explains why a batch was refused before any network call.
type ValidationError struct {
	Action Action
	Reason Reason
	Scenes []int
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonMissingPrompt:
		if e.Action == ActionImages {
			return "no scene has an image prompt"
		}
		return fmt.Sprintf("%s needs a prompt or a seed image: %s", plural(e.Scenes), joinNumbers(e.Scenes))
	case ReasonMissingSelection:
		return fmt.Sprintf("%s included in the merge without a selected video: %s", plural(e.Scenes), joinNumbers(e.Scenes))
	case ReasonNothingSelected:
		if e.Action == ActionMerge {
			return "no scenes are included in the merge"
		}
		return "no scenes are marked for generation"
	}
	return fmt.Sprintf("%s refused", strings.ToLower(string(e.Action)))
}

func plural(nums []int) string {
	if len(nums) == 1 {
		return "scene"
	}
	return "scenes"
}

func joinNumbers(nums []int) string {
	parts := make([]string, len(nums))
	for i, n := range nums {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
