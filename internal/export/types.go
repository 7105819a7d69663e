package export

import "github.com/manwarsd/dreamboard/internal/story"

// Clip is one scene's selected video in assembly order.
type Clip struct {
	Name        string
	MediaPath   string
	SceneNumber int
	DurationMs  int
	// Transition into the next clip. Empty for the last clip.
	Transition story.Transition
}

// Assembly is the exportable cut of a story.
type Assembly struct {
	Title     string
	FrameRate float64
	Clips     []Clip
	// Scenes included in the merge that have no selected video.
	Unresolved []int
}

type ExportResponse struct {
	Status          string `json:"status"`
	Format          string `json:"format"`
	OutputPath      string `json:"output_path,omitempty"`
	ClipCount       int    `json:"clip_count"`
	UnresolvedClips []int  `json:"unresolved_scenes"`
}
