// Package generation turns story state into batch requests for the image
// and video generation services, gates those batches, and folds their
// responses back into the story.
package generation

import "github.com/manwarsd/dreamboard/internal/story"

// Action selects what a video batch asks the backend to do.
type Action string

const (
	ActionGenerate Action = "GENERATE"
	ActionMerge    Action = "MERGE"
)

// Mode reports whether a segment is generated from text alone or grounded
// on a seed image.
type Mode string

const (
	ModeTextToVideo  Mode = "text_to_video"
	ModeImageToVideo Mode = "image_to_video"
)

// VideoSegment is one scene inside a video batch request.
type VideoSegment struct {
	SceneID          string           `json:"scene_id"`
	SegmentNumber    int              `json:"segment_number"`
	Prompt           string           `json:"prompt"`
	SeedImage        *story.Image     `json:"seed_image,omitempty"`
	DurationInSecs   int              `json:"duration_in_secs"`
	AspectRatio      string           `json:"aspect_ratio"`
	FramesPerSec     int              `json:"frames_per_sec"`
	PersonGeneration string           `json:"person_generation"`
	SampleCount      int              `json:"sample_count"`
	Seed             *int             `json:"seed,omitempty"`
	NegativePrompt   string           `json:"negative_prompt,omitempty"`
	GenerateAudio    bool             `json:"generate_audio"`
	EnhancePrompt    bool             `json:"enhance_prompt"`
	Transition       story.Transition `json:"transition,omitempty"`
	Regenerate       bool             `json:"regenerate_video_segment"`
	Include          bool             `json:"include_video_segment"`
	SelectedVideo    *story.Video     `json:"selected_video,omitempty"`
}

func (s VideoSegment) Key() story.CorrelationKey {
	return story.CorrelationKey{SceneID: s.SceneID, Number: s.SegmentNumber}
}

func (s VideoSegment) Mode() Mode {
	if s.SeedImage != nil {
		return ModeImageToVideo
	}
	return ModeTextToVideo
}

type CreativeDirection struct {
	Transitions []story.Transition `json:"transitions"`
}

// VideoRequest is the body sent to both video endpoints.
type VideoRequest struct {
	Action            Action             `json:"-"`
	Segments          []VideoSegment     `json:"video_segments"`
	CreativeDirection *CreativeDirection `json:"creative_direction,omitempty"`
}

// VideoResponse is one per-segment result of a generate call, or the single
// result of a merge call. Some backends report the correlation key only on
// the echoed segment.
type VideoResponse struct {
	Done             bool          `json:"done"`
	OperationName    string        `json:"operation_name,omitempty"`
	ExecutionMessage string        `json:"execution_message"`
	SceneID          string        `json:"scene_id,omitempty"`
	SegmentNumber    int           `json:"segment_number,omitempty"`
	Videos           []story.Video `json:"videos"`
	VideoSegment     *VideoSegment `json:"video_segment,omitempty"`
}

func (r VideoResponse) Key() story.CorrelationKey {
	if r.SceneID == "" && r.VideoSegment != nil {
		return r.VideoSegment.Key()
	}
	return story.CorrelationKey{SceneID: r.SceneID, Number: r.SegmentNumber}
}

// ImageCreativeDirection carries the image generation parameters of a scene.
type ImageCreativeDirection struct {
	AspectRatio              string `json:"aspect_ratio"`
	NumberOfImages           int    `json:"number_of_images"`
	OutputMimeType           string `json:"output_mime_type"`
	PersonGeneration         string `json:"person_generation"`
	SafetyFilterLevel        string `json:"safety_filter_level"`
	Language                 string `json:"language"`
	OutputCompressionQuality int    `json:"output_compression_quality"`
	NegativePrompt           string `json:"negative_prompt,omitempty"`
	EnhancePrompt            bool   `json:"enhance_prompt"`
	Seed                     *int   `json:"seed,omitempty"`
}

type ImageScene struct {
	SceneID            string                 `json:"scene_id"`
	SceneNum           int                    `json:"scene_num"`
	ImgPrompt          string                 `json:"img_prompt"`
	CreativeDir        ImageCreativeDirection `json:"creative_dir"`
	ReferenceImages    []story.ReferenceImage `json:"reference_images,omitempty"`
	UseReferenceImages bool                   `json:"use_reference_image_for_image"`
}

type ImageRequest struct {
	Scenes []ImageScene `json:"scenes"`
}

// ImageResponse is the result for one requested scene. The service reports
// the scene only by the number it was requested under; SceneIDs lists the
// ids of the generated images, joined with "|".
type ImageResponse struct {
	Done             bool          `json:"done"`
	OperationName    string        `json:"operation_name,omitempty"`
	ExecutionMessage string        `json:"execution_message"`
	SceneIDs         string        `json:"scene_ids"`
	SegmentNumber    int           `json:"segment_number"`
	Images           []story.Image `json:"images"`
}
