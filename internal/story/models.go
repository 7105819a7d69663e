// Package story holds the storyboard domain model: stories, their ordered
// scenes, and the per-scene image and video generation state.
package story

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxReferenceImages is the most reference images a scene may carry.
const MaxReferenceImages = 4

// Transition is the visual effect applied between a scene and the next one
// when segments are merged.
type Transition string

const (
	TransitionNone        Transition = ""
	TransitionXFade       Transition = "X_FADE"
	TransitionWipe        Transition = "WIPE"
	TransitionZoom        Transition = "ZOOM"
	TransitionZoomWarp    Transition = "ZOOM_WARP"
	TransitionDipToBlack  Transition = "DIP_TO_BLACK"
	TransitionConcatenate Transition = "CONCATENATE"
	TransitionBlur        Transition = "BLUR"
	TransitionSlide       Transition = "SLIDE"
	TransitionSlideWarp   Transition = "SLIDE_WARP"
	TransitionFlicker     Transition = "FLICKER"
)

var transitions = map[Transition]bool{
	TransitionXFade:       true,
	TransitionWipe:        true,
	TransitionZoom:        true,
	TransitionZoomWarp:    true,
	TransitionDipToBlack:  true,
	TransitionConcatenate: true,
	TransitionBlur:        true,
	TransitionSlide:       true,
	TransitionSlideWarp:   true,
	TransitionFlicker:     true,
}

// ParseTransition accepts a transition name in any case. The empty string
// parses to TransitionNone.
func ParseTransition(s string) (Transition, bool) {
	t := Transition(strings.ToUpper(strings.TrimSpace(s)))
	if t == TransitionNone {
		return t, true
	}
	return t, transitions[t]
}

// OrDefault returns CONCATENATE for an unset transition.
func (t Transition) OrDefault() Transition {
	if t == TransitionNone {
		return TransitionConcatenate
	}
	return t
}

// ReferenceType tags how a reference image guides image generation.
type ReferenceType string

const (
	ReferenceRaw        ReferenceType = "RAW"
	ReferenceMask       ReferenceType = "MASK"
	ReferenceSubject    ReferenceType = "SUBJECT"
	ReferenceStyle      ReferenceType = "STYLE"
	ReferenceControlled ReferenceType = "CONTROLLED"
)

func ParseReferenceType(s string) (ReferenceType, bool) {
	rt := ReferenceType(strings.ToUpper(strings.TrimSpace(s)))
	switch rt {
	case ReferenceRaw, ReferenceMask, ReferenceSubject, ReferenceStyle, ReferenceControlled:
		return rt, true
	}
	return "", false
}

// Image is a generated or uploaded image asset.
type Image struct {
	Name        string `json:"name"`
	GCSURI      string `json:"gcs_uri"`
	SignedURI   string `json:"signed_uri"`
	GCSFusePath string `json:"gcs_fuse_path"`
	MimeType    string `json:"mime_type"`
}

// Key returns the signed-access URI that identifies the image among a
// scene's candidates.
func (i Image) Key() string {
	if i.SignedURI != "" {
		return i.SignedURI
	}
	return i.GCSURI
}

// Video is a generated or merged video asset.
type Video struct {
	Name        string   `json:"name"`
	GCSURI      string   `json:"gcs_uri"`
	SignedURI   string   `json:"signed_uri"`
	GCSFusePath string   `json:"gcs_fuse_path"`
	MimeType    string   `json:"mime_type"`
	FramesURIs  []string `json:"frames_uris,omitempty"`
}

func (v Video) Key() string {
	if v.SignedURI != "" {
		return v.SignedURI
	}
	return v.GCSURI
}

type ReferenceImage struct {
	Image
	ReferenceID   int           `json:"reference_id"`
	ReferenceType ReferenceType `json:"reference_type"`
	Description   string        `json:"description,omitempty"`
}

type ImageGenerationSettings struct {
	Prompt                   string           `json:"prompt"`
	AspectRatio              string           `json:"aspect_ratio"`
	NumberOfImages           int              `json:"number_of_images"`
	OutputMimeType           string           `json:"output_mime_type"`
	PersonGeneration         string           `json:"person_generation"`
	SafetyFilterLevel        string           `json:"safety_filter_level"`
	Language                 string           `json:"language"`
	OutputCompressionQuality int              `json:"output_compression_quality"`
	NegativePrompt           string           `json:"negative_prompt,omitempty"`
	EnhancePrompt            bool             `json:"enhance_prompt"`
	Seed                     *int             `json:"seed,omitempty"`
	ReferenceImages          []ReferenceImage `json:"reference_images"`
	GeneratedImages          []Image          `json:"generated_images"`
	Selected                 *Image           `json:"selected_image_for_video,omitempty"`
	SelectedIndex            int              `json:"selected_image_index"`
}

type VideoGenerationSettings struct {
	Prompt              string     `json:"prompt"`
	DurationInSecs      int        `json:"duration_in_secs"`
	AspectRatio         string     `json:"aspect_ratio"`
	FramesPerSec        int        `json:"frames_per_sec"`
	PersonGeneration    string     `json:"person_generation"`
	SampleCount         int        `json:"sample_count"`
	NegativePrompt      string     `json:"negative_prompt,omitempty"`
	Seed                *int       `json:"seed,omitempty"`
	GenerateAudio       bool       `json:"generate_audio"`
	EnhancePrompt       bool       `json:"enhance_prompt"`
	Transition          Transition `json:"transition,omitempty"`
	RegenerateVideo     bool       `json:"regenerate_video"`
	IncludeVideoSegment bool       `json:"include_video_segment"`
	GeneratedVideos     []Video    `json:"generated_videos"`
	Selected            *Video     `json:"selected_video,omitempty"`
	SelectedIndex       int        `json:"selected_video_index"`
}

// DefaultImageSettings returns the settings a new scene starts with.
func DefaultImageSettings() ImageGenerationSettings {
	return ImageGenerationSettings{
		AspectRatio:              "1:1",
		NumberOfImages:           1,
		OutputMimeType:           "image/png",
		PersonGeneration:         "allow_adult",
		SafetyFilterLevel:        "BLOCK_ONLY_HIGH",
		Language:                 "en",
		OutputCompressionQuality: 75,
		EnhancePrompt:            true,
		ReferenceImages:          []ReferenceImage{},
		GeneratedImages:          []Image{},
		SelectedIndex:            -1,
	}
}

func DefaultVideoSettings() VideoGenerationSettings {
	return VideoGenerationSettings{
		DurationInSecs:      8,
		AspectRatio:         "16:9",
		FramesPerSec:        24,
		PersonGeneration:    "allow_adult",
		SampleCount:         1,
		EnhancePrompt:       true,
		IncludeVideoSegment: true,
		GeneratedVideos:     []Video{},
		SelectedIndex:       -1,
	}
}

// CorrelationKey pairs a scene id with its number. It is carried on both
// sides of a batch round trip to match responses back to scenes.
type CorrelationKey struct {
	SceneID string
	Number  int
}

type Scene struct {
	ID            string                  `json:"id"`
	Number        int                     `json:"number"`
	Description   string                  `json:"description"`
	ImageSettings ImageGenerationSettings `json:"image_generation_settings"`
	VideoSettings VideoGenerationSettings `json:"video_generation_settings"`
}

func NewScene(number int) *Scene {
	return &Scene{
		ID:            NewID(),
		Number:        number,
		ImageSettings: DefaultImageSettings(),
		VideoSettings: DefaultVideoSettings(),
	}
}

func (s *Scene) Key() CorrelationKey {
	return CorrelationKey{SceneID: s.ID, Number: s.Number}
}

// SeedImage returns the image selected to ground image-to-video generation.
func (s *Scene) SeedImage() *Image {
	return s.ImageSettings.Selected
}

// SetReferenceImages replaces the reference set, renumbering reference ids
// from 1.
func (s *Scene) SetReferenceImages(refs []ReferenceImage) error {
	if len(refs) > MaxReferenceImages {
		return &LimitError{What: "reference images", Max: MaxReferenceImages, Got: len(refs)}
	}
	out := make([]ReferenceImage, len(refs))
	for i, r := range refs {
		r.ReferenceID = i + 1
		out[i] = r
	}
	s.ImageSettings.ReferenceImages = out
	return nil
}

// AddReferenceImage appends one reference image, keeping the set at most
// MaxReferenceImages long.
func (s *Scene) AddReferenceImage(img Image, kind ReferenceType, description string) error {
	refs := append(append([]ReferenceImage(nil), s.ImageSettings.ReferenceImages...), ReferenceImage{
		Image:         img,
		ReferenceType: kind,
		Description:   description,
	})
	return s.SetReferenceImages(refs)
}

type Story struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Scenes      []*Scene  `json:"scenes"`
	FinalVideos []Video   `json:"final_videos"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewStory(title, description string) *Story {
	now := time.Now().UTC()
	return &Story{
		ID:          NewID(),
		Title:       title,
		Description: description,
		Scenes:      []*Scene{},
		FinalVideos: []Video{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Reset turns the story into a fresh empty one under the same id. It is
// used in place of keeping a story with zero scenes around.
func (st *Story) Reset() {
	fresh := NewStory(st.Title, st.Description)
	fresh.ID = st.ID
	*st = *fresh
}

func (st *Story) Scene(id string) *Scene {
	for _, s := range st.Scenes {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (st *Story) SceneByNumber(n int) *Scene {
	if n < 1 || n > len(st.Scenes) {
		return nil
	}
	return st.Scenes[n-1]
}

// FinalVideo returns the merged video, if any.
func (st *Story) FinalVideo() *Video {
	if len(st.FinalVideos) == 0 {
		return nil
	}
	v := st.FinalVideos[0]
	return &v
}

// Clone returns a deep copy of the story.
func (st *Story) Clone() *Story {
	c := *st
	c.Scenes = make([]*Scene, len(st.Scenes))
	for i, s := range st.Scenes {
		c.Scenes[i] = s.Clone()
	}
	c.FinalVideos = cloneVideos(st.FinalVideos)
	return &c
}

// Clone returns a deep copy of the scene.
func (s *Scene) Clone() *Scene {
	c := *s
	c.ImageSettings.ReferenceImages = append([]ReferenceImage{}, s.ImageSettings.ReferenceImages...)
	c.ImageSettings.GeneratedImages = append([]Image{}, s.ImageSettings.GeneratedImages...)
	if s.ImageSettings.Selected != nil {
		img := *s.ImageSettings.Selected
		c.ImageSettings.Selected = &img
	}
	if s.ImageSettings.Seed != nil {
		seed := *s.ImageSettings.Seed
		c.ImageSettings.Seed = &seed
	}
	c.VideoSettings.GeneratedVideos = cloneVideos(s.VideoSettings.GeneratedVideos)
	if s.VideoSettings.Selected != nil {
		v := cloneVideo(*s.VideoSettings.Selected)
		c.VideoSettings.Selected = &v
	}
	if s.VideoSettings.Seed != nil {
		seed := *s.VideoSettings.Seed
		c.VideoSettings.Seed = &seed
	}
	return &c
}

func cloneVideos(in []Video) []Video {
	out := make([]Video, len(in))
	for i, v := range in {
		out[i] = cloneVideo(v)
	}
	return out
}

func cloneVideo(v Video) Video {
	v.FramesURIs = append([]string(nil), v.FramesURIs...)
	return v
}

// NewID returns a random opaque identifier.
func NewID() string {
	return uuid.NewString()
}
