package generation

import "github.com/manwarsd/dreamboard/internal/story"

// Eligible reports whether a scene takes part in a batch for action.
func Eligible(action Action, s *story.Scene) bool {
	switch action {
	case ActionGenerate:
		return s.VideoSettings.RegenerateVideo
	case ActionMerge:
		return s.VideoSettings.IncludeVideoSegment
	}
	return false
}

// BuildVideoRequest projects the story into a video batch for action, one
// segment per eligible scene in story order. It does not modify the story.
func BuildVideoRequest(action Action, st *story.Story) VideoRequest {
	req := VideoRequest{Action: action, Segments: []VideoSegment{}}
	for _, s := range st.Scenes {
		if !Eligible(action, s) {
			continue
		}
		req.Segments = append(req.Segments, buildSegment(action, s))
	}

	if action == ActionMerge {
		// Transitions label the boundary after a segment, so the last one
		// has none. Every other segment carries one explicitly: the merge
		// collects only the transitions that are set, and a gap would shift
		// the rest onto the wrong boundaries.
		dir := &CreativeDirection{Transitions: []story.Transition{}}
		for i := range req.Segments {
			if i == len(req.Segments)-1 {
				req.Segments[i].Transition = story.TransitionNone
				continue
			}
			req.Segments[i].Transition = req.Segments[i].Transition.OrDefault()
			dir.Transitions = append(dir.Transitions, req.Segments[i].Transition)
		}
		req.CreativeDirection = dir
	}
	return req
}

func buildSegment(action Action, s *story.Scene) VideoSegment {
	vs := s.VideoSettings
	seg := VideoSegment{
		SceneID:          s.ID,
		SegmentNumber:    s.Number,
		Prompt:           vs.Prompt,
		DurationInSecs:   vs.DurationInSecs,
		AspectRatio:      vs.AspectRatio,
		FramesPerSec:     vs.FramesPerSec,
		PersonGeneration: vs.PersonGeneration,
		SampleCount:      vs.SampleCount,
		NegativePrompt:   vs.NegativePrompt,
		GenerateAudio:    vs.GenerateAudio,
		EnhancePrompt:    vs.EnhancePrompt,
		Transition:       vs.Transition,
		Regenerate:       vs.RegenerateVideo,
		Include:          vs.IncludeVideoSegment,
	}
	if vs.Seed != nil {
		seed := *vs.Seed
		seg.Seed = &seed
	}
	if img := s.SeedImage(); img != nil {
		seed := *img
		seg.SeedImage = &seed
	}
	if action == ActionMerge && vs.Selected != nil {
		v := *vs.Selected
		seg.SelectedVideo = &v
	}
	return seg
}

// BuildImageRequest projects every scene with an image prompt into an image
// batch.
func BuildImageRequest(st *story.Story) ImageRequest {
	req := ImageRequest{Scenes: []ImageScene{}}
	for _, s := range st.Scenes {
		is := s.ImageSettings
		if blank(is.Prompt) {
			continue
		}
		scene := ImageScene{
			SceneID:   s.ID,
			SceneNum:  s.Number,
			ImgPrompt: is.Prompt,
			CreativeDir: ImageCreativeDirection{
				AspectRatio:              is.AspectRatio,
				NumberOfImages:           is.NumberOfImages,
				OutputMimeType:           is.OutputMimeType,
				PersonGeneration:         is.PersonGeneration,
				SafetyFilterLevel:        is.SafetyFilterLevel,
				Language:                 is.Language,
				OutputCompressionQuality: is.OutputCompressionQuality,
				NegativePrompt:           is.NegativePrompt,
				EnhancePrompt:            is.EnhancePrompt,
				Seed:                     is.Seed,
			},
		}
		if len(is.ReferenceImages) > 0 {
			scene.ReferenceImages = append([]story.ReferenceImage(nil), is.ReferenceImages...)
			scene.UseReferenceImages = true
		}
		req.Scenes = append(req.Scenes, scene)
	}
	return req
}
