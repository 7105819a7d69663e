package generation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/manwarsd/dreamboard/internal/story"
)

type Outcome string

const (
	OutcomeGenerated    Outcome = "generated"
	OutcomeFailed       Outcome = "failed"
	OutcomeNotProcessed Outcome = "not_processed"
)

// SceneOutcome is one line of a batch summary.
type SceneOutcome struct {
	SceneID     string  `json:"scene_id"`
	SceneNumber int     `json:"scene_number"`
	Outcome     Outcome `json:"outcome"`
	Candidates  int     `json:"candidates,omitempty"`
	Message     string  `json:"message"`
}

// Summary aggregates the per-scene outcomes of one batch.
type Summary struct {
	Scenes     []SceneOutcome `json:"scenes"`
	Processed  int            `json:"processed"`
	Failed     int            `json:"failed"`
	Skipped    int            `json:"skipped"`
	Duplicates int            `json:"duplicates"`
	Orphans    int            `json:"orphans"`
}

// String renders the summary one scene per line.
func (s Summary) String() string {
	lines := make([]string, len(s.Scenes))
	for i, o := range s.Scenes {
		lines[i] = o.Message
	}
	return strings.Join(lines, "\n")
}

// index maps keys to the first response carrying them.
type index[K comparable, R any] struct {
	byKey      map[K]R
	duplicates int
}

func newIndex[K comparable, R any](responses []R, key func(R) K) index[K, R] {
	idx := index[K, R]{byKey: make(map[K]R, len(responses))}
	for _, r := range responses {
		k := key(r)
		if _, ok := idx.byKey[k]; ok {
			idx.duplicates++
			continue
		}
		idx.byKey[k] = r
	}
	return idx
}

// videoOrphans counts indexed keys that match no scene in st.
func videoOrphans(idx index[story.CorrelationKey, VideoResponse], st *story.Story) int {
	n := 0
	for k := range idx.byKey {
		s := st.Scene(k.SceneID)
		if s == nil || s.Number != k.Number {
			n++
		}
	}
	return n
}

// ReconcileVideos folds a GENERATE batch response into the story. Every
// scene gets exactly one summary line; a failed scene never affects the
// others. Entries for scenes that no longer exist are ignored.
func ReconcileVideos(st *story.Story, responses []VideoResponse) Summary {
	idx := newIndex(responses, VideoResponse.Key)
	sum := Summary{Scenes: []SceneOutcome{}, Duplicates: idx.duplicates, Orphans: videoOrphans(idx, st)}

	for _, s := range st.Scenes {
		r, ok := idx.byKey[s.Key()]
		switch {
		case !ok:
			sum.add(notProcessed(s))
		case r.Done:
			s.VideoSelection().Append(r.Videos...)
			sum.add(SceneOutcome{
				SceneID:     s.ID,
				SceneNumber: s.Number,
				Outcome:     OutcomeGenerated,
				Candidates:  len(r.Videos),
				Message:     fmt.Sprintf("Scene %d: %d video(s) generated.", s.Number, len(r.Videos)),
			})
		default:
			sum.add(failed(s, r.ExecutionMessage))
		}
	}
	return sum
}

// ReconcileImages is ReconcileVideos for the image track; the first image of
// a first successful result becomes the scene's seed image.
//
// Image results carry only the scene number of the request. sent is the
// request's scene list and maps those numbers back to scene ids, so a scene
// renumbered while the batch ran still gets its own images. A nil sent
// matches numbers against st as it is now.
func ReconcileImages(st *story.Story, sent []ImageScene, responses []ImageResponse) Summary {
	idx := newIndex(responses, func(r ImageResponse) int { return r.SegmentNumber })

	owner := make(map[int]string, len(st.Scenes))
	if sent == nil {
		for _, s := range st.Scenes {
			owner[s.Number] = s.ID
		}
	}
	for _, is := range sent {
		owner[is.SceneNum] = is.SceneID
	}

	byScene := make(map[string]ImageResponse, len(idx.byKey))
	orphans := 0
	for n, r := range idx.byKey {
		id, ok := owner[n]
		if !ok || st.Scene(id) == nil {
			orphans++
			continue
		}
		byScene[id] = r
	}
	sum := Summary{Scenes: []SceneOutcome{}, Duplicates: idx.duplicates, Orphans: orphans}

	for _, s := range st.Scenes {
		r, ok := byScene[s.ID]
		switch {
		case !ok:
			sum.add(notProcessed(s))
		case r.Done:
			s.ImageSelection().Append(r.Images...)
			sum.add(SceneOutcome{
				SceneID:     s.ID,
				SceneNumber: s.Number,
				Outcome:     OutcomeGenerated,
				Candidates:  len(r.Images),
				Message:     fmt.Sprintf("Scene %d: %d image(s) generated.", s.Number, len(r.Images)),
			})
		default:
			sum.add(failed(s, r.ExecutionMessage))
		}
	}
	return sum
}

func (s *Summary) add(o SceneOutcome) {
	switch o.Outcome {
	case OutcomeGenerated:
		s.Processed++
	case OutcomeFailed:
		s.Failed++
	case OutcomeNotProcessed:
		s.Skipped++
	}
	s.Scenes = append(s.Scenes, o)
}

func notProcessed(s *story.Scene) SceneOutcome {
	return SceneOutcome{
		SceneID:     s.ID,
		SceneNumber: s.Number,
		Outcome:     OutcomeNotProcessed,
		Message:     fmt.Sprintf("Scene %d: not processed.", s.Number),
	}
}

func failed(s *story.Scene, msg string) SceneOutcome {
	if blank(msg) {
		msg = "no details returned"
	}
	return SceneOutcome{
		SceneID:     s.ID,
		SceneNumber: s.Number,
		Outcome:     OutcomeFailed,
		Message:     fmt.Sprintf("Scene %d: failed: %s", s.Number, msg),
	}
}

// ErrEmptyMerge is returned when a merge reports success without a video.
var ErrEmptyMerge = errors.New("merge returned no video")

// MergeError carries the backend message of a merge that reported done=false.
type MergeError struct {
	Message string
}

func (e *MergeError) Error() string {
	if blank(e.Message) {
		return "merge failed"
	}
	return "merge failed: " + e.Message
}

// ApplyMerge replaces the story's final video with the one merged asset.
// The final video is never appended to a history.
func ApplyMerge(st *story.Story, r VideoResponse) error {
	if !r.Done {
		return &MergeError{Message: r.ExecutionMessage}
	}
	if len(r.Videos) == 0 {
		return ErrEmptyMerge
	}
	st.FinalVideos = []story.Video{r.Videos[0]}
	return nil
}
