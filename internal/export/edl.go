package export

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/manwarsd/dreamboard/internal/story"
)

const (
	defaultFrameRate   = 24.0
	transitionFrames   = 12
	defaultProjectName = "dreamboard_export"
)

// ClipsFromStory lays out the scenes included in the merge that have a
// selected video, in story order.
func ClipsFromStory(st *story.Story) Assembly {
	a := Assembly{
		Title:      SanitizeName(st.Title, 120),
		FrameRate:  defaultFrameRate,
		Clips:      []Clip{},
		Unresolved: []int{},
	}
	if a.Title == "" {
		a.Title = defaultProjectName
	}

	for _, s := range st.Scenes {
		vs := s.VideoSettings
		if !vs.IncludeVideoSegment {
			continue
		}
		if vs.Selected == nil {
			a.Unresolved = append(a.Unresolved, s.Number)
			continue
		}
		if len(a.Clips) == 0 && vs.FramesPerSec > 0 {
			a.FrameRate = float64(vs.FramesPerSec)
		}

		name := SanitizeName(vs.Selected.Name, 160)
		if name == "" {
			name = fmt.Sprintf("Scene %d", s.Number)
		}
		media := vs.Selected.SignedURI
		if media == "" {
			media = vs.Selected.GCSURI
		}
		duration := vs.DurationInSecs
		if duration <= 0 {
			duration = story.DefaultVideoSettings().DurationInSecs
		}

		a.Clips = append(a.Clips, Clip{
			Name:        name,
			MediaPath:   media,
			SceneNumber: s.Number,
			DurationMs:  duration * 1000,
			Transition:  vs.Transition.OrDefault(),
		})
	}
	if n := len(a.Clips); n > 0 {
		a.Clips[n-1].Transition = story.TransitionNone
	}
	return a
}

// GenerateEDL renders clips as a CMX 3600 edit decision list. Each clip's
// transition decides how the following event is entered.
func GenerateEDL(clips []Clip, title string, frameRate float64) string {
	fps := int(math.Round(frameRate))
	if fps <= 0 {
		fps = int(defaultFrameRate)
	}

	isDropFrame := math.Abs(frameRate-29.97) < 0.01 || math.Abs(frameRate-59.94) < 0.01

	lines := []string{fmt.Sprintf("TITLE: %s", title)}
	if isDropFrame {
		lines = append(lines, "FCM: DROP FRAME")
	} else {
		lines = append(lines, "FCM: NON-DROP FRAME")
	}
	lines = append(lines, "")

	recordOffsetMs := 0
	incoming := story.TransitionNone
	for i, clip := range clips {
		srcIn := msToTimecode(0, fps)
		srcOut := msToTimecode(clip.DurationMs, fps)
		recIn := msToTimecode(recordOffsetMs, fps)
		recOut := msToTimecode(recordOffsetMs+clip.DurationMs, fps)

		lines = append(lines,
			fmt.Sprintf("%03d  %-8s %-5s %s %s %s %s %s", i+1, "AX", "V", editField(incoming), srcIn, srcOut, recIn, recOut),
			fmt.Sprintf("* FROM CLIP NAME:  %s", clip.Name),
			fmt.Sprintf("* SCENE:  %d", clip.SceneNumber),
			fmt.Sprintf("* MEDIA PATH:  %s", clip.MediaPath),
		)

		recordOffsetMs += clip.DurationMs
		incoming = clip.Transition
	}

	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

// editField is the edit type column, padded to a fixed width.
func editField(t story.Transition) string {
	switch t {
	case story.TransitionXFade, story.TransitionBlur, story.TransitionDipToBlack:
		return fmt.Sprintf("D    %03d", transitionFrames)
	case story.TransitionWipe, story.TransitionSlide, story.TransitionSlideWarp:
		return fmt.Sprintf("W001 %03d", transitionFrames)
	}
	return "C       "
}

// WriteEDL writes an assembly to dir and returns the file path.
func WriteEDL(dir string, a Assembly) (string, error) {
	if err := ValidateOutputDir(dir); err != nil {
		return "", err
	}
	if len(a.Clips) == 0 {
		return "", fmt.Errorf("no scene has a selected video to export")
	}
	out := filepath.Join(dir, a.Title+".edl")
	if err := os.WriteFile(out, []byte(GenerateEDL(a.Clips, a.Title, a.FrameRate)), 0o644); err != nil {
		return "", fmt.Errorf("write edl: %w", err)
	}
	return out, nil
}

func msToTimecode(ms int, fps int) string {
	totalFrames := int(math.Round(float64(ms) * float64(fps) / 1000.0))
	frames := totalFrames % fps
	totalSeconds := totalFrames / fps
	seconds := totalSeconds % 60
	totalMinutes := totalSeconds / 60
	minutes := totalMinutes % 60
	hours := totalMinutes / 60
	return fmt.Sprintf("%02d:%02d:%02d:%02d", hours, minutes, seconds, frames)
}
