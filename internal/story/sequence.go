package story

import "time"

// AddScene appends a scene with default settings numbered after the last one.
func AddScene(st *Story) *Scene {
	s := NewScene(len(st.Scenes) + 1)
	st.Scenes = append(st.Scenes, s)
	st.touch()
	return s
}

// RemoveScene deletes the scene with the given id and renumbers the rest.
// It reports whether a scene was removed. When the story ends up empty the
// caller should Reset it.
func RemoveScene(st *Story, sceneID string) bool {
	idx := -1
	for i, s := range st.Scenes {
		if s.ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	st.Scenes = append(st.Scenes[:idx], st.Scenes[idx+1:]...)
	Renumber(st)
	return true
}

// MoveScene moves a scene to the 1-based position number, clamped to the
// valid range, and renumbers.
func MoveScene(st *Story, sceneID string, number int) bool {
	idx := -1
	for i, s := range st.Scenes {
		if s.ID == sceneID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	target := number - 1
	if target < 0 {
		target = 0
	}
	if target >= len(st.Scenes) {
		target = len(st.Scenes) - 1
	}
	s := st.Scenes[idx]
	st.Scenes = append(st.Scenes[:idx], st.Scenes[idx+1:]...)
	st.Scenes = append(st.Scenes[:target], append([]*Scene{s}, st.Scenes[target:]...)...)
	Renumber(st)
	return true
}

// Renumber sets every scene's number to its 1-based position.
func Renumber(st *Story) {
	for i, s := range st.Scenes {
		s.Number = i + 1
	}
	st.touch()
}

func (st *Story) touch() {
	st.UpdatedAt = time.Now().UTC()
}
