package story

// Candidate is a generated asset a scene can select.
type Candidate interface {
	Image | Video
	Key() string
}

// Selection is a cursor over a scene's generated candidates. It writes
// through to the candidate list, the selected value and the stored position
// it was built on, so the image and video tracks share one implementation.
//
// The cursor is either unset (Index() == -1) or points at a candidate
// currently in the list. Candidates may repeat a key (the same file
// uploaded twice); the stored position tells such entries apart.
type Selection[T Candidate] struct {
	list     *[]T
	selected **T
	pos      *int
}

func NewSelection[T Candidate](list *[]T, selected **T, pos *int) Selection[T] {
	return Selection[T]{list: list, selected: selected, pos: pos}
}

// ImageSelection returns the cursor over the scene's generated images.
func (s *Scene) ImageSelection() Selection[Image] {
	is := &s.ImageSettings
	return NewSelection(&is.GeneratedImages, &is.Selected, &is.SelectedIndex)
}

// VideoSelection returns the cursor over the scene's generated videos.
func (s *Scene) VideoSelection() Selection[Video] {
	vs := &s.VideoSettings
	return NewSelection(&vs.GeneratedVideos, &vs.Selected, &vs.SelectedIndex)
}

func (sel Selection[T]) Len() int {
	return len(*sel.list)
}

// Index returns the position of the selected candidate, or -1 when nothing
// is selected. A selected value no longer present in the list counts as
// unset. A stored position that no longer holds the selected value falls
// back to the first candidate with its key.
func (sel Selection[T]) Index() int {
	cur := *sel.selected
	if cur == nil {
		return -1
	}
	key := (*cur).Key()
	list := *sel.list
	if p := *sel.pos; p >= 0 && p < len(list) && list[p].Key() == key {
		return p
	}
	for i, c := range list {
		if c.Key() == key {
			return i
		}
	}
	return -1
}

func (sel Selection[T]) Selected() (T, bool) {
	var zero T
	i := sel.Index()
	if i < 0 {
		return zero, false
	}
	return (*sel.list)[i], true
}

// Append adds candidates to the end of the list. If nothing was selected,
// the first appended candidate becomes the selection.
func (sel Selection[T]) Append(candidates ...T) {
	if len(candidates) == 0 {
		return
	}
	wasUnset := sel.Index() < 0
	start := len(*sel.list)
	*sel.list = append(*sel.list, candidates...)
	if wasUnset {
		sel.set(start)
	}
}

// Next advances the cursor, wrapping to the first candidate. From the unset
// state it selects the first candidate.
func (sel Selection[T]) Next() {
	n := sel.Len()
	if n == 0 {
		return
	}
	sel.set((sel.Index() + 1) % n)
}

// Prev moves the cursor back, wrapping to the last candidate. From the
// unset state it selects the last candidate.
func (sel Selection[T]) Prev() {
	n := sel.Len()
	if n == 0 {
		return
	}
	i := sel.Index()
	if i < 0 {
		sel.set(n - 1)
		return
	}
	sel.set((i - 1 + n) % n)
}

// SelectByKey selects the candidate whose key equals key. Unknown keys leave
// the selection untouched and return false.
func (sel Selection[T]) SelectByKey(key string) bool {
	for i, c := range *sel.list {
		if c.Key() == key {
			sel.set(i)
			return true
		}
	}
	return false
}

// SelectIndex selects the candidate at position i. Out of range positions
// leave the selection untouched and return false.
func (sel Selection[T]) SelectIndex(i int) bool {
	if i < 0 || i >= sel.Len() {
		return false
	}
	sel.set(i)
	return true
}

// Clear unsets the selection even if candidates exist.
func (sel Selection[T]) Clear() {
	*sel.selected = nil
	*sel.pos = -1
}

func (sel Selection[T]) set(i int) {
	c := (*sel.list)[i]
	*sel.selected = &c
	*sel.pos = i
}
