package playback

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrInvalidRange  = errors.New("invalid range format")
	ErrUnsatisfiable = errors.New("range not satisfiable")
)

// Range is an inclusive byte span.
type Range struct {
	Start int64
	End   int64
}

func (r Range) Length() int64 {
	return r.End - r.Start + 1
}

func (r Range) ContentRange(total int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.Start, r.End, total)
}

// ParseRange reads the first span of a Range header. It returns nil, nil
// when there is no header. Only the first of several ranges is honored.
func ParseRange(header string, size int64) (*Range, error) {
	if header == "" {
		return nil, nil
	}
	rangeSet, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return nil, ErrInvalidRange
	}
	if first, _, multi := strings.Cut(rangeSet, ","); multi {
		rangeSet = first
	}
	from, to, ok := strings.Cut(strings.TrimSpace(rangeSet), "-")
	if !ok {
		return nil, ErrInvalidRange
	}

	var r Range
	if from == "" {
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return nil, ErrInvalidRange
		}
		r = Range{Start: max(size-n, 0), End: size - 1}
	} else {
		start, err := strconv.ParseInt(from, 10, 64)
		if err != nil || start < 0 {
			return nil, ErrInvalidRange
		}
		r = Range{Start: start, End: size - 1}
		if to != "" {
			end, err := strconv.ParseInt(to, 10, 64)
			if err != nil {
				return nil, ErrInvalidRange
			}
			r.End = end
		}
	}

	if r.Start > r.End || r.Start >= size {
		return nil, ErrUnsatisfiable
	}
	r.End = min(r.End, size-1)
	return &r, nil
}
