package playback

import (
	"errors"
	"testing"
)

func TestParseRange(t *testing.T) {
	tests := []struct {
		header  string
		size    int64
		want    *Range
		wantErr error
	}{
		{"", 1000, nil, nil},
		{"bytes=0-999", 1000, &Range{0, 999}, nil},
		{"bytes=500-", 1000, &Range{500, 999}, nil},
		{"bytes=-500", 1000, &Range{500, 999}, nil},
		{"bytes=0-0", 1000, &Range{0, 0}, nil},
		{"bytes=0-2000", 1000, &Range{0, 999}, nil},
		{"bytes=-2000", 500, &Range{0, 499}, nil},
		{"bytes=0-99, 200-299", 1000, &Range{0, 99}, nil},

		{"bytes=1000-", 1000, nil, ErrUnsatisfiable},
		{"bytes=1500-2000", 1000, nil, ErrUnsatisfiable},
		{"bytes=20-10", 1000, nil, ErrUnsatisfiable},
		{"invalid", 1000, nil, ErrInvalidRange},
		{"frames=0-100", 1000, nil, ErrInvalidRange},
		{"bytes=abc-100", 1000, nil, ErrInvalidRange},
		{"bytes=0-abc", 1000, nil, ErrInvalidRange},
		{"bytes=-0", 1000, nil, ErrInvalidRange},
		{"bytes=12", 1000, nil, ErrInvalidRange},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := ParseRange(tt.header, tt.size)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseRange() error = %v, want %v", err, tt.wantErr)
			}
			switch {
			case tt.want == nil && got != nil:
				t.Fatalf("ParseRange() = %+v, want nil", got)
			case tt.want != nil && (got == nil || *got != *tt.want):
				t.Fatalf("ParseRange() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRange_Headers(t *testing.T) {
	r := Range{Start: 500, End: 999}
	if r.Length() != 500 {
		t.Errorf("Length() = %d, want 500", r.Length())
	}
	if got := r.ContentRange(1000); got != "bytes 500-999/1000" {
		t.Errorf("ContentRange() = %q", got)
	}
}
