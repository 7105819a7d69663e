package story

import "fmt"

// LimitError reports a collection that would grow past its maximum size.
type LimitError struct {
	What string
	Max  int
	Got  int
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("too many %s: %d (max %d)", e.What, e.Got, e.Max)
}
