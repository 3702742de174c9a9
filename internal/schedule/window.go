package schedule

import "fmt"

// Window is a half-open [Start, End) interval within one calendar day.
type Window struct {
	Start Clock
	End   Clock
}

// NewWindow builds a window from "HH:mm" strings, rejecting empty or
// inverted ranges.
func NewWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	w := Window{Start: s, End: e}
	if err := w.Validate(); err != nil {
		return Window{}, err
	}
	return w, nil
}

// Validate requires a positive duration.
func (w Window) Validate() error {
	if w.Start >= w.End {
		return fmt.Errorf("invalid window %s-%s: start must be before end", w.Start, w.End)
	}
	return nil
}

// Overlaps reports whether two half-open windows intersect. Touching
// endpoints (one ends exactly when the other starts) do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && w.End > other.Start
}

// Contains reports whether other lies fully inside w.
func (w Window) Contains(other Window) bool {
	return w.Start <= other.Start && w.End >= other.End
}

func (w Window) String() string {
	return fmt.Sprintf("%s-%s", w.Start, w.End)
}
