package survey

import "fmt"

// MinutesPerDay is the upper bound for window endpoints. A window may end
// exactly at midnight, so valid endpoints are 0..1440.
const MinutesPerDay = 1440

// TimeWindow is a start/end interval in minutes from midnight during
// which an appliance is used.
type TimeWindow struct {
	Start int
	End   int
}

// Valid reports whether the window lies within the day and runs forward.
func (w TimeWindow) Valid() bool {
	return w.Start >= 0 && w.End <= MinutesPerDay && w.Start < w.End
}

// Overlaps reports whether two windows share any minute of the day.
func (w TimeWindow) Overlaps(other TimeWindow) bool {
	return w.Start < other.End && other.Start < w.End
}

// Duration returns the window length in minutes.
func (w TimeWindow) Duration() int {
	return w.End - w.Start
}

func (w TimeWindow) String() string {
	return Clock(w.Start) + "-" + Clock(w.End)
}

// Clock formats minutes from midnight as HH:MM.
func Clock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
