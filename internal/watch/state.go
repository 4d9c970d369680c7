package watch

import "seatwatch/internal/course"

// State maps each tracked course to its last observed seat count.
// A course with no entry has never been observed.
type State map[course.Tracked]int

// Observe stores n as the latest count for c and reports whether it differs
// from the previous observation. The first observation always differs.
func (s State) Observe(c course.Tracked, n int) bool {
	prev, ok := s[c]
	s[c] = n
	return !ok || prev != n
}

// Last returns the last observed count for c.
func (s State) Last(c course.Tracked) (int, bool) {
	n, ok := s[c]
	return n, ok
}
