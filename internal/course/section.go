package course

import "strings"

// Section is one registration block of a course as reported by the scheduler.
type Section struct {
	Number          string
	OpenSeats       int
	DisabledReasons []string
	TopicText       string
}

// Match strings are the scheduler's literal UI text; keep them byte-exact.
const (
	ReasonCampusNotSelected = `The campus "Panama City, FL" is not selected.`
	ReasonSectionFull       = `This section is full.`
	TopicHonors             = "HONORS"
)

var excludedReasons = []string{
	ReasonCampusNotSelected,
	ReasonSectionFull,
}

// Excluded reports whether a section's seats must not be counted.
func (s Section) Excluded() bool {
	for _, r := range s.DisabledReasons {
		for _, x := range excludedReasons {
			if r == x {
				return true
			}
		}
	}
	return strings.Contains(s.TopicText, TopicHonors)
}

// OpenSeats sums the bookable seats across non-excluded sections.
// The result is never negative.
func OpenSeats(sections []Section) int {
	total := 0
	for _, s := range sections {
		if s.Excluded() || s.OpenSeats <= 0 {
			continue
		}
		total += s.OpenSeats
	}
	return total
}
