// Package course holds the tracked-course identity and the open-seat policy.
package course

import (
	"fmt"
	"strings"
	"unicode"
)

// Tracked identifies a course by subject and code (e.g. MAC + 2313).
// It is comparable and used as a map key.
type Tracked struct {
	Subject string
	Code    string
}

func New(subject, code string) (Tracked, error) {
	subject = strings.ToUpper(strings.TrimSpace(subject))
	code = strings.ToUpper(strings.TrimSpace(code))
	if subject == "" || code == "" {
		return Tracked{}, fmt.Errorf("course: subject and code are required (got %q/%q)", subject, code)
	}
	if strings.ContainsAny(subject+code, " /?#%") {
		return Tracked{}, fmt.Errorf("course: invalid characters in %q %q", subject, code)
	}
	return Tracked{Subject: subject, Code: code}, nil
}

// Parse accepts "MAC2313", "MAC 2313" or "MAC/2313". Without a separator the
// subject is the leading run of letters.
func Parse(raw string) (Tracked, error) {
	s := strings.TrimSpace(raw)
	if i := strings.IndexAny(s, " /"); i > 0 {
		return New(s[:i], s[i+1:])
	}
	i := strings.IndexFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	if i <= 0 {
		return Tracked{}, fmt.Errorf("course: cannot split %q into subject and code", raw)
	}
	return New(s[:i], s[i:])
}

func (c Tracked) String() string { return c.Subject + c.Code }

// List renders courses the way startup announcements show them: [A, B].
func List(cs []Tracked) string {
	parts := make([]string, 0, len(cs))
	for _, c := range cs {
		parts = append(parts, c.String())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
