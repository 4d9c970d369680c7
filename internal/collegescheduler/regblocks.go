package collegescheduler

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"seatwatch/internal/course"
)

// Term names a registration term, e.g. {2024, "Spring"}.
type Term struct {
	Year     int
	Semester string
}

func (t Term) String() string { return fmt.Sprintf("%d %s", t.Year, t.Semester) }

// RegBlocksURL is the JSON endpoint listing a course's sections for a term.
func RegBlocksURL(base string, term Term, c course.Tracked) string {
	base = strings.TrimRight(base, "/")
	return fmt.Sprintf("%s/api/terms/%s/subjects/%s/courses/%s/regblocks",
		base,
		url.PathEscape(term.String()),
		url.PathEscape(c.Subject),
		url.PathEscape(c.Code),
	)
}

type regBlocks struct {
	Sections []regSection `json:"sections"`
}

type regSection struct {
	OpenSeats       int      `json:"openSeats"`
	SectionNumber   string   `json:"sectionNumber"`
	DisabledReasons []string `json:"disabledReasons"`
	FreeFormTopics  string   `json:"freeFormTopics"`
}

// DecodeRegBlocks parses a regblocks document. Unknown fields are ignored.
func DecodeRegBlocks(raw []byte) ([]course.Section, error) {
	var doc regBlocks
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode regblocks: %w", err)
	}
	if doc.Sections == nil {
		return nil, fmt.Errorf("decode regblocks: missing sections")
	}
	out := make([]course.Section, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		out = append(out, course.Section{
			Number:          s.SectionNumber,
			OpenSeats:       s.OpenSeats,
			DisabledReasons: s.DisabledReasons,
			TopicText:       s.FreeFormTopics,
		})
	}
	return out, nil
}
