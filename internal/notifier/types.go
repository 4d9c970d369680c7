package notifier

import "time"

// DefaultMaxLength is the relay message limit; longer bodies are cut.
const DefaultMaxLength = 1000

// Config controls formatting and throttling.
type Config struct {
	// Name prefixes every line ("[SeatWatch] [2024-01-08T09:00:00.000]: ...").
	Name        string
	MaxLength   int
	RatePerSec  float64
	SendTimeout time.Duration
}

type HistoryItem struct {
	At        time.Time
	Text      string
	Delivered int
	Failed    int
}
