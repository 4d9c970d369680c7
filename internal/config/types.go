package config

// Config is the on-disk configuration. All durations are Go duration strings
// (e.g. "500ms", "10s", "1h").
//
// Example (YAML):
//
//	name: SeatWatch
//	credentials:
//	  username: abc123
//	  password: 9bandedArmadillo
//	term:
//	  year: 2024
//	  semester: Spring
//	courses: [MAC2313, COP3330]
//	groupme:
//	  bot_id: abcdefghijklmnop12345
type Config struct {
	// Name prefixes every log line and notification. Default "SeatWatch".
	Name string `json:"name,omitempty"`

	Credentials CredentialsConfig `json:"credentials"`
	Term        TermConfig        `json:"term"`

	// Courses is the ordered, non-empty tracked set ("MAC2313", "MAC 2313"
	// or "MAC/2313"). Order decides notification order within a pass.
	Courses []string `json:"courses"`

	Scheduler SchedulerConfig `json:"scheduler"`
	Watch     WatchConfig     `json:"watch"`
	Notifier  NotifierConfig  `json:"notifier"`

	// At least one channel is required.
	GroupMe  *GroupMeConfig  `json:"groupme,omitempty"`
	Telegram *TelegramConfig `json:"telegram,omitempty"`

	Logging LoggingConfig  `json:"logging"`
	Storage *StorageConfig `json:"storage,omitempty"`
	Systemd SystemdConfig  `json:"systemd"`
}

type CredentialsConfig struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TermConfig struct {
	Year     int    `json:"year"`
	Semester string `json:"semester"`
}

// SchedulerConfig controls the browser session against the scheduling site.
//
// Defaults:
//   - base_url: https://fsu.collegescheduler.com
//   - headless: false
//   - mfa_timeout: "1h"
//   - login_timeout: "1m"
//   - query_timeout: "30s"
type SchedulerConfig struct {
	BaseURL      string `json:"base_url,omitempty"`
	Headless     bool   `json:"headless,omitempty"`
	ExecPath     string `json:"exec_path,omitempty"`
	MFATimeout   string `json:"mfa_timeout,omitempty"`
	LoginTimeout string `json:"login_timeout,omitempty"`
	QueryTimeout string `json:"query_timeout,omitempty"`
}

// WatchConfig controls polling and recovery.
//
// Defaults:
//   - interval: "5s" (minimum gap between the end of one query and the next)
//   - cooldown: "10s" (pause after a failed watch before re-authenticating)
//   - heartbeat: "" (disabled); a standard 5-field cron expression otherwise
type WatchConfig struct {
	Interval  string `json:"interval,omitempty"`
	Cooldown  string `json:"cooldown,omitempty"`
	Heartbeat string `json:"heartbeat,omitempty"`
}

// NotifierConfig controls delivery. rate_per_sec 0 disables throttling.
type NotifierConfig struct {
	RatePerSec  float64 `json:"rate_per_sec,omitempty"`
	SendTimeout string  `json:"send_timeout,omitempty"`
	MaxLength   int     `json:"max_length,omitempty"`
}

type GroupMeConfig struct {
	BotID   string `json:"bot_id"`
	URL     string `json:"url,omitempty"`
	Timeout string `json:"timeout,omitempty"`
}

type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
	Timeout  string `json:"timeout,omitempty"`
}

type LoggingConfig struct {
	Level   string            `json:"level"`
	Console bool              `json:"console"`
	File    LoggingFileConfig `json:"file"`
}

type LoggingFileConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StorageConfig enables the write-only observation journal.
//
// Driver values: "file" (JSON Lines), "sqlite". Empty or "none" disables it.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SystemdConfig controls service-manager notifications. They are only sent
// when the process runs under systemd (NOTIFY_SOCKET set).
type SystemdConfig struct {
	Disabled bool `json:"disabled,omitempty"`
}
