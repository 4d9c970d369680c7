package config

import (
	"reflect"
	"strings"

	logx "seatwatch/pkg/logx"
)

// SummarizeConfigChange returns (1) a compact list of changed sections,
// (2) safe structured attrs for logging (never includes secrets like passwords
// or tokens), and (3) whether any changed section needs a restart to apply.
//
// Only "logging" is applied live.
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field, bool) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)
	restart := false

	mark := func(section string, live bool) {
		changed = append(changed, section)
		if !live {
			restart = true
		}
	}

	if strings.TrimSpace(oldCfg.Name) != strings.TrimSpace(newCfg.Name) {
		mark("name", false)
	}

	// Credentials (never log values)
	if oldCfg.Credentials != newCfg.Credentials {
		mark("credentials", false)
		attrs = append(attrs, logx.Bool("credentials.username_changed", oldCfg.Credentials.Username != newCfg.Credentials.Username))
	}

	if oldCfg.Term != newCfg.Term {
		mark("term", false)
		attrs = append(attrs,
			logx.Int("term.year", newCfg.Term.Year),
			logx.String("term.semester", newCfg.Term.Semester),
		)
	}

	if !reflect.DeepEqual(oldCfg.Courses, newCfg.Courses) {
		mark("courses", false)
		attrs = append(attrs, logx.Strings("courses", newCfg.Courses))
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		mark("scheduler", false)
	}
	if oldCfg.Watch != newCfg.Watch {
		mark("watch", false)
		attrs = append(attrs,
			logx.String("watch.interval", newCfg.Watch.Interval),
			logx.String("watch.cooldown", newCfg.Watch.Cooldown),
		)
	}
	if oldCfg.Notifier != newCfg.Notifier {
		mark("notifier", false)
	}

	// Channels (never log bot ids or tokens)
	if !reflect.DeepEqual(oldCfg.GroupMe, newCfg.GroupMe) {
		mark("groupme", false)
		attrs = append(attrs, logx.Bool("groupme.enabled", newCfg.GroupMe != nil))
	}
	if !reflect.DeepEqual(oldCfg.Telegram, newCfg.Telegram) {
		mark("telegram", false)
		attrs = append(attrs, logx.Bool("telegram.enabled", newCfg.Telegram != nil))
	}

	if oldCfg.Logging != newCfg.Logging {
		mark("logging", true)
		attrs = append(attrs,
			logx.String("logx.level", newCfg.Logging.Level),
			logx.Bool("logx.console", newCfg.Logging.Console),
			logx.Bool("logx.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if !reflect.DeepEqual(oldCfg.Storage, newCfg.Storage) {
		mark("storage", false)
	}
	if oldCfg.Systemd != newCfg.Systemd {
		mark("systemd", false)
	}

	return changed, attrs, restart
}
