package config

import (
	"os"
	"path/filepath"
	"strings"
)

// EnvPath names the environment variable holding the config file path.
const EnvPath = "SEATWATCH_CONFIG"

// ResolvePath returns $SEATWATCH_CONFIG, or <user config dir>/seatwatch/config.yaml.
func ResolvePath() (string, error) {
	if p := strings.TrimSpace(os.Getenv(EnvPath)); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "seatwatch", "config.yaml"), nil
}
