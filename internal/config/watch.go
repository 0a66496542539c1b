package config

import (
	"fmt"
	"time"
)

// WatchConfig controls `variantgen watch`.
type WatchConfig struct {
	// Debounce is how long a directory must stay quiet before regenerating.
	Debounce time.Duration `yaml:"debounce"`
	// IgnorePatterns skips matching directory names when watching recursively.
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// DefaultWatchConfig returns defaults for the watcher.
func DefaultWatchConfig() WatchConfig {
	return WatchConfig{
		Debounce: 300 * time.Millisecond,
		IgnorePatterns: []string{
			".git",
			"node_modules",
			"vendor",
			"target",
			"testdata",
		},
	}
}

// Validate checks the watcher settings.
func (c *WatchConfig) Validate() error {
	if c.Debounce < 0 {
		return fmt.Errorf("watch.debounce must not be negative, got %v", c.Debounce)
	}
	return nil
}
