package tray

import (
	"fmt"
	"net/url"
)

// openURL validates the URL before deferring to the platform launcher.
func openURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("open url: empty url")
	}
	if _, err := url.ParseRequestURI(raw); err != nil {
		return fmt.Errorf("open url: %w", err)
	}
	return launchURL(raw)
}
