//go:build !windows && !darwin

package tray

import "os/exec"

func launchURL(raw string) error {
	return exec.Command("xdg-open", raw).Start()
}
