//go:build darwin

package tray

import "os/exec"

func launchURL(raw string) error {
	return exec.Command("open", raw).Start()
}
