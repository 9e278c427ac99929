//go:build (!cgo || darwin) && !windows

package tray

import "context"

// Run reports that the tray cannot be shown on this build.
func (c *Controller) Run(_ context.Context) error {
	return ErrUnavailable
}
