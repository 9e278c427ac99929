//go:build (!cgo || darwin) && !windows

package tray

import (
	"context"
	"errors"
	"testing"
)

func TestRun_UnavailableWithoutTrayBackend(t *testing.T) {
	c, _, _ := newTestController(t)
	if err := c.Run(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Run = %v, want ErrUnavailable", err)
	}
}
