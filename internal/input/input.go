package input

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"keybridge/internal/channel"
)

// Run opens devices and forwards recognized key presses to sink until ctx is
// canceled. A device error or hangup ends Run with an error.
func Run(ctx context.Context, devices []string, sink func(channel.Action), logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "input")

	files := make([]*os.File, 0, len(devices))
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	for _, dev := range devices {
		f, err := os.Open(dev)
		if err != nil {
			return fmt.Errorf("open input device %s: %w", dev, err)
		}
		files = append(files, f)
		logger.Info("input device opened", "device", dev)
	}

	err := watch(ctx, files, func(ev Event) {
		a, ok := ActionFor(ev)
		if !ok {
			return
		}
		logger.Debug("key event", "code", ev.Code, "value", ev.Value, "action", string(a))
		sink(a)
	})
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return nil
	}
	return err
}
