//go:build (cgo && !darwin) || windows

package tray

import (
	"context"
	"errors"
	"sync"

	"github.com/getlantern/systray"
)

// Run shows the tray menu until ctx is canceled or the user picks Quit.
func (c *Controller) Run(ctx context.Context) error {
	done := make(chan struct{})
	quit := make(chan struct{})
	var quitOnce sync.Once

	go systray.Run(func() {
		v := c.View()
		systray.SetTitle(v.Title)
		systray.SetTooltip(v.Tooltip)

		status := systray.AddMenuItem(v.Tooltip, "")
		status.Disable()
		systray.AddSeparator()

		for _, item := range Menu {
			if item.ID == ItemQuit {
				systray.AddSeparator()
			}
			mi := systray.AddMenuItem(item.Label, item.Tooltip)
			go c.handleClicks(ctx, item.ID, mi.ClickedCh, func() {
				quitOnce.Do(func() { close(quit) })
			})
		}

		go c.follow(ctx, status)
	}, func() {
		close(done)
	})

	select {
	case <-ctx.Done():
		systray.Quit()
		<-done
		return nil
	case <-quit:
		systray.Quit()
		<-done
		return ErrQuit
	case <-done:
		return nil
	}
}

func (c *Controller) handleClicks(ctx context.Context, id string, clicks <-chan struct{}, onQuit func()) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-clicks:
			if !ok {
				return
			}
			err := c.Trigger(id)
			if errors.Is(err, ErrQuit) {
				onQuit()
				return
			}
		}
	}
}

// follow re-renders the title and status line on every view change.
func (c *Controller) follow(ctx context.Context, status *systray.MenuItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case v := <-c.updates:
			systray.SetTitle(v.Title)
			systray.SetTooltip(v.Tooltip)
			status.SetTitle(v.Tooltip)
		}
	}
}
