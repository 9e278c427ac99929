// Package tray is the presentation layer: a status-bar menu that reflects the
// channel state and issues actions when clicked.
package tray

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"keybridge/internal/channel"
)

const (
	titleConnected    = "●"
	titleDisconnected = "○"
)

var (
	// ErrQuit is returned by Run when the user picks Quit.
	ErrQuit = errors.New("quit requested from tray")
	// ErrUnavailable is returned by Run on builds without tray support:
	// no cgo, or darwin, where systray would need the main OS thread.
	ErrUnavailable = errors.New("system tray is unavailable on this build")
)

// Commands is the part of the channel the tray drives.
type Commands interface {
	Send(channel.Action)
}

// MenuItem is one entry of the tray menu. Items with an Action send it;
// the others are handled by ID.
type MenuItem struct {
	ID      string
	Label   string
	Tooltip string
	Action  channel.Action
}

const (
	ItemOpenPage = "open_page"
	ItemQuit     = "quit"
)

// Menu is the fixed tray menu, top to bottom.
var Menu = []MenuItem{
	{ID: ItemOpenPage, Label: "Open page", Tooltip: "Open the listener page in a browser"},
	{ID: "mute", Label: "Mute", Tooltip: "Toggle mute", Action: channel.ActionMute},
	{ID: "volume_up", Label: "Volume up", Tooltip: "Raise the volume", Action: channel.ActionVolumeUp},
	{ID: "volume_down", Label: "Volume down", Tooltip: "Lower the volume", Action: channel.ActionVolumeDown},
	{ID: "turn_on", Label: "Power on", Tooltip: "Wake the device", Action: channel.ActionTurnOn},
	{ID: "turn_off", Label: "Power off", Tooltip: "Put the device in standby", Action: channel.ActionTurnOff},
	{ID: "effect_3d", Label: "Effect: 3D", Tooltip: "3D effect on the current input", Action: channel.ActionEffect3D},
	{ID: "effect_2_1", Label: "Effect: 2.1", Tooltip: "2.1 effect on the current input", Action: channel.ActionEffect2_1},
	{ID: "effect_4_1", Label: "Effect: 4.1", Tooltip: "4.1 effect on the current input", Action: channel.ActionEffect4_1},
	{ID: "effect_disabled", Label: "Effect: off", Tooltip: "Disable effects on the current input", Action: channel.ActionEffectDisabled},
	{ID: ItemQuit, Label: "Quit", Tooltip: "Exit keybridge"},
}

// View is the state the tray renders.
type View struct {
	Connected bool
	Title     string
	Tooltip   string
	Status    *channel.Status // last report from the listener, if any
}

// Controller owns the tray's UI state. The channel reaches it only through
// OnState and OnStatus.
type Controller struct {
	cmds    Commands
	pageURL string
	logger  *slog.Logger
	open    func(string) error

	mu      sync.Mutex
	view    View
	updates chan View
}

// NewController creates a Controller that sends actions to cmds and opens
// pageURL from the menu.
func NewController(cmds Commands, pageURL string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cmds:    cmds,
		pageURL: pageURL,
		logger:  logger.With("component", "tray"),
		open:    openURL,
		updates: make(chan View, 1),
	}
	c.view = c.render(false, nil)
	return c
}

// OnState follows channel transitions. It never blocks.
func (c *Controller) OnState(t channel.Transition) {
	c.mu.Lock()
	c.view = c.render(t.To == channel.StateOpen, c.view.Status)
	v := c.view
	c.mu.Unlock()
	c.publish(v)
}

// OnStatus records the latest device status report. It never blocks.
func (c *Controller) OnStatus(s channel.Status) {
	c.mu.Lock()
	c.view = c.render(c.view.Connected, &s)
	v := c.view
	c.mu.Unlock()
	c.publish(v)
}

// View returns the current view model.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Updates delivers view changes. Only the latest pending view is kept.
func (c *Controller) Updates() <-chan View {
	return c.updates
}

// Trigger performs the menu item with the given ID.
// It returns ErrQuit for the Quit item.
func (c *Controller) Trigger(id string) error {
	for _, item := range Menu {
		if item.ID != id {
			continue
		}
		switch {
		case item.Action != "":
			c.logger.Debug("menu action", "action", string(item.Action))
			c.cmds.Send(item.Action)
			return nil
		case id == ItemOpenPage:
			return c.OpenPage()
		case id == ItemQuit:
			return ErrQuit
		}
	}
	return fmt.Errorf("unknown menu item %q", id)
}

// OpenPage opens the listener's web page in the default browser.
func (c *Controller) OpenPage() error {
	if err := c.open(c.pageURL); err != nil {
		c.logger.Warn("open page failed", "url", c.pageURL, "error", err)
		return err
	}
	c.logger.Info("opened page", "url", c.pageURL)
	return nil
}

func (c *Controller) render(connected bool, status *channel.Status) View {
	v := View{Connected: connected, Status: status, Title: titleDisconnected}
	if connected {
		v.Title = titleConnected
	}

	var b strings.Builder
	if connected {
		b.WriteString("keybridge: connected")
	} else {
		b.WriteString("keybridge: disconnected")
	}
	if status != nil {
		switch {
		case status.Standby:
			b.WriteString(", standby")
		case status.Muted:
			fmt.Fprintf(&b, ", volume %d (muted)", status.MainVolume)
		default:
			fmt.Fprintf(&b, ", volume %d", status.MainVolume)
		}
	}
	v.Tooltip = b.String()
	return v
}

// publish replaces any pending update with v.
func (c *Controller) publish(v View) {
	select {
	case c.updates <- v:
	default:
		select {
		case <-c.updates:
		default:
		}
		select {
		case c.updates <- v:
		default:
		}
	}
}
