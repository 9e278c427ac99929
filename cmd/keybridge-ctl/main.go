package main

import (
	"fmt"
	"os"

	"keybridge/internal/channel"
	"keybridge/internal/ipc"
)

// ============================================================================
// keybridge-ctl - Command-line IPC Client
// ============================================================================
// Sends actions to a running keybridge daemon over its unix socket.
//
// Usage:
//   keybridge-ctl volume-up
//   keybridge-ctl mute
//   keybridge-ctl effect-3d
//   keybridge-ctl status
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/keybridge.sock)
// ============================================================================

func main() {
	socketPath := "/tmp/keybridge.sock"

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "status":
		state, err := ipc.QueryChannelState(socketPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(state)
		return

	case "help", "-h", "--help":
		printUsage()
		os.Exit(0)
	}

	action, ok := commandAction(args[0])
	if !ok {
		fmt.Fprintf(os.Stderr, "error: unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}

	if err := ipc.SendAction(socketPath, action); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("ok")
}

// commandAction maps a command name to the action it sends.
func commandAction(cmd string) (channel.Action, bool) {
	switch cmd {
	case "volume-up", "up":
		return channel.ActionVolumeUp, true
	case "volume-down", "down":
		return channel.ActionVolumeDown, true
	case "mute", "toggle-mute":
		return channel.ActionMute, true
	case "turn-on", "on":
		return channel.ActionTurnOn, true
	case "turn-off", "off":
		return channel.ActionTurnOff, true
	case "effect-3d":
		return channel.ActionEffect3D, true
	case "effect-2-1":
		return channel.ActionEffect2_1, true
	case "effect-4-1":
		return channel.ActionEffect4_1, true
	case "effect-disabled", "effect-off":
		return channel.ActionEffectDisabled, true
	}
	return "", false
}

func printUsage() {
	fmt.Println("keybridge-ctl - Send actions to the keybridge daemon")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  keybridge-ctl [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -socket PATH    Unix domain socket path (default: /tmp/keybridge.sock)")
	fmt.Println()
	fmt.Println("COMMANDS:")
	fmt.Println("  volume-up, up       Raise the volume one step")
	fmt.Println("  volume-down, down   Lower the volume one step")
	fmt.Println("  mute                Toggle mute")
	fmt.Println("  turn-on, on         Wake the device")
	fmt.Println("  turn-off, off       Put the device in standby")
	fmt.Println("  effect-3d           3D effect on the current input")
	fmt.Println("  effect-2-1          2.1 effect on the current input")
	fmt.Println("  effect-4-1          4.1 effect on the current input")
	fmt.Println("  effect-disabled     Disable effects on the current input (alias: effect-off)")
	fmt.Println("  status              Print the connection state (idle, connecting, open, closed)")
	fmt.Println("  help                Show this help message")
	fmt.Println()
	fmt.Println("Actions are dropped by the daemon while it is not connected.")
	fmt.Println()
}
