package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"keybridge/internal/channel"
	"keybridge/internal/config"
	"keybridge/internal/input"
	"keybridge/internal/ipc"
	"keybridge/internal/logging"
	"keybridge/internal/telemetry"
	"keybridge/internal/tray"
)

const version = "1.0.0"

func printVersion() {
	fmt.Printf("keybridge v%s\n", version)
	fmt.Println("Media key to websocket bridge with a self-healing connection")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  keybridge [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Daemon that turns media keys (via Linux input devices), tray clicks and")
	fmt.Println("  keybridge-ctl commands into action messages for a remote listener over")
	fmt.Println("  WebSocket. The connection is kept alive with heartbeats and is")
	fmt.Println("  re-established automatically after every loss.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        Path to YAML config file (optional)")
	fmt.Println()
	fmt.Println("  -host string")
	fmt.Println("        Listener host:port (default \"localhost:8000\")")
	fmt.Println()
	fmt.Println("  -input-device string")
	fmt.Println("        Linux input event device for media keys (empty disables key capture)")
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Println("        Unix domain socket path for keybridge-ctl (default \"/tmp/keybridge.sock\")")
	fmt.Println()
	fmt.Println("  -tray")
	fmt.Println("        Show the system tray icon (default true)")
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("ENVIRONMENT:")
	fmt.Println("  KEYBRIDGE_HOST, KEYBRIDGE_PATH, KEYBRIDGE_INPUT_DEVICES, KEYBRIDGE_IPC_SOCKET,")
	fmt.Println("  KEYBRIDGE_TRAY, KEYBRIDGE_LOG_LEVEL and the other KEYBRIDGE_* settings")
	fmt.Println("  override the config file. Flags override the environment.")
	fmt.Println("  KEYBRIDGE_OTEL_ENDPOINT enables tracing of connection attempts.")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Connect to a local listener, tray only")
	fmt.Println("  keybridge")
	fmt.Println()
	fmt.Println("  # Capture keys from a keyboard and run headless")
	fmt.Println("  keybridge -input-device /dev/input/event3 -tray=false")
	fmt.Println()
	fmt.Println("  # Remote listener")
	fmt.Println("  keybridge -host 192.168.1.50:8000")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - Requires read access to input devices (run as root or add user to 'input' group)")
	fmt.Println("  - Actions are dropped while disconnected; they are never replayed")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "Path to YAML config file (optional)")
		host        = flag.String("host", "", "Listener host:port")
		inputDevice = flag.String("input-device", "", "Linux input event device for media keys")
		ipcSocket   = flag.String("ipc-socket", "", "Unix domain socket path for keybridge-ctl")
		trayEnabled = flag.Bool("tray", true, "Show the system tray icon")
		logLevelStr = flag.String("log-level", "", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
		showHelp    = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}
	if *showVersion {
		printVersion()
		return
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	// Only flags given on the command line override file and env values.
	var overrides config.FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "host":
			overrides.Host = host
		case "input-device":
			overrides.InputDevice = inputDevice
		case "ipc-socket":
			overrides.IPCSocket = ipcSocket
		case "tray":
			overrides.Tray = trayEnabled
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := logging.Setup(logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "keybridge")
	if err != nil {
		logger.Error("failed to set up tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("keybridge exiting", "error", err)
		stop()
		os.Exit(1)
	}
	logger.Info("keybridge stopped")
}

// run wires the channel to its action sources and blocks until ctx is
// canceled, the tray asks to quit, or a component fails.
func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	var ui *tray.Controller

	ch, err := channel.New(channel.Config{
		URL:               cfg.Channel.URL(),
		ReconnectDelay:    cfg.Channel.ReconnectDelay(),
		HeartbeatInterval: cfg.Channel.HeartbeatInterval(),
		HandshakeTimeout:  cfg.Channel.HandshakeTimeout(),
		SendQueue:         cfg.Channel.SendQueue,
		Logger:            logger,
		OnState: func(t channel.Transition) {
			if ui != nil {
				ui.OnState(t)
			}
		},
		OnStatus: func(s channel.Status) {
			if ui != nil {
				ui.OnStatus(s)
			}
		},
	})
	if err != nil {
		return fmt.Errorf("create channel: %w", err)
	}
	ui = tray.NewController(ch, cfg.Channel.PageURL(), logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ch.Run(gctx)
	})

	if len(cfg.Input.Devices) > 0 {
		devices := make([]string, 0, len(cfg.Input.Devices))
		for _, d := range cfg.Input.Devices {
			devices = append(devices, config.ExpandPath(d))
		}
		g.Go(func() error {
			return input.Run(gctx, devices, ch.Send, logger)
		})
	} else {
		logger.Info("no input devices configured, key capture disabled")
	}

	if cfg.IPC.SocketPath != "" {
		socketPath := config.ExpandPath(cfg.IPC.SocketPath)
		g.Go(func() error {
			return ipc.Serve(gctx, socketPath, ch, logger)
		})
	}

	quit := errors.New("quit")
	if cfg.Tray.Enabled {
		g.Go(func() error {
			err := ui.Run(gctx)
			switch {
			case errors.Is(err, tray.ErrUnavailable):
				logger.Warn("tray disabled", "error", err)
				return nil
			case errors.Is(err, tray.ErrQuit):
				logger.Info("quit requested from tray")
				return quit
			}
			return err
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, quit) {
		return err
	}
	return nil
}
