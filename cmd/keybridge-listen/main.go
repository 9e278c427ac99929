package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"keybridge/internal/listener"
	"keybridge/internal/logging"
)

const version = "1.0.0"

func printUsage() {
	fmt.Printf("keybridge-listen v%s\n", version)
	fmt.Println("Development listener for keybridge")
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  keybridge-listen [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Serves a status page on / and the action websocket on /ws. Actions are")
	fmt.Println("  applied to a simulated speaker system and the resulting status is")
	fmt.Println("  broadcast to every connected client.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -addr string")
	fmt.Println("        Listen address (default \":8000\")")
	fmt.Println()
	fmt.Println("  -volume int")
	fmt.Printf("        Initial simulated volume, 0..%d (default 20)\n", listener.MaxVolume)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
}

func main() {
	var (
		addr        = flag.String("addr", ":8000", "Listen address")
		volume      = flag.Uint("volume", 20, "Initial simulated volume")
		logLevelStr = flag.String("log-level", "info", "Log level: error, warn, info, debug")
		showVersion = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = printUsage
	flag.Parse()

	if *showVersion {
		fmt.Printf("keybridge-listen v%s\n", version)
		return
	}

	level, err := logging.ParseLevel(*logLevelStr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	if *volume > listener.MaxVolume {
		fmt.Fprintf(os.Stderr, "error: -volume must be between 0 and %d\n", listener.MaxVolume)
		os.Exit(1)
	}
	logger := logging.Setup(level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := listener.NewServer(logger, listener.ServerConfig{InitialVolume: uint8(*volume)})

	mux := http.NewServeMux()
	srv.Register(mux, "/ws")

	httpSrv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		srv.Close()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(sctx)
	}()

	logger.Info("listening", "addr", *addr, "ws_path", "/ws")
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("listener failed", "error", err)
		os.Exit(1)
	}
	logger.Info("listener stopped")
}
