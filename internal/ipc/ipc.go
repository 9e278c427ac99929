// Package ipc exposes the channel on a unix domain socket so scripts and
// keybridge-ctl can inject actions.
package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"

	"keybridge/internal/channel"
)

// ============================================================================
// IPC Server - Unix Domain Socket Interface
// ============================================================================
// Protocol: Line-delimited JSON
//   - Client sends: {"action": "mute"} or {"query": "state"}
//   - Server responds: {"status": "ok"}, {"status": "ok", "state": "open"}
//     or {"status": "error", "error": "msg"}
// ============================================================================

// Request is one line sent by a client.
type Request struct {
	Action string `json:"action,omitempty"`
	Query  string `json:"query,omitempty"`
}

// Response represents the response sent back to IPC clients
type Response struct {
	Status string `json:"status"`          // "ok" or "error"
	Error  string `json:"error,omitempty"` // error message if status == "error"
	State  string `json:"state,omitempty"` // channel state for queries
}

const (
	StatusOK    = "ok"
	StatusError = "error"

	QueryState = "state"
)

// Sink receives actions accepted over IPC.
type Sink interface {
	Send(channel.Action)
	State() channel.State
}

// Serve listens on socketPath until ctx is canceled, then closes the listener
// and removes the socket file.
func Serve(ctx context.Context, socketPath string, sink Sink, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ipc")

	// Remove a stale socket left by a previous run
	if err := os.RemoveAll(socketPath); err != nil {
		return fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", socketPath, err)
	}
	defer listener.Close()
	defer os.Remove(socketPath)

	// Local users only
	if err := os.Chmod(socketPath, 0o660); err != nil {
		return fmt.Errorf("chmod socket: %w", err)
	}

	logger.Info("IPC listening", "socket", socketPath)

	// Close the listener on shutdown. This unblocks Accept().
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("IPC listener closed (shutdown)")
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				logger.Debug("IPC listener closed")
				return nil
			}

			logger.Error("IPC accept error", "error", err)
			continue
		}

		go handleConn(conn, sink, logger)
	}
}

func handleConn(conn net.Conn, sink Sink, logger *slog.Logger) {
	defer conn.Close()

	logger.Debug("IPC connection", "remote_addr", conn.RemoteAddr())

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("IPC received", "line", line)

		resp := handleLine([]byte(line), sink)
		if resp.Status == StatusError {
			logger.Warn("IPC request rejected", "error", resp.Error)
		}
		if err := encoder.Encode(resp); err != nil {
			logger.Error("IPC failed to send response", "error", err)
			return
		}
	}

	logger.Debug("IPC connection closed")
}

func handleLine(line []byte, sink Sink) Response {
	var req Request
	if err := json.Unmarshal(line, &req); err != nil {
		return Response{Status: StatusError, Error: fmt.Sprintf("parse request: %v", err)}
	}

	switch {
	case req.Query != "":
		if req.Query != QueryState {
			return Response{Status: StatusError, Error: fmt.Sprintf("unknown query %q", req.Query)}
		}
		return Response{Status: StatusOK, State: sink.State().String()}

	case req.Action != "":
		a, err := channel.ParseAction(req.Action)
		if err != nil {
			return Response{Status: StatusError, Error: err.Error()}
		}
		sink.Send(a)
		return Response{Status: StatusOK}

	default:
		return Response{Status: StatusError, Error: "request needs an action or a query"}
	}
}

// ============================================================================
// IPC Client
// ============================================================================

// SendAction asks the daemon at socketPath to send a.
func SendAction(socketPath string, a channel.Action) error {
	_, err := roundTrip(socketPath, Request{Action: string(a)})
	return err
}

// QueryChannelState returns the daemon's current channel state.
func QueryChannelState(socketPath string) (string, error) {
	resp, err := roundTrip(socketPath, Request{Query: QueryState})
	if err != nil {
		return "", err
	}
	return resp.State, nil
}

func roundTrip(socketPath string, req Request) (Response, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return Response{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()

	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, fmt.Errorf("marshal request: %w", err)
	}

	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status != StatusOK {
		return resp, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}
