package channel

import (
	"fmt"
	"time"
)

// This file implements the connection lifecycle as a reducer:
//
//   - Events: inputs (connect requests, dial outcomes, connection loss, timer expiry)
//   - Effects: side effects requested by the reducer (dial, start/close a session, timers)
//   - Reduce(): computes the next Machine + effects without performing I/O
//
// The channel loop is the only place that executes effects and it feeds
// their outcomes back in as Events.
//
// Every connection attempt gets a new generation number. Events carry the
// generation they belong to so outcomes from superseded attempts can be
// recognized and discarded.

// State is the channel lifecycle state.
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Machine is the reducer-owned lifecycle state.
type Machine struct {
	State State
	Gen   uint64 // generation of the current connection attempt
}

// Policy carries the tunables the reducer needs.
type Policy struct {
	ReconnectDelay time.Duration
}

// Transition describes one state change, published to observers.
type Transition struct {
	From State
	To   State
	Gen  uint64
	Err  error // cause for transitions into Closed
}

// ==============================
// Events
// ==============================

// Event is the input to the reducer.
type Event interface {
	eventMarker()
}

// ConnectRequested asks for a connection. It is a no-op while one is being
// established or is already open.
type ConnectRequested struct{}

func (ConnectRequested) eventMarker() {}

// DialSucceeded reports a completed transport handshake.
type DialSucceeded struct {
	Gen uint64

	conn Conn
	id   string
}

func (DialSucceeded) eventMarker() {}

// DialFailed reports a handshake failure.
type DialFailed struct {
	Gen uint64
	Err error
}

func (DialFailed) eventMarker() {}

// ConnectionLost reports a read error, remote close or fatal write error.
type ConnectionLost struct {
	Gen uint64
	Err error
}

func (ConnectionLost) eventMarker() {}

// ReconnectDue is emitted when the reconnect timer for Gen expires.
type ReconnectDue struct {
	Gen uint64
}

func (ReconnectDue) eventMarker() {}

// ==============================
// Effects
// ==============================

// Effect is a side effect requested by the reducer.
type Effect interface {
	effectMarker()
	String() string
}

// Dial starts a transport handshake for Gen.
type Dial struct{ Gen uint64 }

func (Dial) effectMarker()    {}
func (e Dial) String() string { return fmt.Sprintf("Dial(gen=%d)", e.Gen) }

// StartSession starts the reader and writer for the connection of Gen and
// makes it the target for sends and heartbeats.
type StartSession struct{ Gen uint64 }

func (StartSession) effectMarker()    {}
func (e StartSession) String() string { return fmt.Sprintf("StartSession(gen=%d)", e.Gen) }

// CloseConnection closes and forgets the connection of Gen, if any.
type CloseConnection struct{ Gen uint64 }

func (CloseConnection) effectMarker()    {}
func (e CloseConnection) String() string { return fmt.Sprintf("CloseConnection(gen=%d)", e.Gen) }

// ScheduleReconnect arms a one-shot timer that emits ReconnectDue{Gen}.
type ScheduleReconnect struct {
	Gen   uint64
	After time.Duration
}

func (ScheduleReconnect) effectMarker() {}
func (e ScheduleReconnect) String() string {
	return fmt.Sprintf("ScheduleReconnect(gen=%d, after=%s)", e.Gen, e.After)
}

// CancelReconnect stops a pending reconnect timer.
type CancelReconnect struct{}

func (CancelReconnect) effectMarker()  {}
func (CancelReconnect) String() string { return "CancelReconnect()" }

// Notify publishes a transition to observers.
type Notify struct{ Transition Transition }

func (Notify) effectMarker() {}
func (e Notify) String() string {
	return fmt.Sprintf("Notify(%s->%s, gen=%d)", e.Transition.From, e.Transition.To, e.Transition.Gen)
}

// ==============================
// Reducer
// ==============================

// ReduceResult is the output of Reduce: next machine plus effects to execute in order.
type ReduceResult struct {
	Machine Machine
	Effects []Effect
}

// Reduce is the pure lifecycle reducer.
//
// Rules:
//   - Must not perform I/O or block
//   - Outcomes for a generation other than the current one never change state
//   - A stale successful dial is answered with CloseConnection so the link is not leaked
func Reduce(m Machine, e Event, p Policy) ReduceResult {
	var effects []Effect

	switch ev := e.(type) {
	case ConnectRequested:
		switch m.State {
		case StateConnecting, StateOpen:
			// single-flight
			return ReduceResult{Machine: m}
		case StateClosed:
			effects = append(effects, CancelReconnect{})
		}
		from := m.State
		m.Gen++
		m.State = StateConnecting
		effects = append(effects,
			Dial{Gen: m.Gen},
			Notify{Transition: Transition{From: from, To: StateConnecting, Gen: m.Gen}},
		)

	case DialSucceeded:
		if ev.Gen != m.Gen || m.State != StateConnecting {
			return ReduceResult{Machine: m, Effects: []Effect{CloseConnection{Gen: ev.Gen}}}
		}
		m.State = StateOpen
		effects = append(effects,
			StartSession{Gen: m.Gen},
			Notify{Transition: Transition{From: StateConnecting, To: StateOpen, Gen: m.Gen}},
		)

	case DialFailed:
		if ev.Gen != m.Gen || m.State != StateConnecting {
			return ReduceResult{Machine: m}
		}
		m.State = StateClosed
		effects = append(effects,
			ScheduleReconnect{Gen: m.Gen, After: p.ReconnectDelay},
			Notify{Transition: Transition{From: StateConnecting, To: StateClosed, Gen: m.Gen, Err: ev.Err}},
		)

	case ConnectionLost:
		if ev.Gen != m.Gen || m.State != StateOpen {
			// Late report from a superseded session; make sure it is closed.
			return ReduceResult{Machine: m, Effects: []Effect{CloseConnection{Gen: ev.Gen}}}
		}
		m.State = StateClosed
		effects = append(effects,
			CloseConnection{Gen: m.Gen},
			ScheduleReconnect{Gen: m.Gen, After: p.ReconnectDelay},
			Notify{Transition: Transition{From: StateOpen, To: StateClosed, Gen: m.Gen, Err: ev.Err}},
		)

	case ReconnectDue:
		if ev.Gen != m.Gen || m.State != StateClosed {
			return ReduceResult{Machine: m}
		}
		m.Gen++
		m.State = StateConnecting
		effects = append(effects,
			Dial{Gen: m.Gen},
			Notify{Transition: Transition{From: StateClosed, To: StateConnecting, Gen: m.Gen}},
		)

	default:
		// Unknown event type: no-op.
	}

	return ReduceResult{Machine: m, Effects: effects}
}
