package turn

import (
	"time"

	"github.com/park285/Cheese-arena/internal/board"
)

type EventKind string

const (
	EventMoveApplied  EventKind = "move_applied"
	EventUndone       EventKind = "undone"
	EventGameOver     EventKind = "game_over"
	EventAgentFailure EventKind = "agent_failure"
)

// Event is emitted by the session after every state transition.
type Event struct {
	Kind      EventKind     `json:"kind"`
	SessionID string        `json:"session_id"`
	Color     board.Color   `json:"-"`
	Side      string        `json:"color"`
	Move      string        `json:"move,omitempty"`
	SAN       string        `json:"san,omitempty"`
	FEN       string        `json:"fen"`
	Ply       int           `json:"ply"`
	Result    *board.Result `json:"result,omitempty"`
	Error     string        `json:"error,omitempty"`
	Strikes   int           `json:"strikes,omitempty"`
	At        time.Time     `json:"at"`
}

// Sink receives events on the loop goroutine. It must not call back into
// the Loop synchronously.
type Sink func(Event)

// Tee fans one event out to several sinks in order.
func Tee(sinks ...Sink) Sink {
	return func(ev Event) {
		for _, s := range sinks {
			if s != nil {
				s(ev)
			}
		}
	}
}
