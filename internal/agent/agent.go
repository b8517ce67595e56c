package agent

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
)

type Kind string

const (
	KindHuman   Kind = "human"
	KindProcess Kind = "process"
	KindUCI     Kind = "uci"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindHuman, KindProcess, KindUCI:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("unknown agent kind %q", s)
	}
}

// Request solicits one move. Deliver is called at most once, from any
// goroutine, and must not block.
type Request struct {
	Token   uint64
	FEN     string
	Side    board.Color
	Deliver func(Result)
}

// Result is what a worker produced for a Request.
type Result struct {
	Token     uint64
	Color     board.Color
	Move      board.Move
	Raw       string
	Err       error
	Elapsed   time.Duration
	Remaining time.Duration
	Exhausted bool
}

// Agent produces moves for one color.
type Agent interface {
	Color() board.Color
	Name() string
	Kind() Kind
	Enabled() bool
	SetEnabled(on bool)
	// AcceptsInput reports whether pointer or typed moves are taken for this color.
	AcceptsInput() bool
	// TakeTurn returns false when nothing was started: the agent is
	// disabled or it is not its color to move.
	TakeTurn(ctx context.Context, req Request) bool
	// Halt stops in-flight work after the game ended.
	Halt()
	Close() error
}

// Decider is an automated agent that can be asked for one move outside the
// turn loop. The call blocks and charges the agent's budget.
type Decider interface {
	Decide(ctx context.Context, fen string) (board.Move, error)
}

// Budgeted is implemented by agents that own a time budget.
type Budgeted interface {
	Budget() *budget.Tracker
}

type FailureKind string

const (
	FailureLaunch  FailureKind = "launch"
	FailureExit    FailureKind = "exit"
	FailureOutput  FailureKind = "output"
	FailureIllegal FailureKind = "illegal"
)

// Failure is a non-fatal agent error. The turn stays open.
type Failure struct {
	Kind  FailureKind
	Agent string
	Err   error
}

func (f *Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("agent %s: %s failure", f.Agent, f.Kind)
	}
	return fmt.Sprintf("agent %s: %s failure: %v", f.Agent, f.Kind, f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// FailureOf extracts the failure kind of err, if any.
func FailureOf(err error) (FailureKind, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return "", false
}

// Info is a read-only description used by snapshots.
type Info struct {
	Color            board.Color `json:"color"`
	Name             string      `json:"name"`
	Kind             Kind        `json:"kind"`
	Enabled          bool        `json:"enabled"`
	TotalSeconds     float64     `json:"total_seconds,omitempty"`
	RemainingSeconds float64     `json:"remaining_seconds,omitempty"`
	Budgeted         bool        `json:"budgeted"`
}

func Describe(a Agent) Info {
	info := Info{Color: a.Color(), Name: a.Name(), Kind: a.Kind(), Enabled: a.Enabled()}
	if b, ok := a.(Budgeted); ok && b.Budget() != nil {
		info.Budgeted = true
		info.TotalSeconds = b.Budget().Total().Seconds()
		info.RemainingSeconds = b.Budget().RemainingSeconds()
	}
	return info
}

type base struct {
	color   board.Color
	name    string
	enabled atomic.Bool
}

func (b *base) init(color board.Color, name string, enabled bool) {
	b.color = color
	b.name = name
	b.enabled.Store(enabled)
}

func (b *base) Color() board.Color { return b.color }
func (b *base) Name() string       { return b.name }
func (b *base) Enabled() bool      { return b.enabled.Load() }
func (b *base) SetEnabled(on bool) { b.enabled.Store(on) }
func (b *base) acting(side board.Color) bool {
	return b.Enabled() && side == b.color
}
