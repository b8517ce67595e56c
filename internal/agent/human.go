package agent

import (
	"context"

	"github.com/park285/Cheese-arena/internal/board"
)

// Human is fed by pointer input. TakeTurn is only a readiness notification.
type Human struct {
	base
	onReady func(Request)
}

type HumanOption func(*Human)

// OnReady is called synchronously whenever it becomes this color's turn.
func OnReady(fn func(Request)) HumanOption {
	return func(h *Human) { h.onReady = fn }
}

func NewHuman(color board.Color, name string, opts ...HumanOption) *Human {
	if name == "" {
		name = color.String()
	}
	h := &Human{}
	h.init(color, name, true)
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Human) Kind() Kind { return KindHuman }

func (h *Human) AcceptsInput() bool { return h.Enabled() }

func (h *Human) TakeTurn(_ context.Context, req Request) bool {
	if !h.acting(req.Side) {
		return false
	}
	if h.onReady != nil {
		h.onReady(req)
	}
	return true
}

func (h *Human) Halt()        {}
func (h *Human) Close() error { return nil }
