package board

import (
	"errors"
	"testing"
)

func TestParseMove(t *testing.T) {
	cases := []struct {
		code string
		want string
		ok   bool
	}{
		{"e2e4", "e2e4", true},
		{" E7E8Q\n", "e7e8q", true},
		{"a7a8n", "a7a8n", true},
		{"zz99", "", false},
		{"e2e4k", "", false},
		{"e2", "", false},
		{"e2e2", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		mv, err := ParseMove(tc.code)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParseMove(%q): %v", tc.code, err)
			}
			if mv.String() != tc.want {
				t.Fatalf("ParseMove(%q) = %q, want %q", tc.code, mv.String(), tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrInvalidMove) {
			t.Fatalf("ParseMove(%q): expected ErrInvalidMove, got %v", tc.code, err)
		}
	}
}

func TestSquareBounds(t *testing.T) {
	if _, err := NewSquare(8, 0); !errors.Is(err, ErrInvalidSquare) {
		t.Fatalf("expected ErrInvalidSquare, got %v", err)
	}
	sq, err := NewSquare(7, 7)
	if err != nil || sq.String() != "h8" {
		t.Fatalf("NewSquare(7,7) = %v, %v", sq, err)
	}
	if _, err := ParseSquare("i1"); err == nil {
		t.Fatalf("expected error for i1")
	}
}

func TestColor(t *testing.T) {
	if White.Opponent() != Black || Black.Opponent() != White {
		t.Fatalf("opponent mismatch")
	}
	c, err := ParseColor("B")
	if err != nil || c != Black {
		t.Fatalf("ParseColor(B) = %v, %v", c, err)
	}
	if _, err := ParseColor("green"); !errors.Is(err, ErrInvalidColor) {
		t.Fatalf("expected ErrInvalidColor, got %v", err)
	}
}

func TestResultWinner(t *testing.T) {
	r := WinFor(Black, ReasonTimeForfeit)
	if c, ok := r.Winner(); !ok || c != Black {
		t.Fatalf("winner = %v, %v", c, ok)
	}
	if _, ok := (Result{Outcome: Draw}).Winner(); ok {
		t.Fatalf("draw has no winner")
	}
}
