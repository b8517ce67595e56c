package results

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-arena/internal/board"
)

func TestBuildPGN(t *testing.T) {
	rec := Record{
		GameID:   "g1",
		White:    Player{Name: "alpha \"the\" engine", Kind: "process"},
		Black:    Player{Name: "human", Kind: "human"},
		StartFEN: startFEN,
		Result:   board.WinFor(board.Black, board.ReasonCheckmate),
		MovesSAN: []string{"f3", "e5", "g4", "Qh4#"},
		EndedAt:  time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
	}
	pgn := BuildPGN(rec)
	for _, want := range []string{
		`[Date "2026.03.14"]`,
		`[White "alpha 'the' engine"]`,
		`[Termination "checkmate"]`,
		`[Result "0-1"]`,
		"1. f3 e5 2. g4 Qh4# 0-1",
	} {
		if !strings.Contains(pgn, want) {
			t.Fatalf("pgn missing %q:\n%s", want, pgn)
		}
	}
	if strings.Contains(pgn, "[SetUp") {
		t.Fatalf("standard start must not carry SetUp:\n%s", pgn)
	}
}

func TestBuildPGNBlackToMoveStart(t *testing.T) {
	rec := Record{
		StartFEN: "rnbqkbnr/pppppppp/8/8/4P3/8/PPPP1PPP/RNBQKBNR b KQkq - 0 7",
		MovesSAN: []string{"e5", "Nf3", "Nc6"},
	}
	pgn := BuildPGN(rec)
	if !strings.Contains(pgn, `[SetUp "1"]`) || !strings.Contains(pgn, "[FEN \"rnbqkbnr") {
		t.Fatalf("missing setup headers:\n%s", pgn)
	}
	if !strings.Contains(pgn, "7... e5 8. Nf3 Nc6 *") {
		t.Fatalf("unexpected movetext:\n%s", pgn)
	}
}

func TestNilRepositoryIsNoop(t *testing.T) {
	var r *Repository
	if err := r.SaveResult(context.Background(), Record{}); err != nil {
		t.Fatalf("nil repository SaveResult: %v", err)
	}
	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("nil repository EnsureSchema: %v", err)
	}
	if _, err := NewRepository(" "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
