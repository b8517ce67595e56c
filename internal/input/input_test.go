package input

import (
	"testing"

	"github.com/park285/Cheese-arena/internal/board"
)

func sq(t *testing.T, s string) board.Square {
	t.Helper()
	v, err := board.ParseSquare(s)
	if err != nil {
		t.Fatalf("ParseSquare(%q): %v", s, err)
	}
	return v
}

func TestSquareAtDefaultGeometry(t *testing.T) {
	g := DefaultGeometry()
	cases := []struct {
		p    Point
		want string
	}{
		{Point{81, 81}, "a8"},
		{Point{619, 619}, "h1"},
		{Point{80 + 67.5*4 + 1, 80 + 67.5*6 + 1}, "e2"},
		{Point{80 + 67.5*4 + 1, 80 + 67.5*4 + 1}, "e4"},
	}
	for _, tc := range cases {
		got, ok := g.SquareAt(tc.p, ButtonPrimary)
		if !ok {
			t.Fatalf("SquareAt(%v) rejected", tc.p)
		}
		if got.String() != tc.want {
			t.Fatalf("SquareAt(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}
}

func TestSquareAtRejects(t *testing.T) {
	g := DefaultGeometry()
	rejects := []struct {
		p Point
		b Button
	}{
		{Point{80, 100}, ButtonPrimary},    // on the left edge
		{Point{100, 620}, ButtonPrimary},   // on the bottom edge
		{Point{10, 10}, ButtonPrimary},     // window corner
		{Point{700, 300}, ButtonPrimary},   // right of the board
		{Point{300, 300}, ButtonSecondary}, // wrong button
		{Point{300, 300}, ButtonPrimary | ButtonSecondary},
		{Point{300, 300}, ButtonNone},
	}
	for _, tc := range rejects {
		if s, ok := g.SquareAt(tc.p, tc.b); ok {
			t.Fatalf("SquareAt(%v, %v) = %s, expected rejection", tc.p, tc.b, s)
		}
	}
}

func TestCenterRoundTrip(t *testing.T) {
	g := DefaultGeometry()
	for _, s := range []string{"a1", "h8", "d5", "g2"} {
		want := sq(t, s)
		got, ok := g.SquareAt(g.Center(want), ButtonPrimary)
		if !ok || got != want {
			t.Fatalf("center of %s mapped to %v (%v)", s, got, ok)
		}
	}
}

func TestGeometryValidate(t *testing.T) {
	if err := DefaultGeometry().Validate(); err != nil {
		t.Fatalf("default geometry invalid: %v", err)
	}
	if err := (Geometry{Side: 100, Margin: 50}).Validate(); err == nil {
		t.Fatalf("expected margin error")
	}
}

func allLegal(board.Move) bool { return true }

func TestAggregatorSameSquareReselect(t *testing.T) {
	var a Aggregator
	s1 := sq(t, "e2")
	if _, out := a.Select(s1, OracleFunc(allLegal), nil); out != OutcomeSelected {
		t.Fatalf("first click outcome = %v", out)
	}
	if _, out := a.Select(s1, OracleFunc(allLegal), nil); out != OutcomeReselected {
		t.Fatalf("second click outcome = %v", out)
	}
	p, ok := a.Pending()
	if !ok || p != s1 {
		t.Fatalf("pending = %v, %v; want e2", p, ok)
	}
}

func TestAggregatorCandidateClearsPending(t *testing.T) {
	var a Aggregator
	a.Select(sq(t, "e2"), OracleFunc(allLegal), nil)
	mv, out := a.Select(sq(t, "e4"), OracleFunc(allLegal), nil)
	if out != OutcomeCandidate || mv.String() != "e2e4" {
		t.Fatalf("got %v %s", out, mv)
	}
	if _, ok := a.Pending(); ok {
		t.Fatalf("pending should be empty after a candidate")
	}
}

// promotionOnly treats e7e8 as legal only with a promotion suffix.
func promotionOnly(mv board.Move) bool {
	return mv.From.String() == "e7" && mv.To.String() == "e8" && mv.Promotion != board.NoPiece
}

func TestAggregatorPromotionDefaultsToQueen(t *testing.T) {
	var a Aggregator
	asked := 0
	choose := func(board.Move) PromotionChoice {
		asked++
		return PromotionChoice{}
	}
	a.Select(sq(t, "e7"), OracleFunc(promotionOnly), choose)
	mv, out := a.Select(sq(t, "e8"), OracleFunc(promotionOnly), choose)
	if out != OutcomeCandidate || mv.String() != "e7e8q" {
		t.Fatalf("got %v %s", out, mv)
	}
	if asked != 1 {
		t.Fatalf("chooser asked %d times", asked)
	}
}

func TestAggregatorPromotionChoice(t *testing.T) {
	var a Aggregator
	choose := func(board.Move) PromotionChoice { return PromotionChoice{Kind: board.Knight} }
	a.Select(sq(t, "e7"), OracleFunc(promotionOnly), choose)
	mv, _ := a.Select(sq(t, "e8"), OracleFunc(promotionOnly), choose)
	if mv.String() != "e7e8n" {
		t.Fatalf("got %s", mv)
	}
}

func TestAggregatorPromotionCancel(t *testing.T) {
	var a Aggregator
	choose := func(board.Move) PromotionChoice { return PromotionChoice{Cancel: true} }
	a.Select(sq(t, "e7"), OracleFunc(promotionOnly), choose)
	_, out := a.Select(sq(t, "e8"), OracleFunc(promotionOnly), choose)
	if out != OutcomeCancelled {
		t.Fatalf("outcome = %v", out)
	}
	if _, ok := a.Pending(); ok {
		t.Fatalf("pending must reset to empty after cancel")
	}
}

func TestNoPromotionPromptForOrdinaryMoves(t *testing.T) {
	choose := func(board.Move) PromotionChoice {
		t.Fatalf("chooser must not be called")
		return PromotionChoice{}
	}
	mv := board.Move{From: sq(t, "e2"), To: sq(t, "e4")}
	got, ok := ResolvePromotion(mv, OracleFunc(allLegal), choose)
	if !ok || got != mv {
		t.Fatalf("got %s %v", got, ok)
	}
}
