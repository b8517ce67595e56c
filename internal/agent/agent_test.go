package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// TestHelperProcess stands in for decision programs and UCI engines.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("ARENA_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "--" {
			args = args[i+1:]
			break
		}
	}
	switch mode := os.Getenv("ARENA_HELPER_MODE"); {
	case strings.HasPrefix(mode, "move:"):
		fmt.Println(strings.TrimPrefix(mode, "move:"))
	case mode == "args":
		_ = os.WriteFile(os.Getenv("ARENA_HELPER_OUT"), []byte(strings.Join(args, "\n")), 0o644)
		fmt.Print("e2e4\n")
	case mode == "fail":
		fmt.Fprintln(os.Stderr, "engine exploded")
		os.Exit(3)
	case mode == "sleep":
		time.Sleep(10 * time.Second)
		fmt.Println("e2e4")
	case mode == "uci":
		runFakeEngine()
	}
	os.Exit(0)
}

func runFakeEngine() {
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		cmd := strings.TrimSpace(in.Text())
		switch {
		case cmd == "uci":
			fmt.Println("uciok")
		case cmd == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(cmd, "go"):
			fmt.Println("info depth 1 score cp 10 pv g1f3")
			fmt.Println("bestmove g1f3")
		case cmd == "quit":
			return
		}
	}
}

func helperConfig(mode string, extraEnv ...string) ProcessConfig {
	env := append([]string{"ARENA_HELPER_PROCESS=1", "ARENA_HELPER_MODE=" + mode}, extraEnv...)
	return ProcessConfig{
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess", "--"},
		Env:  env,
	}
}

func newHelperProcess(t *testing.T, color board.Color, mode string, total time.Duration, extraEnv ...string) *Process {
	t.Helper()
	p, err := NewProcess(color, "helper", helperConfig(mode, extraEnv...), budget.NewTracker(total), nil)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func awaitResult(t *testing.T, ch <-chan Result) Result {
	t.Helper()
	select {
	case res := <-ch:
		return res
	case <-time.After(10 * time.Second):
		t.Fatalf("no result delivered")
		return Result{}
	}
}

func request(token uint64, side board.Color, ch chan Result) Request {
	return Request{Token: token, FEN: startFEN, Side: side, Deliver: func(r Result) { ch <- r }}
}

func TestProcessDeliversMove(t *testing.T) {
	p := newHelperProcess(t, board.White, "move:e2e4", time.Minute)
	ch := make(chan Result, 1)
	if !p.TakeTurn(context.Background(), request(7, board.White, ch)) {
		t.Fatalf("TakeTurn refused on own turn")
	}
	res := awaitResult(t, ch)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Token != 7 || res.Color != board.White || res.Move.String() != "e2e4" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Remaining >= time.Minute || res.Remaining != p.Budget().Remaining() {
		t.Fatalf("budget not charged: remaining %v", res.Remaining)
	}
}

func TestProcessArguments(t *testing.T) {
	out := filepath.Join(t.TempDir(), "args.txt")
	p := newHelperProcess(t, board.White, "args", 12500*time.Millisecond, "ARENA_HELPER_OUT="+out)
	mv, err := p.Decide(context.Background(), startFEN)
	if err != nil || mv.String() != "e2e4" {
		t.Fatalf("Decide = %s, %v", mv, err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read args: %v", err)
	}
	got := strings.Split(string(data), "\n")
	if len(got) != 2 || got[0] != startFEN || got[1] != "12.500" {
		t.Fatalf("process args = %q", got)
	}
}

func TestProcessMalformedOutput(t *testing.T) {
	p := newHelperProcess(t, board.White, "move:zz99", time.Minute)
	ch := make(chan Result, 1)
	p.TakeTurn(context.Background(), request(1, board.White, ch))
	res := awaitResult(t, ch)
	if kind, ok := FailureOf(res.Err); !ok || kind != FailureOutput {
		t.Fatalf("expected output failure, got %v", res.Err)
	}
	if !errors.Is(res.Err, board.ErrInvalidMove) {
		t.Fatalf("failure should wrap ErrInvalidMove: %v", res.Err)
	}
	if res.Raw != "zz99" {
		t.Fatalf("raw = %q", res.Raw)
	}
	if p.Budget().Remaining() >= time.Minute {
		t.Fatalf("budget must be charged on failure")
	}
}

func TestProcessEmptyOutput(t *testing.T) {
	p := newHelperProcess(t, board.White, "silent", time.Minute)
	if _, err := p.Decide(context.Background(), startFEN); err == nil {
		t.Fatalf("expected failure for empty output")
	} else if kind, _ := FailureOf(err); kind != FailureOutput {
		t.Fatalf("kind = %s", kind)
	}
}

func TestProcessExitFailure(t *testing.T) {
	p := newHelperProcess(t, board.White, "fail", time.Minute)
	_, err := p.Decide(context.Background(), startFEN)
	if kind, ok := FailureOf(err); !ok || kind != FailureExit {
		t.Fatalf("expected exit failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "engine exploded") {
		t.Fatalf("stderr tail missing: %v", err)
	}
}

func TestProcessLaunchFailure(t *testing.T) {
	tr := budget.NewTracker(time.Minute)
	p, err := NewProcess(board.Black, "", ProcessConfig{Path: filepath.Join(t.TempDir(), "missing")}, tr, nil)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	defer p.Close()
	_, err = p.Decide(context.Background(), startFEN)
	if kind, ok := FailureOf(err); !ok || kind != FailureLaunch {
		t.Fatalf("expected launch failure, got %v", err)
	}
}

func TestTakeTurnGating(t *testing.T) {
	p := newHelperProcess(t, board.Black, "move:e7e5", time.Minute)
	ch := make(chan Result, 1)
	if p.TakeTurn(context.Background(), request(1, board.White, ch)) {
		t.Fatalf("agent acted out of turn")
	}
	p.SetEnabled(false)
	if p.TakeTurn(context.Background(), request(2, board.Black, ch)) {
		t.Fatalf("disabled agent acted")
	}
	if !p.AcceptsInput() {
		t.Fatalf("disabled process should accept manual input")
	}
	select {
	case res := <-ch:
		t.Fatalf("unexpected result %+v", res)
	default:
	}
}

func TestHaltCancelsInflight(t *testing.T) {
	p := newHelperProcess(t, board.White, "sleep", time.Minute)
	ch := make(chan Result, 1)
	p.TakeTurn(context.Background(), request(1, board.White, ch))
	time.Sleep(100 * time.Millisecond)
	p.Halt()
	res := awaitResult(t, ch)
	if res.Err == nil {
		t.Fatalf("halted process should not produce a move")
	}
}

func TestGraceKillsOverrun(t *testing.T) {
	cfg := helperConfig("sleep")
	cfg.Grace = 100 * time.Millisecond
	p, err := NewProcess(board.White, "slow", cfg, budget.NewTracker(100*time.Millisecond), nil)
	if err != nil {
		t.Fatalf("NewProcess: %v", err)
	}
	defer p.Close()
	start := time.Now()
	if _, err := p.Decide(context.Background(), startFEN); err == nil {
		t.Fatalf("expected overrun failure")
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("grace deadline not enforced")
	}
	if !p.Budget().Exhausted() {
		t.Fatalf("overrun should exhaust the budget")
	}
}

func TestHuman(t *testing.T) {
	var ready []uint64
	h := NewHuman(board.White, "", OnReady(func(r Request) { ready = append(ready, r.Token) }))
	if h.Name() != "white" || h.Kind() != KindHuman {
		t.Fatalf("unexpected identity %s %s", h.Name(), h.Kind())
	}
	delivered := false
	req := Request{Token: 3, Side: board.White, Deliver: func(Result) { delivered = true }}
	if !h.TakeTurn(context.Background(), req) {
		t.Fatalf("human refused own turn")
	}
	req.Side = board.Black
	if h.TakeTurn(context.Background(), req) {
		t.Fatalf("human acted out of turn")
	}
	if delivered || len(ready) != 1 || ready[0] != 3 {
		t.Fatalf("ready=%v delivered=%v", ready, delivered)
	}
	h.SetEnabled(false)
	if h.AcceptsInput() {
		t.Fatalf("disabled human must not accept input")
	}
}

func TestUCIAgent(t *testing.T) {
	cfg := UCIConfig{
		Path: os.Args[0],
		Args: []string{"-test.run=TestHelperProcess", "--"},
	}
	t.Setenv("ARENA_HELPER_PROCESS", "1")
	t.Setenv("ARENA_HELPER_MODE", "uci")
	u, err := NewUCI(board.White, "fake", cfg, budget.NewTracker(30*time.Second), nil)
	if err != nil {
		t.Fatalf("NewUCI: %v", err)
	}
	defer u.Close()

	ch := make(chan Result, 1)
	if !u.TakeTurn(context.Background(), request(1, board.White, ch)) {
		t.Fatalf("TakeTurn refused")
	}
	res := awaitResult(t, ch)
	if res.Err != nil || res.Move.String() != "g1f3" {
		t.Fatalf("unexpected result %+v", res)
	}
	info := Describe(u)
	if !info.Budgeted || info.Kind != KindUCI || info.RemainingSeconds >= 30 {
		t.Fatalf("unexpected info %+v", info)
	}

	before := u.Budget().Remaining()
	var d Decider = u
	mv, err := d.Decide(context.Background(), startFEN)
	if err != nil || mv.String() != "g1f3" {
		t.Fatalf("Decide = %s, %v", mv, err)
	}
	if u.Budget().Remaining() >= before {
		t.Fatalf("Decide did not charge the budget")
	}
}

func TestDecideSharesWorkerPath(t *testing.T) {
	p := newHelperProcess(t, board.White, "move:e2e4", time.Minute)
	p.Halt()
	mv, err := p.Decide(context.Background(), startFEN)
	if err != nil || mv.String() != "e2e4" {
		t.Fatalf("Decide = %s, %v", mv, err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := p.Decide(ctx, startFEN); !errors.Is(err, errNotStarted) {
		t.Fatalf("cancelled Decide = %v", err)
	}
	if p.Budget().Remaining() == time.Minute {
		t.Fatalf("budget not charged")
	}
}

func TestUCIMoveTime(t *testing.T) {
	u, err := NewUCI(board.White, "", UCIConfig{Path: "engine", MaxMoveTime: 2 * time.Second}, budget.NewTracker(time.Minute), nil)
	if err != nil {
		t.Fatalf("NewUCI: %v", err)
	}
	cases := []struct {
		remaining time.Duration
		want      time.Duration
	}{
		{30 * time.Second, time.Second},
		{10 * time.Minute, 2 * time.Second},
		{0, defaultMinMoveTime},
	}
	for _, tc := range cases {
		if got := u.MoveTime(tc.remaining); got != tc.want {
			t.Fatalf("MoveTime(%v) = %v, want %v", tc.remaining, got, tc.want)
		}
	}
}
