package uci

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"
)

// TestHelperProcess is a minimal UCI engine driven by the tests below.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("ARENA_HELPER_PROCESS") != "1" {
		return
	}
	mode := os.Getenv("ARENA_HELPER_MODE")
	in := bufio.NewScanner(os.Stdin)
	for in.Scan() {
		cmd := strings.TrimSpace(in.Text())
		switch {
		case cmd == "uci":
			fmt.Println("id name helper")
			fmt.Println("uciok")
		case cmd == "isready":
			fmt.Println("readyok")
		case strings.HasPrefix(cmd, "go"):
			if mode == "silent" {
				continue
			}
			if mode == "chatty" {
				for i := 1; i <= 200; i++ {
					fmt.Printf("info depth %d score cp %d nodes %d\n", i, i, i*100)
				}
			}
			fmt.Println("info depth 3 score cp 25 pv e2e4 e7e5")
			fmt.Println("bestmove e2e4 ponder e7e5")
		case cmd == "stop":
			fmt.Println("bestmove a2a3")
		case cmd == "quit":
			os.Exit(0)
		}
	}
	os.Exit(0)
}

func helperSession(t *testing.T, mode string) *Session {
	t.Helper()
	t.Setenv("ARENA_HELPER_PROCESS", "1")
	t.Setenv("ARENA_HELPER_MODE", mode)
	s, err := NewSession(context.Background(), os.Args[0], []string{"-test.run=TestHelperProcess", "--"}, Options{Threads: 1}, nil)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSearchReturnsBestMove(t *testing.T) {
	s := helperSession(t, "")
	resp, err := s.Search(context.Background(), SearchRequest{FEN: "startpos", Limits: Limits{MoveTimeMillis: 50}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.BestMove != "e2e4" || resp.EvalCP != 25 || resp.Depth != 3 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if err := s.NewGame(context.Background()); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
}

func TestSearchTimeoutStopsEngine(t *testing.T) {
	s := helperSession(t, "silent")
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if _, err := s.Search(ctx, SearchRequest{FEN: "startpos", Limits: Limits{Depth: 1}}); err == nil {
		t.Fatalf("expected timeout error")
	}
	// the bestmove answering stop must not leak into the next exchange
	if err := s.EnsureReady(context.Background()); err != nil {
		t.Fatalf("EnsureReady after timeout: %v", err)
	}
}

func TestCloseWithUnreadOutput(t *testing.T) {
	s := helperSession(t, "chatty")
	if err := s.send("go depth 1\n"); err != nil {
		t.Fatalf("send: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(s.lines) < cap(s.lines) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case <-s.pumped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stdout reader still running after Close")
	}
	if _, err := s.Search(context.Background(), SearchRequest{Limits: Limits{Depth: 1}}); err == nil {
		t.Fatalf("expected error after Close")
	}
}

func TestBuildCommands(t *testing.T) {
	if got := buildPositionCommand("", nil); got != "position startpos\n" {
		t.Fatalf("position = %q", got)
	}
	if got := buildPositionCommand("8/8/8/8/8/8/8/K6k w - - 0 1", []string{"a1a2"}); got != "position fen 8/8/8/8/8/8/8/K6k w - - 0 1 moves a1a2\n" {
		t.Fatalf("position = %q", got)
	}
	if _, err := buildGoTokens(Limits{}); err == nil {
		t.Fatalf("expected error for empty limits")
	}
	tokens, _ := buildGoTokens(Limits{MoveTimeMillis: 1500})
	if strings.Join(tokens, " ") != "go movetime 1500" {
		t.Fatalf("go tokens = %v", tokens)
	}
}

func TestParseInfoMate(t *testing.T) {
	depth, cp, ok := parseInfo("info depth 12 seldepth 14 score mate -3 nodes 100 pv h7h8")
	if !ok || depth != 12 || cp != -30000 {
		t.Fatalf("parseInfo = %d %d %v", depth, cp, ok)
	}
}
