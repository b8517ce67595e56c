package agent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
)

const stderrTail = 512

// ProcessConfig describes an external decision program. It is invoked as
// <Path> [Args...] <FEN> <remaining seconds> once per turn.
type ProcessConfig struct {
	Path string
	Args []string
	Env  []string
	Dir  string
	// Grace, when positive, kills the process once it outlives the
	// remaining budget by this much.
	Grace time.Duration
}

// Process runs an external program per turn on a worker goroutine.
type Process struct {
	base
	cfg     ProcessConfig
	tracker *budget.Tracker
	logger  *zap.Logger
	run     *runner
}

func NewProcess(color board.Color, name string, cfg ProcessConfig, tracker *budget.Tracker, logger *zap.Logger) (*Process, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("process agent: executable path required")
	}
	if tracker == nil {
		return nil, errors.New("process agent: budget tracker required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = cfg.Path
	}
	logger = logger.With(zap.String("agent", name), zap.String("color", color.String()))
	p := &Process{
		cfg:     cfg,
		tracker: tracker,
		logger:  logger,
		run:     newRunner(tracker, logger),
	}
	p.init(color, name, true)
	return p, nil
}

func (p *Process) Kind() Kind { return KindProcess }

// AcceptsInput is true while the program is disabled: the color is then
// played by hand.
func (p *Process) AcceptsInput() bool { return !p.Enabled() }

func (p *Process) Budget() *budget.Tracker { return p.tracker }

func (p *Process) TakeTurn(ctx context.Context, req Request) bool {
	if !p.acting(req.Side) {
		return false
	}
	return p.run.launch(ctx, p.color, req, p.decide)
}

// Decide runs the program once and charges the budget. It blocks until the
// program exits. TakeTurn's worker goes through the same path.
func (p *Process) Decide(ctx context.Context, fen string) (board.Move, error) {
	mv, _, _, err := p.run.timed(ctx, fen, p.decide)
	return mv, err
}

func (p *Process) decide(ctx context.Context, fen string, remaining time.Duration) (board.Move, string, error) {
	if p.cfg.Grace > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, remaining+p.cfg.Grace)
		defer cancel()
	}

	args := make([]string, 0, len(p.cfg.Args)+2)
	args = append(args, p.cfg.Args...)
	args = append(args, fen, FormatSeconds(remaining))

	cmd := exec.CommandContext(ctx, p.cfg.Path, args...)
	cmd.Dir = p.cfg.Dir
	if len(p.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), p.cfg.Env...)
	}
	var stdout bytes.Buffer
	stderr := &tailBuffer{limit: stderrTail}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr

	p.logger.Debug("process_turn_start",
		zap.String("fen", fen),
		zap.Duration("remaining", remaining))

	if err := cmd.Start(); err != nil {
		return board.Move{}, "", &Failure{Kind: FailureLaunch, Agent: p.name, Err: err}
	}
	if err := cmd.Wait(); err != nil {
		if tail := strings.TrimSpace(stderr.String()); tail != "" {
			err = fmt.Errorf("%w: %s", err, tail)
		}
		return board.Move{}, stdout.String(), &Failure{Kind: FailureExit, Agent: p.name, Err: err}
	}

	raw := strings.TrimSpace(stdout.String())
	if raw == "" {
		return board.Move{}, raw, &Failure{Kind: FailureOutput, Agent: p.name, Err: errors.New("empty output")}
	}
	mv, err := board.ParseMove(raw)
	if err != nil {
		return board.Move{}, raw, &Failure{Kind: FailureOutput, Agent: p.name, Err: err}
	}
	return mv, raw, nil
}

func (p *Process) Halt() { p.run.halt() }

func (p *Process) Close() error {
	p.run.close()
	return nil
}

// FormatSeconds renders a budget the way decision programs receive it.
func FormatSeconds(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	limit int
	buf   []byte
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.limit; over > 0 {
		t.buf = t.buf[over:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string { return string(t.buf) }
