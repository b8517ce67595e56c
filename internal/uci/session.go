package uci

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultReadyTimeout = 4 * time.Second
	quitGrace           = 500 * time.Millisecond
)

var ErrClosed = errors.New("uci session closed")

// Options are sent as setoption commands. Zero values are skipped so
// engines that lack an option still initialize.
type Options struct {
	Threads    int               `yaml:"threads" json:"threads"`
	HashMB     int               `yaml:"hash_mb" json:"hash_mb"`
	SkillLevel *int              `yaml:"skill_level" json:"skill_level,omitempty"`
	Elo        int               `yaml:"elo" json:"elo"`
	Extra      map[string]string `yaml:"extra" json:"extra,omitempty"`
}

type Limits struct {
	Depth          int
	MoveTimeMillis int
	NodeCap        int
}

type SearchRequest struct {
	FEN    string
	Moves  []string
	Limits Limits
}

type SearchResponse struct {
	BestMove string
	EvalCP   int
	Depth    int
}

type line struct {
	text string
	err  error
}

// Session is one long-lived engine process speaking UCI over pipes.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan line
	logger *zap.Logger

	// stop unblocks pump once the session is closed; pumped is closed when
	// pump has finished reading stdout.
	stop   chan struct{}
	pumped chan struct{}

	mu     sync.Mutex
	search sync.Mutex
	closed bool
}

func NewSession(ctx context.Context, binaryPath string, args []string, opt Options, logger *zap.Logger) (*Session, error) {
	if err := validateOptions(opt); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cmd := exec.Command(binaryPath, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := &Session{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan line, 64),
		logger: logger.With(zap.String("engine", binaryPath)),
		stop:   make(chan struct{}),
		pumped: make(chan struct{}),
	}
	go s.pump(bufio.NewReader(stdoutPipe))

	if err := s.initialize(ctx, opt); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// pump is the only reader of the engine's stdout.
func (s *Session) pump(r *bufio.Reader) {
	defer close(s.pumped)
	defer close(s.lines)
	for {
		text, err := r.ReadString('\n')
		text = strings.TrimSpace(text)
		if text != "" || err == nil {
			if !s.deliver(line{text: text}) {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.deliver(line{err: err})
			}
			return
		}
	}
}

func (s *Session) deliver(l line) bool {
	select {
	case s.lines <- l:
		return true
	case <-s.stop:
		return false
	}
}

func (s *Session) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	s.search.Lock()
	defer s.search.Unlock()

	positionCmd := buildPositionCommand(req.FEN, req.Moves)
	if err := s.send(positionCmd); err != nil {
		return SearchResponse{}, fmt.Errorf("send position: %w", err)
	}

	goTokens, err := buildGoTokens(req.Limits)
	if err != nil {
		return SearchResponse{}, err
	}
	goCmd := strings.Join(goTokens, " ")
	if err := s.send(goCmd + "\n"); err != nil {
		return SearchResponse{}, fmt.Errorf("send go: %w", err)
	}

	searchCtx, cancel := context.WithTimeout(ctx, computeSearchTimeout(req.Limits))
	defer cancel()

	var resp SearchResponse
	for {
		text, err := s.readLine(searchCtx)
		if err != nil {
			if searchCtx.Err() != nil {
				s.abandonSearch()
			}
			s.logger.Warn("uci_read_failed",
				zap.String("position", strings.TrimSpace(positionCmd)),
				zap.String("go", goCmd),
				zap.Error(err))
			return SearchResponse{}, fmt.Errorf("read line: %w", err)
		}
		switch {
		case strings.HasPrefix(text, "info "):
			if depth, cp, ok := parseInfo(text); ok {
				resp.Depth = depth
				resp.EvalCP = cp
			}
		case strings.HasPrefix(text, "bestmove"):
			parts := strings.Fields(text)
			if len(parts) >= 2 {
				resp.BestMove = parts[1]
			}
			return resp, nil
		}
	}
}

// abandonSearch stops a running search and swallows its bestmove so the
// next Search does not read it.
func (s *Session) abandonSearch() {
	if err := s.send("stop\n"); err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), quitGrace)
	defer cancel()
	_ = s.awaitToken(ctx, "bestmove")
}

func buildPositionCommand(fen string, moves []string) string {
	var sb strings.Builder
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		sb.WriteString("position startpos")
	} else {
		sb.WriteString("position fen ")
		sb.WriteString(fen)
	}
	if len(moves) > 0 {
		sb.WriteString(" moves ")
		sb.WriteString(strings.Join(moves, " "))
	}
	sb.WriteString("\n")
	return sb.String()
}

func validateOptions(opt Options) error {
	if opt.SkillLevel != nil && (*opt.SkillLevel < 0 || *opt.SkillLevel > 20) {
		return fmt.Errorf("skill level %d out of range 0-20", *opt.SkillLevel)
	}
	if opt.HashMB < 0 {
		return fmt.Errorf("hash size must be >= 0: %d", opt.HashMB)
	}
	if opt.Elo < 0 {
		return fmt.Errorf("elo must be >= 0: %d", opt.Elo)
	}
	return nil
}

func buildGoTokens(l Limits) ([]string, error) {
	args := []string{"go"}
	if l.Depth > 0 {
		args = append(args, "depth", strconv.Itoa(l.Depth))
	}
	if l.MoveTimeMillis > 0 {
		args = append(args, "movetime", strconv.Itoa(l.MoveTimeMillis))
	}
	if l.NodeCap > 0 {
		args = append(args, "nodes", strconv.Itoa(l.NodeCap))
	}
	if len(args) == 1 {
		return nil, fmt.Errorf("no search limits specified")
	}
	return args, nil
}

func computeSearchTimeout(l Limits) time.Duration {
	if l.MoveTimeMillis > 0 {
		return time.Duration(l.MoveTimeMillis)*time.Millisecond + 2*time.Second
	}
	if l.Depth > 0 {
		base := time.Duration(l.Depth) * 300 * time.Millisecond
		if base < 6*time.Second {
			base = 6 * time.Second
		}
		if base > 20*time.Second {
			base = 20 * time.Second
		}
		return base
	}
	return 6 * time.Second
}

// parseInfo extracts depth and a centipawn score from an info line.
func parseInfo(text string) (int, int, bool) {
	parts := strings.Fields(text)
	var (
		depth  int
		evalCP int
		found  bool
	)
	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					depth = v
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				v, err := strconv.Atoi(parts[i+2])
				if err == nil {
					switch parts[i+1] {
					case "cp":
						evalCP, found = v, true
					case "mate":
						const mateValue = 30000
						if v >= 0 {
							evalCP = mateValue
						} else {
							evalCP = -mateValue
						}
						found = true
					}
				}
				i += 2
			}
		case "pv":
			i = len(parts)
		}
	}
	return depth, evalCP, found
}

func (s *Session) EnsureReady(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(readyCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func (s *Session) NewGame(ctx context.Context) error {
	if err := s.send("ucinewgame\n"); err != nil {
		return fmt.Errorf("send ucinewgame: %w", err)
	}
	return s.EnsureReady(ctx)
}

// Close asks the engine to quit and kills it if it lingers. Wait runs
// only after pump has stopped reading stdout.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	_, _ = io.WriteString(s.stdin, "quit\n")
	s.stdin.Close()
	close(s.stop)
	s.mu.Unlock()

	grace := time.NewTimer(quitGrace)
	defer grace.Stop()
	killed := false
	select {
	case <-s.pumped:
	case <-grace.C:
		_ = s.cmd.Process.Kill()
		killed = true
		<-s.pumped
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case err := <-done:
		if killed {
			return nil
		}
		return err
	case <-grace.C:
		_ = s.cmd.Process.Kill()
		<-done
		return nil
	}
}

func (s *Session) initialize(ctx context.Context, opt Options) error {
	initCtx, cancel := context.WithTimeout(ctx, defaultReadyTimeout)
	defer cancel()

	if err := s.send("uci\n"); err != nil {
		return fmt.Errorf("send uci: %w", err)
	}
	if err := s.awaitToken(initCtx, "uciok"); err != nil {
		return fmt.Errorf("wait uciok: %w", err)
	}
	for _, cmd := range optionCommands(opt) {
		if err := s.send(cmd); err != nil {
			return fmt.Errorf("apply options: %w", err)
		}
	}
	if err := s.send("isready\n"); err != nil {
		return fmt.Errorf("send isready: %w", err)
	}
	if err := s.awaitToken(initCtx, "readyok"); err != nil {
		return fmt.Errorf("wait readyok: %w", err)
	}
	return nil
}

func optionCommands(opt Options) []string {
	var cmds []string
	if opt.Threads > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Threads value %d\n", opt.Threads))
	}
	if opt.HashMB > 0 {
		cmds = append(cmds, fmt.Sprintf("setoption name Hash value %d\n", opt.HashMB))
	}
	if opt.SkillLevel != nil {
		cmds = append(cmds, fmt.Sprintf("setoption name Skill Level value %d\n", *opt.SkillLevel))
	}
	if opt.Elo > 0 {
		cmds = append(cmds,
			"setoption name UCI_LimitStrength value true\n",
			fmt.Sprintf("setoption name UCI_Elo value %d\n", opt.Elo))
	}
	for name, value := range opt.Extra {
		cmds = append(cmds, fmt.Sprintf("setoption name %s value %s\n", name, value))
	}
	return cmds
}

func (s *Session) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func (s *Session) awaitToken(ctx context.Context, token string) error {
	for {
		text, err := s.readLine(ctx)
		if err != nil {
			return err
		}
		if strings.Contains(text, token) {
			return nil
		}
	}
}

func (s *Session) readLine(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-s.lines:
		if !ok {
			return "", io.EOF
		}
		return l.text, l.err
	}
}
