package arenabuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/budget"
	"github.com/park285/Cheese-arena/internal/config"
	"github.com/park285/Cheese-arena/internal/msgcat"
	"github.com/park285/Cheese-arena/internal/notify"
	"github.com/park285/Cheese-arena/internal/results"
	"github.com/park285/Cheese-arena/internal/rules"
	"github.com/park285/Cheese-arena/internal/store"
	"github.com/park285/Cheese-arena/internal/turn"
	"github.com/park285/Cheese-arena/internal/web"
)

type Options struct {
	// ResumeID continues a stored session instead of starting a new one.
	ResumeID string
	// Headless skips the websocket hub.
	Headless bool
	// Sink receives every event after the built-in sinks.
	Sink turn.Sink
	// OnHumanReady is called when a human side is to move.
	OnHumanReady func(agent.Request)
}

// Deps is a fully wired game: session, loop and the optional storage and
// notification backends configured for it.
type Deps struct {
	Session    *turn.Session
	Loop       *turn.Loop
	Hub        *web.Hub
	Catalog    *msgcat.Catalog
	Store      *store.Store
	Results    *results.Repository
	Dispatcher *notify.Dispatcher

	persister *persister
	agents    [2]agent.Agent
	logger    *zap.Logger
}

func New(ctx context.Context, cfg *config.AppConfig, opts Options, logger *zap.Logger) (deps *Deps, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{logger: logger}
	defer func() {
		if err != nil {
			_ = d.Close()
		}
	}()

	if d.Catalog, err = msgcat.New(cfg.MessagesDir); err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}

	if strings.TrimSpace(cfg.RedisURL) != "" {
		if d.Store, err = store.New(cfg.RedisURL, cfg.SessionTTL, logger); err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		if d.Results, err = results.NewRepository(cfg.DatabaseURL); err != nil {
			return nil, fmt.Errorf("init results: %w", err)
		}
		if err = d.Results.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
	}
	if strings.TrimSpace(cfg.WebhookURL) != "" {
		hook, herr := notify.NewWebhook(cfg.WebhookURL, notify.WithTimeout(cfg.WebhookTimeout), notify.WithRetries(cfg.WebhookRetries))
		if herr != nil {
			return nil, herr
		}
		d.Dispatcher = notify.NewDispatcher(hook, 0, logger)
	}

	for _, side := range []struct {
		color board.Color
		cfg   config.AgentConfig
	}{{board.White, cfg.White}, {board.Black, cfg.Black}} {
		a, aerr := BuildAgent(side.color, side.cfg, opts.OnHumanReady, logger)
		if aerr != nil {
			return nil, fmt.Errorf("%s agent: %w", side.color, aerr)
		}
		d.agents[side.color] = a
	}

	policy, err := cfg.TurnPolicy()
	if err != nil {
		return nil, err
	}

	r := rules.New()
	startFEN := cfg.StartFEN
	var resume *turn.Snapshot
	if opts.ResumeID != "" {
		if d.Store == nil {
			return nil, errors.New("resume requires redis_url")
		}
		snap, lerr := d.Store.Load(ctx, opts.ResumeID)
		if lerr != nil {
			return nil, fmt.Errorf("load session %s: %w", opts.ResumeID, lerr)
		}
		resume = &snap
		startFEN = snap.StartFEN
	}
	start := r.Start()
	if strings.TrimSpace(startFEN) != "" {
		if start, err = r.Parse(startFEN); err != nil {
			return nil, err
		}
	}

	if !opts.Headless {
		d.Hub = web.NewHub(logger)
	}
	d.persister = newPersister(d.Store, d.Results, logger)

	sinks := []turn.Sink{d.persister.Enqueue}
	if d.Hub != nil {
		sinks = append(sinks, d.Hub.Sink())
	}
	if d.Dispatcher != nil {
		sinks = append(sinks, d.Dispatcher.Sink())
	}
	if opts.Sink != nil {
		sinks = append(sinks, opts.Sink)
	}

	sessOpts := []turn.Option{
		turn.WithPolicy(policy),
		turn.WithGeometry(cfg.Geometry),
		turn.WithSink(turn.Tee(sinks...)),
		turn.WithLogger(logger),
	}
	if resume != nil {
		sessOpts = append(sessOpts, turn.WithID(resume.ID))
	}
	d.Session, err = turn.NewSession(r, start, d.agents[board.White], d.agents[board.Black], sessOpts...)
	if err != nil {
		return nil, err
	}
	if resume != nil {
		if err = restore(d.Session, *resume); err != nil {
			return nil, err
		}
		logger.Info("session_resumed", zap.String("session_id", resume.ID), zap.Int("ply", len(resume.Moves)))
	}
	d.Loop = turn.NewLoop(d.Session, logger)
	d.persister.loop = d.Loop
	return d, nil
}

// BuildAgent creates the agent configured for one color.
func BuildAgent(c board.Color, ac config.AgentConfig, onReady func(agent.Request), logger *zap.Logger) (agent.Agent, error) {
	kind, err := agent.ParseKind(ac.Kind)
	if err != nil {
		return nil, err
	}
	var a agent.Agent
	switch kind {
	case agent.KindHuman:
		var hopts []agent.HumanOption
		if onReady != nil {
			hopts = append(hopts, agent.OnReady(onReady))
		}
		a = agent.NewHuman(c, ac.Name, hopts...)
	case agent.KindProcess:
		a, err = agent.NewProcess(c, ac.Name, ac.ProcessConfig(), budget.NewTracker(ac.Budget()), logger)
	case agent.KindUCI:
		a, err = agent.NewUCI(c, ac.Name, ac.UCIAgentConfig(), budget.NewTracker(ac.Budget()), logger)
	}
	if err != nil {
		return nil, err
	}
	if ac.Disabled {
		a.SetEnabled(false)
	}
	return a, nil
}

// restore replays a stored snapshot and carries over budgets and toggles.
func restore(s *turn.Session, snap turn.Snapshot) error {
	moves, err := snap.ParseMoves()
	if err != nil {
		return fmt.Errorf("stored moves: %w", err)
	}
	if err := s.Replay(moves); err != nil {
		return fmt.Errorf("replay: %w", err)
	}
	for _, info := range snap.Agents {
		if info.Color != board.White && info.Color != board.Black {
			continue
		}
		a := s.Agent(info.Color)
		a.SetEnabled(info.Enabled)
		if b, ok := a.(agent.Budgeted); ok && info.Budgeted {
			b.Budget().Restore(time.Duration(info.RemainingSeconds * float64(time.Second)))
		}
	}
	return nil
}

// Run drives the game until ctx ends. Background workers stop with it.
func (d *Deps) Run(ctx context.Context) error {
	if d.Dispatcher != nil {
		go d.Dispatcher.Run(ctx)
	}
	go d.persister.Run(ctx)
	err := d.Loop.Run(ctx)
	<-d.persister.Done()
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	d.persister.flush(flushCtx, d.Session.Snapshot())
	cancel()
	if d.Dispatcher != nil {
		<-d.Dispatcher.Done()
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (d *Deps) Close() error {
	var errs []error
	for _, a := range d.agents {
		if a != nil {
			errs = append(errs, a.Close())
		}
	}
	if d.Store != nil {
		errs = append(errs, d.Store.Close())
	}
	if d.Results != nil {
		errs = append(errs, d.Results.Close())
	}
	return errors.Join(errs...)
}
