package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/input"
	"github.com/park285/Cheese-arena/internal/turn"
	"github.com/park285/Cheese-arena/internal/uci"
)

const DefaultBudgetSeconds = 300

type AppConfig struct {
	Listen   string `yaml:"listen"`
	StartFEN string `yaml:"start_fen"`

	White AgentConfig `yaml:"white"`
	Black AgentConfig `yaml:"black"`

	Policy   PolicyConfig   `yaml:"policy"`
	Geometry input.Geometry `yaml:"geometry"`

	RedisURL    string        `yaml:"redis_url"`
	SessionTTL  time.Duration `yaml:"session_ttl"`
	DatabaseURL string        `yaml:"database_url"`

	WebhookURL     string        `yaml:"webhook_url"`
	WebhookTimeout time.Duration `yaml:"webhook_timeout"`
	WebhookRetries int           `yaml:"webhook_retries"`

	MessagesDir string `yaml:"messages_dir"`
}

type AgentConfig struct {
	Kind          string        `yaml:"kind"`
	Name          string        `yaml:"name"`
	Path          string        `yaml:"path"`
	Args          []string      `yaml:"args"`
	Env           []string      `yaml:"env"`
	Dir           string        `yaml:"dir"`
	BudgetSeconds float64       `yaml:"budget_seconds"`
	Grace         time.Duration `yaml:"grace"`
	Disabled      bool          `yaml:"disabled"`
	UCI           UCIConfig     `yaml:"uci"`
}

type UCIConfig struct {
	Options     uci.Options   `yaml:"options"`
	MovesToGo   int           `yaml:"moves_to_go"`
	MinMoveTime time.Duration `yaml:"min_move_time"`
	MaxMoveTime time.Duration `yaml:"max_move_time"`
	Depth       int           `yaml:"depth"`
}

type PolicyConfig struct {
	MaxRetries       int    `yaml:"max_retries"`
	OnExhausted      string `yaml:"on_exhausted"`
	ForfeitOnTimeout bool   `yaml:"forfeit_on_timeout"`
}

func Default() *AppConfig {
	p := turn.DefaultPolicy()
	return &AppConfig{
		Listen:     "127.0.0.1:8080",
		White:      AgentConfig{Kind: string(agent.KindHuman), Name: "white", BudgetSeconds: DefaultBudgetSeconds},
		Black:      AgentConfig{Kind: string(agent.KindHuman), Name: "black", BudgetSeconds: DefaultBudgetSeconds},
		Policy:     PolicyConfig{MaxRetries: p.MaxRetries, OnExhausted: string(p.OnExhausted), ForfeitOnTimeout: p.ForfeitOnTimeout},
		Geometry:   input.DefaultGeometry(),
		SessionTTL: 24 * time.Hour,

		WebhookTimeout: 5 * time.Second,
		WebhookRetries: 2,
	}
}

// Load applies defaults, then the YAML file at path (if any), then the
// environment, and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv("ARENA_LISTEN")); v != "" {
		cfg.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_START_FEN")); v != "" {
		cfg.StartFEN = v
	}
	if v := strings.TrimSpace(os.Getenv("REDIS_URL")); v != "" {
		cfg.RedisURL = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_URL")); v != "" {
		cfg.DatabaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_WEBHOOK_URL")); v != "" {
		cfg.WebhookURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_MESSAGES_DIR")); v != "" {
		cfg.MessagesDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_SESSION_TTL")); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.SessionTTL = d
		}
	}

	if v := strings.TrimSpace(os.Getenv("ARENA_MAX_RETRIES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Policy.MaxRetries = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_ON_EXHAUSTED")); v != "" {
		cfg.Policy.OnExhausted = v
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_FORFEIT_ON_TIMEOUT")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Policy.ForfeitOnTimeout = b
		}
	}

	applyAgentEnv("ARENA_WHITE_", &cfg.White)
	applyAgentEnv("ARENA_BLACK_", &cfg.Black)
}

func applyAgentEnv(prefix string, a *AgentConfig) {
	if v := strings.TrimSpace(os.Getenv(prefix + "KIND")); v != "" {
		a.Kind = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "NAME")); v != "" {
		a.Name = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "PATH")); v != "" {
		a.Path = v
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "ARGS")); v != "" {
		a.Args = strings.Fields(v)
	}
	if v := strings.TrimSpace(os.Getenv(prefix + "BUDGET")); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 {
			a.BudgetSeconds = f
		}
	}
}

func (c *AppConfig) Validate() error {
	var errs []error
	for _, side := range []struct {
		name string
		cfg  AgentConfig
	}{{"white", c.White}, {"black", c.Black}} {
		if err := side.cfg.validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s agent: %w", side.name, err))
		}
	}
	if _, err := c.TurnPolicy(); err != nil {
		errs = append(errs, err)
	}
	if c.Policy.MaxRetries < 0 {
		errs = append(errs, errors.New("policy.max_retries must be >= 0"))
	}
	if err := c.Geometry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("geometry: %w", err))
	}
	if c.WebhookRetries < 0 {
		errs = append(errs, errors.New("webhook_retries must be >= 0"))
	}
	return errors.Join(errs...)
}

func (a AgentConfig) validate() error {
	kind, err := agent.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	if a.BudgetSeconds < 0 {
		return errors.New("budget_seconds must be >= 0")
	}
	if kind != agent.KindHuman && strings.TrimSpace(a.Path) == "" {
		return fmt.Errorf("%s agent requires path", kind)
	}
	return nil
}

func (c *AppConfig) TurnPolicy() (turn.Policy, error) {
	action, err := turn.ParseExhaustedAction(c.Policy.OnExhausted)
	if err != nil {
		return turn.Policy{}, err
	}
	return turn.Policy{
		MaxRetries:       c.Policy.MaxRetries,
		OnExhausted:      action,
		ForfeitOnTimeout: c.Policy.ForfeitOnTimeout,
	}, nil
}

// Budget returns the agent's whole-game budget.
func (a AgentConfig) Budget() time.Duration {
	return time.Duration(a.BudgetSeconds * float64(time.Second))
}

func (a AgentConfig) ProcessConfig() agent.ProcessConfig {
	return agent.ProcessConfig{Path: a.Path, Args: a.Args, Env: a.Env, Dir: a.Dir, Grace: a.Grace}
}

func (a AgentConfig) UCIAgentConfig() agent.UCIConfig {
	return agent.UCIConfig{
		Path:        a.Path,
		Args:        a.Args,
		Options:     a.UCI.Options,
		MovesToGo:   a.UCI.MovesToGo,
		MinMoveTime: a.UCI.MinMoveTime,
		MaxMoveTime: a.UCI.MaxMoveTime,
		Depth:       a.UCI.Depth,
	}
}
