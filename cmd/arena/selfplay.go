package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/arenabuilder"
	"github.com/park285/Cheese-arena/internal/turn"
)

var errSelfPlayTimeout = errors.New("self-play timed out")

func newSelfPlayCmd(root *rootOptions) *cobra.Command {
	var (
		white, black string
		budget       float64
		timeout      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "selfplay",
		Short: "Play two automated agents against each other headlessly",
		Long: `Run a game between two process or UCI agents without the web board,
printing each move and the final position. Agents that keep failing forfeit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if white != "" {
				cfg.White.Kind, cfg.White.Path = string(agent.KindProcess), white
			}
			if black != "" {
				cfg.Black.Kind, cfg.Black.Path = string(agent.KindProcess), black
			}
			if cmd.Flags().Changed("budget") {
				cfg.White.BudgetSeconds, cfg.Black.BudgetSeconds = budget, budget
			}
			if cfg.White.Kind == string(agent.KindHuman) || cfg.Black.Kind == string(agent.KindHuman) {
				return errors.New("selfplay needs two automated agents")
			}
			cfg.Policy.OnExhausted = string(turn.ActionForfeit)
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if timeout > 0 {
				var cancelTimeout context.CancelFunc
				ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
				defer cancelTimeout()
			}
			ctx, finish := context.WithCancel(ctx)
			defer finish()

			out := cmd.OutOrStdout()
			var (
				deps   *arenabuilder.Deps
				result *turn.Event
			)
			deps, err = arenabuilder.New(ctx, cfg, arenabuilder.Options{
				Headless: true,
				Sink: func(ev turn.Event) {
					fmt.Fprintln(out, deps.Catalog.Event(ev))
					if ev.Kind == turn.EventGameOver {
						final := ev
						result = &final
						finish()
					}
				},
			}, root.logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			if err := deps.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if result == nil {
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					return errSelfPlayTimeout
				}
				return nil
			}
			line, err := deps.Catalog.Render("game.final", map[string]string{"FEN": result.FEN})
			if err != nil {
				return err
			}
			fmt.Fprintln(out, line)
			return nil
		},
	}
	cmd.Flags().StringVar(&white, "white", "", "executable for white (overrides config)")
	cmd.Flags().StringVar(&black, "black", "", "executable for black (overrides config)")
	cmd.Flags().Float64Var(&budget, "budget", 0, "whole-game budget in seconds for both sides")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the game after this long")
	return cmd
}
