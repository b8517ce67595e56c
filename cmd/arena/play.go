package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/arenabuilder"
	"github.com/park285/Cheese-arena/internal/turn"
	"github.com/park285/Cheese-arena/internal/web"
)

func newPlayCmd(root *rootOptions) *cobra.Command {
	var (
		resume string
		listen string
	)
	cmd := &cobra.Command{
		Use:   "play",
		Short: "Run a game on the local web board",
		Long:  `Start (or resume) a game and serve the board on a local address. Human sides move by clicking; automated sides are invoked on their turn.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}
			logger := root.logger

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var deps *arenabuilder.Deps
			deps, err = arenabuilder.New(ctx, cfg, arenabuilder.Options{
				ResumeID: resume,
				OnHumanReady: func(req agent.Request) {
					logger.Info("awaiting_human_move", zap.String("color", req.Side.String()), zap.String("fen", req.FEN))
				},
				Sink: func(ev turn.Event) { fmt.Fprintln(cmd.OutOrStdout(), deps.Catalog.Event(ev)) },
			}, logger)
			if err != nil {
				return err
			}
			defer deps.Close()

			srv := web.NewServer(deps.Loop, deps.Hub, logger)
			fmt.Fprintf(cmd.OutOrStdout(), "board: http://%s/  session: %s\n", cfg.Listen, deps.Session.ID())

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return deps.Run(gctx) })
			g.Go(func() error { return srv.ListenAndServe(gctx, cfg.Listen) })
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&resume, "resume", "", "resume a stored session by id")
	cmd.Flags().StringVar(&listen, "listen", "", "override the board listen address")
	return cmd
}
