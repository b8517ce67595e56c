package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-arena/internal/agent"
	"github.com/park285/Cheese-arena/internal/arenabuilder"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/rules"
)

func newAskCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <white|black> [fen]",
		Short: "Ask a configured agent for one move",
		Long:  `Invoke the process or UCI agent configured for a color once, outside any game, and print the move it returns. Without a FEN the configured start position is used.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			color, err := board.ParseColor(args[0])
			if err != nil {
				return err
			}
			ac := cfg.White
			if color == board.Black {
				ac = cfg.Black
			}

			fen := cfg.StartFEN
			if len(args) == 2 {
				fen = args[1]
			}
			r := rules.New()
			pos := r.Start()
			if strings.TrimSpace(fen) != "" {
				if pos, err = r.Parse(fen); err != nil {
					return err
				}
			}

			a, err := arenabuilder.BuildAgent(color, ac, nil, root.logger)
			if err != nil {
				return err
			}
			defer a.Close()
			decider, ok := a.(agent.Decider)
			if !ok {
				return fmt.Errorf("%s is played by hand", color)
			}

			mv, err := decider.Decide(cmd.Context(), r.Serialize(pos))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if b, ok := a.(agent.Budgeted); ok {
				used := b.Budget().Total() - b.Budget().Remaining()
				fmt.Fprintf(out, "%s (used %s, %s left)\n", mv, agent.FormatSeconds(used), agent.FormatSeconds(b.Budget().Remaining()))
				return nil
			}
			fmt.Fprintln(out, mv)
			return nil
		},
	}
}
