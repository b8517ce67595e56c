package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/park285/Cheese-arena/internal/arenabuilder"
	"github.com/park285/Cheese-arena/internal/board"
	"github.com/park285/Cheese-arena/internal/results"
	"github.com/park285/Cheese-arena/internal/store"
)

func newShowCmd(root *rootOptions) *cobra.Command {
	var (
		asJSON bool
		recent int
	)
	cmd := &cobra.Command{
		Use:   "show [session-id]",
		Short: "Print a stored session as PGN, or list recent sessions",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.RedisURL) == "" {
				return errors.New("show requires redis_url (or REDIS_URL)")
			}
			st, err := store.New(cfg.RedisURL, cfg.SessionTTL, root.logger)
			if err != nil {
				return err
			}
			defer st.Close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				snaps, err := st.Recent(ctx, recent)
				if err != nil {
					return err
				}
				for _, s := range snaps {
					status := s.Phase
					if s.Result != nil {
						status = string(s.Result.Outcome) + " " + string(s.Result.Reason)
					}
					fmt.Fprintf(out, "%s  %s  %d plies  %s\n", s.ID, s.UpdatedAt.Format("2006-01-02 15:04:05"), len(s.Moves), status)
				}
				return nil
			}

			snap, err := st.Load(ctx, args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			}
			res := board.Result{Outcome: board.NoOutcome}
			if snap.Result != nil {
				res = *snap.Result
			}
			rec := arenabuilder.RecordFromSnapshot(snap, res, snap.UpdatedAt, snap.UpdatedAt)
			fmt.Fprintln(out, results.BuildPGN(rec))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot")
	cmd.Flags().IntVar(&recent, "recent", 10, "number of sessions to list when no id is given")
	return cmd
}
