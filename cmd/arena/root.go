package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/park285/Cheese-arena/internal/config"
	"github.com/park285/Cheese-arena/internal/obslog"
)

type rootOptions struct {
	configPath string
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "arena",
		Short:         "Two-party chess turn coordinator",
		Long:          `arena runs a chess game between two agents: a human clicking on a local board, an external program invoked per turn, or a UCI engine.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := obslog.Init(obslog.OptionsFromEnv())
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.logger != nil {
				_ = opts.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML config file")

	root.AddCommand(newPlayCmd(opts), newSelfPlayCmd(opts), newShowCmd(opts), newAskCmd(opts))
	return root
}

func (o *rootOptions) load() (*config.AppConfig, error) {
	return config.Load(o.configPath)
}
