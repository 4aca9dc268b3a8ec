package main

import (
	"github.com/John-Robertt/subforge/internal/config"
	"github.com/John-Robertt/subforge/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// app is the state shared by subcommands once the root has loaded config.
type app struct {
	cfgFile string
	cfg     *config.Config
	log     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "subforge",
		Short:         "Per-user proxy configuration synthesis service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err != nil {
				return err
			}
			log, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
			if err != nil {
				return err
			}
			zap.ReplaceGlobals(log)
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.serve(cmd.Context())
		},
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "subforge.yaml", "config file path (missing file means defaults)")

	root.AddCommand(
		newServeCmd(a),
		newRenderCmd(a),
		newNamingCmd(a),
		newUserCmd(a),
		newHealthcheckCmd(a),
	)
	return root
}
