package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/v0xg/lookaround/internal/config"
	"github.com/v0xg/lookaround/internal/observability"
	"go.uber.org/zap"
)

// app holds what the commands share once the root pre-run has loaded it
type app struct {
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
}

func newApp() *app {
	return &app{}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lookaround",
		Short: "Replay scripted browsing sessions and hand every visited page to handlers",
		Long: `lookaround drives a browser through a script of nested actions (list,
click, sleep, back, handle, cookie dialog), finds elements again after the page
changed under it, and passes the pages it reaches to handlers that print,
archive, screenshot or rate them.

Example:
  lookaround run jobs.yaml --engine chrome --record session.gif`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}
	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file (default is ./lookaround.yaml)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(a.runCmd(), a.validateCmd())
	return root
}

// setup loads the configuration and the global logger. A logger set on the
// app beforehand is kept.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if a.verbose {
		cfg.Logger.Level = "debug"
	}
	a.cfg = cfg

	if a.logger == nil {
		observability.InitializeLogger(cfg.Logger)
		a.logger = observability.GetLogger()
	}
	return nil
}
