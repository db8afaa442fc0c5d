package cmd

import (
	"dropfiles/internal/config"
	"dropfiles/internal/db"
	"dropfiles/internal/logger"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	cfg   *config.Config
	debug bool
)

var rootCmd = &cobra.Command{
	Use:          "dropfiles",
	Short:        "Mirror a local folder into your cloud drive",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "completion" {
			return nil
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		// client commands only talk to the daemon and must not touch its log or db
		clientCmds := map[string]bool{
			"status": true, "stop": true, "history": true,
			"folder": true, "settings": true,
		}
		if clientCmds[cmd.Name()] {
			logger.Init(debug, "")
			return nil
		}

		logger.Init(debug, cfg.LogFile)
		return db.Init(cfg.DBPath)
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func daemonURL(path string) string {
	return fmt.Sprintf("http://localhost:%d%s", cfg.DaemonPort, path)
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug mode")
}
