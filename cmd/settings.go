package cmd

import (
	"dropfiles/internal/model"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var (
	settingsAutoSync bool
	settingsInterval int
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change sync settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		var settings model.Settings
		if err := callDaemon(http.MethodGet, "/settings", nil, &settings); err != nil {
			return err
		}

		changed := false
		if cmd.Flags().Changed("auto-sync") {
			settings.AutoSync = settingsAutoSync
			changed = true
		}

		if cmd.Flags().Changed("interval") {
			if settingsInterval <= 0 {
				return fmt.Errorf("--interval must be positive")
			}

			settings.IntervalSeconds = settingsInterval
			changed = true
		}

		if changed {
			if err := callDaemon(http.MethodPut, "/settings", settings, &settings); err != nil {
				return err
			}
		}

		fmt.Printf("auto-sync: %t\n", settings.AutoSync)
		fmt.Printf("interval:  %ds\n", settings.IntervalSeconds)
		return nil
	},
}

func init() {
	settingsCmd.Flags().BoolVar(&settingsAutoSync, "auto-sync", true, "sync on changes and on a timer")
	settingsCmd.Flags().IntVar(&settingsInterval, "interval", model.DefaultSyncInterval, "seconds between timed syncs")
	rootCmd.AddCommand(settingsCmd)
}
