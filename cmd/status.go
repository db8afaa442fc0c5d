package cmd

import (
	"dropfiles/internal/model"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "View daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap model.Snapshot
		if err := callDaemon(http.MethodGet, "/status", nil, &snap); err != nil {
			return err
		}

		watched := snap.WatchedFolder
		if watched == "" {
			watched = "-"
		}

		lastSync := "never"
		if snap.State.LastSyncDate != nil {
			lastSync = snap.State.LastSyncDate.Local().Format("2006-01-02 15:04:05")
		}

		fmt.Printf("%-12s %s\n", "STATUS", snap.Presentation.Text)
		fmt.Printf("%-12s %s\n", "FOLDER", watched)
		fmt.Printf("%-12s %s\n", "DESTINATION", snap.Destination)
		fmt.Printf("%-12s %s\n", "LAST SYNC", lastSync)
		fmt.Printf("%-12s %s\n", "NETWORK", onOff(snap.IsConnected, "connected", "offline"))
		fmt.Printf("%-12s %s\n", "STORAGE", onOff(snap.StorageAvailable, "available", "unavailable"))
		fmt.Printf("%-12s %s (every %ds)\n", "AUTO SYNC", onOff(snap.Settings.AutoSync, "on", "off"), snap.Settings.IntervalSeconds)

		if len(snap.RecentChanges) > 0 {
			fmt.Println()
			fmt.Println("RECENT CHANGES")
			for _, c := range snap.RecentChanges {
				fmt.Printf("  %-9s %s\n", c.Kind, c.Path)
			}
		}

		return nil
	},
}

func onOff(v bool, on, off string) string {
	if v {
		return on
	}

	return off
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
