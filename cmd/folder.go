package cmd

import (
	"dropfiles/internal/model"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
)

var folderCmd = &cobra.Command{
	Use:   "folder [path]",
	Short: "Show or change the watched folder",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var snap model.Snapshot

		if len(args) == 0 {
			if err := callDaemon(http.MethodGet, "/status", nil, &snap); err != nil {
				return err
			}

			if snap.WatchedFolder == "" {
				fmt.Println("no folder configured")
			} else {
				fmt.Println(snap.WatchedFolder)
			}

			return nil
		}

		path, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}

		if err := callDaemon(http.MethodPost, "/folder", map[string]string{"path": path}, &snap); err != nil {
			return err
		}

		fmt.Printf("watching %s\n", snap.WatchedFolder)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(folderCmd)
}
