package cmd

import (
	"context"
	"dropfiles/internal/folder"
	"dropfiles/internal/model"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [folder]",
	Short: "Run one sync pass now",
	Long: "Asks the running daemon for a pass and waits for it. Without a daemon the " +
		"pass runs in this process, optionally switching the watched folder first.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := syncViaDaemon(args)
		if errors.Is(err, errDaemonNotRunning) {
			snap, err = syncOnce(cmd.Context(), args)
		}

		if err != nil {
			return err
		}

		printSyncResult(snap)
		return nil
	},
}

func syncViaDaemon(args []string) (model.Snapshot, error) {
	var snap model.Snapshot
	if len(args) == 1 {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return snap, err
		}

		if err := callDaemon(http.MethodPost, "/folder", map[string]string{"path": path}, nil); err != nil {
			return snap, err
		}
	}

	err := callDaemon(http.MethodPost, "/sync?wait=true", nil, &snap)
	return snap, err
}

func syncOnce(ctx context.Context, args []string) (model.Snapshot, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return model.Snapshot{}, err
	}

	eng.network.Check(ctx)

	if err := eng.orch.Start(ctx); err != nil {
		return model.Snapshot{}, err
	}
	defer eng.orch.Stop()

	if len(args) == 1 {
		f, err := folder.Resolve(args[0])
		if err != nil {
			return model.Snapshot{}, err
		}

		if err := eng.orch.SetWatchedFolder(f); err != nil {
			return model.Snapshot{}, err
		}
	}

	eng.orch.PerformSync(ctx)
	return eng.orch.Snapshot(), nil
}

func printSyncResult(snap model.Snapshot) {
	if snap.WatchedFolder == "" {
		fmt.Println("no folder configured, use 'dropfiles folder <path>' first")
		return
	}

	if !snap.CanSync && snap.State.Status.Kind != model.StatusFailure {
		switch {
		case !snap.IsConnected:
			fmt.Println("sync skipped:", model.ErrNetworkUnavailable.Error())
		case !snap.StorageAvailable:
			fmt.Println("sync skipped:", model.ErrStorageUnavailable.Error())
		}
		return
	}

	fmt.Printf("%s -> %s\n", snap.WatchedFolder, snap.Destination)
	fmt.Println(snap.Presentation.Text)
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
