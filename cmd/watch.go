package cmd

import (
	"context"
	"dropfiles/internal/config"
	"dropfiles/internal/daemon"
	"dropfiles/internal/logger"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Start the daemon and mirror the watched folder",
	RunE:  runDaemon,
}

func runDaemon(cmd *cobra.Command, args []string) error {
	dir, err := config.Dir()
	if err != nil {
		return err
	}

	lock := daemon.NewInstanceLock(filepath.Join(dir, config.AppName+".lock"))
	if err := lock.Lock(); err != nil {
		return err
	}

	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Log.Warn("failed to release lock", zap.Error(err))
		}
	}()

	eng, err := newEngine(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	eng.network.Start(ctx)
	defer eng.network.Stop()

	if err := eng.orch.Start(ctx); err != nil {
		return err
	}

	srv := daemon.NewServer(eng.orch, eng.history, cfg.DaemonPort)
	srv.Start()

	snap := eng.orch.Snapshot()
	logger.Log.Info("dropfiles daemon started",
		zap.String("folder", snap.WatchedFolder),
		zap.String("destination", snap.Destination),
		zap.Int("port", cfg.DaemonPort))

	if snap.WatchedFolder == "" {
		logger.Log.Info("no folder configured, use 'dropfiles folder <path>' to choose one")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Log.Info("shutting down",
			zap.String("signal", sig.String()))
	case <-srv.StopCh():
		logger.Log.Info("stop requested via API")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	err = srv.Stop(shutdownCtx)
	eng.orch.Stop()
	return err
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
