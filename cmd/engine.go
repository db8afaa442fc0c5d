package cmd

import (
	"dropfiles/internal/auth"
	"dropfiles/internal/config"
	"dropfiles/internal/daemon"
	"dropfiles/internal/monitor"
	"dropfiles/internal/repository"
	"dropfiles/internal/syncer"
	"dropfiles/internal/syncer/dropbox"
	"dropfiles/internal/syncer/gdrive"
	"dropfiles/internal/syncer/local"
	"fmt"
)

func newDestination(cfg *config.Config) (syncer.Destination, error) {
	switch cfg.Destination.Type {
	case config.DestinationLocal:
		return local.NewDestination(cfg.Destination.Root, cfg.StagedCopy), nil
	case config.DestinationGDrive:
		return gdrive.NewDestination(auth.GDrive.NewService), nil
	case config.DestinationDropbox:
		return dropbox.NewDestination(auth.Dropbox.NewClient), nil
	default:
		return nil, fmt.Errorf("unsupported destination type: %s", cfg.Destination.Type)
	}
}

type engine struct {
	orch    *daemon.Orchestrator
	network *monitor.NetworkMonitor
	history *repository.HistoryRepository
}

// newEngine wires the destination, both monitors and the orchestrator from
// config. The network monitor is returned unstarted.
func newEngine(cfg *config.Config) (*engine, error) {
	dest, err := newDestination(cfg)
	if err != nil {
		return nil, err
	}

	network := monitor.NewNetworkMonitor(
		monitor.DialProber(cfg.Network.ProbeAddr, cfg.Network.ProbeTimeout),
		cfg.Network.ProbeInterval)
	storage := monitor.NewStorageMonitor(dest, cfg.Network.ProbeTimeout)
	history := repository.NewHistoryRepository()

	orch := daemon.NewOrchestrator(dest, network, storage, repository.NewSettingsRepository(), daemon.Options{
		WatchLatency:   cfg.WatchLatency,
		MaxConcurrency: cfg.MaxConcurrency,
		History:        history,
	})

	return &engine{
		orch:    orch,
		network: network,
		history: history,
	}, nil
}
