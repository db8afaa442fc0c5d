package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	AppName = "dropfiles"
	dirName = ".dropfiles"
)

const (
	DestinationLocal   = "local"
	DestinationGDrive  = "gdrive"
	DestinationDropbox = "dropbox"
)

type Config struct {
	DaemonPort     int               `mapstructure:"daemon_port"`
	DBPath         string            `mapstructure:"db_path"`
	LogFile        string            `mapstructure:"log_file"`
	WatchLatency   time.Duration     `mapstructure:"watch_latency"`
	MaxConcurrency int               `mapstructure:"max_concurrency"`
	StagedCopy     bool              `mapstructure:"staged_copy"`
	Network        NetworkConfig     `mapstructure:"network"`
	Destination    DestinationConfig `mapstructure:"destination"`
}

type NetworkConfig struct {
	ProbeAddr     string        `mapstructure:"probe_addr"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	ProbeTimeout  time.Duration `mapstructure:"probe_timeout"`
}

// DestinationConfig selects where the watched folder is mirrored to. Root is
// only used by the local destination (a folder kept in sync by a desktop
// cloud client, e.g. iCloud Drive).
type DestinationConfig struct {
	Type string `mapstructure:"type"`
	Root string `mapstructure:"root"`
}

var Default = Config{
	DaemonPort:     9011,
	DBPath:         "dropfiles.db",
	LogFile:        "dropfiles.log",
	WatchLatency:   500 * time.Millisecond,
	MaxConcurrency: 0,
	StagedCopy:     false,
	Network: NetworkConfig{
		ProbeAddr:     "8.8.8.8:53",
		ProbeInterval: 10 * time.Second,
		ProbeTimeout:  3 * time.Second,
	},
	Destination: DestinationConfig{
		Type: DestinationLocal,
	},
}

// Dir returns ~/.dropfiles, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home dir: %w", err)
	}

	dir := filepath.Join(home, dirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config dir: %w", err)
	}

	return dir, nil
}

func Load() (*Config, error) {
	configDir, err := Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)

	v.SetDefault("daemon_port", Default.DaemonPort)
	v.SetDefault("db_path", Default.DBPath)
	v.SetDefault("log_file", Default.LogFile)
	v.SetDefault("watch_latency", Default.WatchLatency)
	v.SetDefault("max_concurrency", Default.MaxConcurrency)
	v.SetDefault("staged_copy", Default.StagedCopy)
	v.SetDefault("network.probe_addr", Default.Network.ProbeAddr)
	v.SetDefault("network.probe_interval", Default.Network.ProbeInterval)
	v.SetDefault("network.probe_timeout", Default.Network.ProbeTimeout)
	v.SetDefault("destination.type", Default.Destination.Type)
	v.SetDefault("destination.root", defaultLocalRoot())

	v.SetEnvPrefix("DROPFILES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := errors.AsType[viper.ConfigFileNotFoundError](err); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.DBPath = inDir(configDir, cfg.DBPath)
	cfg.LogFile = inDir(configDir, cfg.LogFile)

	return &cfg, nil
}

func inDir(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}

	return filepath.Join(dir, path)
}

func defaultLocalRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, "Library", "Mobile Documents", "com~apple~CloudDocs")
}
