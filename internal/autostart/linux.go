package autostart

import (
	"dropfiles/internal/util"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	serviceName     = "dropfiles.service"
	serviceTemplate = `[Unit]
Description=dropfiles folder mirroring daemon
After=network-online.target

[Service]
ExecStart={{.ExecPath}} watch
Restart=on-failure
RestartSec=5

[Install]
WantedBy=default.target
`
)

type LinuxAutoStarter struct{}

func (l *LinuxAutoStarter) servicePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, ".config", "systemd", "user")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, serviceName), nil
}

func (l *LinuxAutoStarter) Install(execPath string) error {
	path, err := l.servicePath()
	if err != nil {
		return err
	}

	if err := writeUnit(path, serviceTemplate, execPath); err != nil {
		return err
	}

	return runAll([][]string{
		{"systemctl", "--user", "daemon-reload"},
		{"systemctl", "--user", "enable", serviceName},
		{"systemctl", "--user", "start", serviceName},
	})
}

func (l *LinuxAutoStarter) Uninstall() error {
	for _, args := range [][]string{
		{"systemctl", "--user", "stop", serviceName},
		{"systemctl", "--user", "disable", serviceName},
	} {
		_ = exec.Command(args[0], args[1:]...).Run()
	}

	path, err := l.servicePath()
	if err != nil {
		return err
	}

	return util.RemoveIfExists(path)
}

func (l *LinuxAutoStarter) IsInstalled() (bool, error) {
	path, err := l.servicePath()
	if err != nil {
		return false, err
	}

	return fileExists(path)
}
