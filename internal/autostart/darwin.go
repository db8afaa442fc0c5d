package autostart

import (
	"dropfiles/internal/util"
	"os"
	"os/exec"
	"path/filepath"
)

const (
	agentLabel    = "io.github.dropfiles"
	agentTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
	<key>Label</key>
	<string>io.github.dropfiles</string>
	<key>ProgramArguments</key>
	<array>
		<string>{{.ExecPath}}</string>
		<string>watch</string>
	</array>
	<key>RunAtLoad</key>
	<true/>
	<key>KeepAlive</key>
	<dict>
		<key>SuccessfulExit</key>
		<false/>
	</dict>
</dict>
</plist>
`
)

// DarwinAutoStarter installs a per-user LaunchAgent.
type DarwinAutoStarter struct{}

func (d *DarwinAutoStarter) plistPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(home, "Library", "LaunchAgents")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(dir, agentLabel+".plist"), nil
}

func (d *DarwinAutoStarter) Install(execPath string) error {
	path, err := d.plistPath()
	if err != nil {
		return err
	}

	if err := writeUnit(path, agentTemplate, execPath); err != nil {
		return err
	}

	return runAll([][]string{
		{"launchctl", "load", "-w", path},
	})
}

func (d *DarwinAutoStarter) Uninstall() error {
	path, err := d.plistPath()
	if err != nil {
		return err
	}

	_ = exec.Command("launchctl", "unload", "-w", path).Run()
	return util.RemoveIfExists(path)
}

func (d *DarwinAutoStarter) IsInstalled() (bool, error) {
	path, err := d.plistPath()
	if err != nil {
		return false, err
	}

	return fileExists(path)
}
