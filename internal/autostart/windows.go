package autostart

import (
	"fmt"
	"os/exec"
)

const taskName = "DropfilesDaemon"

type WindowsAutoStarter struct{}

func (w *WindowsAutoStarter) Install(execPath string) error {
	return runAll([][]string{{
		"schtasks", "/create",
		"/TN", taskName,
		"/TR", fmt.Sprintf(`"%s" watch`, execPath),
		"/SC", "ONLOGON",
		"/F",
	}})
}

func (w *WindowsAutoStarter) Uninstall() error {
	return runAll([][]string{{"schtasks", "/DELETE", "/TN", taskName, "/F"}})
}

func (w *WindowsAutoStarter) IsInstalled() (bool, error) {
	if err := exec.Command("schtasks", "/Query", "/TN", taskName).Run(); err != nil {
		return false, nil
	}

	return true, nil
}
