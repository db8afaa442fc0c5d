package autostart

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"text/template"
)

// AutoStarter registers the daemon ("dropfiles watch") to start on login.
type AutoStarter interface {
	Install(execPath string) error
	Uninstall() error
	IsInstalled() (bool, error)
}

func New() AutoStarter {
	switch runtime.GOOS {
	case "darwin":
		return &DarwinAutoStarter{}
	case "windows":
		return &WindowsAutoStarter{}
	case "linux":
		return &LinuxAutoStarter{}
	default:
		return &UnsupportedAutoStarter{}
	}
}

type UnsupportedAutoStarter struct{}

func (u *UnsupportedAutoStarter) Install(_ string) error {
	return fmt.Errorf("autostart is not supported on %s", runtime.GOOS)
}

func (u *UnsupportedAutoStarter) Uninstall() error {
	return nil
}

func (u *UnsupportedAutoStarter) IsInstalled() (bool, error) {
	return false, nil
}

func render(w io.Writer, tmpl, execPath string) error {
	t := template.Must(template.New("autostart").Parse(tmpl))
	return t.Execute(w, map[string]string{"ExecPath": execPath})
}

func writeUnit(path, tmpl, execPath string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create service file: %w", err)
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	if err := render(f, tmpl, execPath); err != nil {
		return fmt.Errorf("failed to write service file: %w", err)
	}

	return nil
}

func runAll(cmds [][]string) error {
	for _, args := range cmds {
		cmd := exec.Command(args[0], args[1:]...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return fmt.Errorf("failed to run %v: %w\n%s", args, err, out)
		}
	}

	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}
