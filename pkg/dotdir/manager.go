// Package dotdir resolves the .vecstore/ directory that holds config.toml and
// the default on-disk databases.
package dotdir

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// DirName is the name of the vecstore directory.
const DirName = ".vecstore"

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .vecstore/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.vecstore/ dir
//  3. Home ~/.vecstore/ dir, created if missing
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, DirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, DirName)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating vecstore directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// InitLocal creates ./.vecstore/ in the current working directory. The bool
// reports whether the directory was newly created.
func (m *Manager) InitLocal() (string, bool, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("getting current directory: %w", err)
	}
	dir := filepath.Join(cwd, DirName)

	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return dir, false, nil
	case err == nil:
		return "", false, fmt.Errorf("%s exists and is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return "", false, fmt.Errorf("checking %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("creating vecstore directory: %w", err)
	}
	return dir, true, nil
}

// DataPath returns name joined onto the resolved directory. Absolute names
// are returned unchanged.
func (m *Manager) DataPath(overrideDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, DirName))
	return err == nil && info.IsDir()
}
