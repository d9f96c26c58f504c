package utils

import (
	"bytes"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ModuleRoot returns the closest directory at or above startDir holding a
// go.mod, falling back to the git top level.
func ModuleRoot(startDir string) (string, error) {
	if startDir == "" {
		var err error
		startDir, err = os.Getwd()
		if err != nil {
			return "", err
		}
	}
	startDir = filepath.Clean(startDir)

	for dir := startDir; dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
	}

	if gitPath, err := exec.LookPath("git"); err == nil {
		out, err := exec.Command(gitPath, "-C", startDir, "rev-parse", "--show-toplevel").Output()
		if err == nil {
			if root := strings.TrimSpace(string(bytes.TrimSpace(out))); root != "" {
				return root, nil
			}
		}
	}
	return "", errors.New("no go.mod or git repository above " + startDir)
}

// GenesisPath is the default location of the genesis document.
func GenesisPath() string {
	root, err := ModuleRoot("")
	if err != nil {
		root = "."
	}
	return filepath.Join(root, "cmd", "initializer", "genesis.json")
}
