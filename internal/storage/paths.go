// Package storage persists engine analyses, finished games and user
// preferences in a badger key-value store.
package storage

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "cactus"

// DataDir returns the per-user data directory, following the XDG base
// directory rules on every platform xdg supports.
func DataDir() string {
	return filepath.Join(xdg.DataHome, appName)
}

// DatabaseDir returns the badger directory under dataDir, creating it. An
// empty dataDir means DataDir.
func DatabaseDir(dataDir string) (string, error) {
	if dataDir == "" {
		dataDir = DataDir()
	}
	dbDir := filepath.Join(dataDir, "db")
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return "", err
	}
	return dbDir, nil
}
