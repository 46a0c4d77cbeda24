package config

import (
	"os"
	"path/filepath"
)

// ResolveHome returns the tenantsync root directory.
// Priority: TENANTSYNC_HOME env > ~/.tenantsync/
func ResolveHome() string {
	if home := os.Getenv("TENANTSYNC_HOME"); home != "" {
		return home
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return ".tenantsync"
	}
	return filepath.Join(userHome, ".tenantsync")
}

// ResolveConfigPath finds the config file.
// Priority: --config flag > TENANTSYNC_HOME/config.yaml
func ResolveConfigPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return filepath.Join(ResolveHome(), "config.yaml")
}

// Path returns the process-wide config file path (ResolveConfigPath("")).
func Path() string {
	return ResolveConfigPath("")
}

// DataDir returns the data directory, fixed to home/data.
func DataDir() string {
	return filepath.Join(ResolveHome(), "data")
}

// BlobDir returns where downloaded attachment blobs live, fixed to home/data/blobs.
func BlobDir() string {
	return filepath.Join(DataDir(), "blobs")
}

// CachePath returns the session cache snapshot file, fixed to home/data/cache.json.
func CachePath() string {
	return filepath.Join(DataDir(), "cache.json")
}

// LogsDir returns the log directory, fixed to home/logs.
func LogsDir() string {
	return filepath.Join(ResolveHome(), "logs")
}
