package conventions

import (
	"path/filepath"

	"k8s.io/client-go/util/homedir"
)

const (
	// DefaultDataDir is the default doctrans data directory name (relative to home).
	DefaultDataDir = ".doctrans"
	// ProfileFile is the client profile filename.
	ProfileFile = "config.yaml"
	// HistoryDBFile is the task history database filename.
	HistoryDBFile = "history.db"
	// DownloadsDir is the subdirectory translated files are downloaded to by default.
	DownloadsDir = "downloads"

	// DefaultServerURL is the translation server used when none is configured.
	DefaultServerURL = "http://127.0.0.1:5000"
)

// DataDir returns the doctrans data directory in the user home.
func DataDir() string {
	return filepath.Join(homedir.HomeDir(), DefaultDataDir)
}

// ProfilePath returns the path to the client profile inside a data directory.
func ProfilePath(dataDir string) string {
	return filepath.Join(dataDir, ProfileFile)
}

// HistoryDBPath returns the path to the history database inside a data directory.
func HistoryDBPath(dataDir string) string {
	return filepath.Join(dataDir, HistoryDBFile)
}

// DownloadsPath returns the default download directory inside a data directory.
func DownloadsPath(dataDir string) string {
	return filepath.Join(dataDir, DownloadsDir)
}
