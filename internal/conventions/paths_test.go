package conventions_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/slok/doctrans/internal/conventions"
)

func TestPaths(t *testing.T) {
	dataDir := filepath.Join("/home", "user", ".doctrans")

	assert.Equal(t, "/home/user/.doctrans/config.yaml", conventions.ProfilePath(dataDir))
	assert.Equal(t, "/home/user/.doctrans/history.db", conventions.HistoryDBPath(dataDir))
	assert.Equal(t, "/home/user/.doctrans/downloads", conventions.DownloadsPath(dataDir))
	assert.Equal(t, ".doctrans", filepath.Base(conventions.DataDir()))
}
