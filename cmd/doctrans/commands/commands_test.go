package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/doctrans/internal/conventions"
)

func TestRootCommandLoadProfile(t *testing.T) {
	tests := map[string]struct {
		profile           string
		serverFlag        string
		timeoutFlag       time.Duration
		expServerURL      string
		expRequestTimeout time.Duration
		expErr            bool
	}{
		"Without profile the defaults should be used.": {
			expServerURL: conventions.DefaultServerURL,
		},
		"The profile should override the defaults.": {
			profile:           "server: https://translate.example.com\nrequest_timeout: 45s\n",
			expServerURL:      "https://translate.example.com",
			expRequestTimeout: 45 * time.Second,
		},
		"The flags should override the profile.": {
			profile:           "server: https://translate.example.com\nrequest_timeout: 45s\n",
			serverFlag:        "http://localhost:9000",
			timeoutFlag:       time.Second,
			expServerURL:      "http://localhost:9000",
			expRequestTimeout: time.Second,
		},
		"An invalid profile should fail.": {
			profile: "server: ftp://nope\n",
			expErr:  true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dataDir := t.TempDir()
			if test.profile != "" {
				require.NoError(t, os.WriteFile(filepath.Join(dataDir, "config.yaml"), []byte(test.profile), 0o600))
			}

			c := &RootCommand{
				DataDir:        dataDir,
				ServerURL:      test.serverFlag,
				RequestTimeout: test.timeoutFlag,
			}
			err := c.LoadProfile(context.Background())

			if test.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expServerURL, c.ServerURL)
			assert.Equal(t, test.expRequestTimeout, c.RequestTimeout)
			assert.Equal(t, filepath.Join(dataDir, "config.yaml"), c.ConfigPath)
			assert.Equal(t, filepath.Join(dataDir, "history.db"), c.DBPath)
		})
	}
}

func TestFirstValue(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("b", firstString("", "b", "c"))
	assert.Equal("", firstString("", ""))
	assert.Equal(3, firstInt(0, -1, 3, 4))
	assert.Equal(0, firstInt())
	assert.Equal(time.Second, firstDuration(0, time.Second))
}

func TestTranslateCommandUseLiveUI(t *testing.T) {
	tests := map[string]struct {
		ui      string
		expLive bool
	}{
		"Live UI should be forced.": {
			ui:      uiLive,
			expLive: true,
		},
		"Plain UI should be forced.": {
			ui: uiPlain,
		},
		"Auto should not use the live UI when stdout is not a terminal.": {
			ui: uiAuto,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			c := TranslateCommand{ui: test.ui, rootCmd: &RootCommand{Stdout: &bytes.Buffer{}}}
			assert.Equal(t, test.expLive, c.useLiveUI())
		})
	}
}
