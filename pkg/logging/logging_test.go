package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureFallsBackToInfo(t *testing.T) {
	logger := logrus.New()
	Configure(logger, "loud")
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	Configure(logger, "debug")
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}

func TestAttachFileWritesPlainEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	hook, err := AttachFile(logger, path)
	require.NoError(t, err)

	logger.WithField("finding", "Apache Default Welcome Page").Warn("verifier failed")
	require.NoError(t, hook.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "level=warning")
	assert.Contains(t, string(data), `msg="verifier failed"`)
	assert.NotContains(t, string(data), "\x1b[")
}

type nopCloser struct{ *bytes.Buffer }

func (nopCloser) Close() error { return nil }

func TestFileHookLevels(t *testing.T) {
	hook := newFileHook(nopCloser{&bytes.Buffer{}})
	assert.ElementsMatch(t, logrus.AllLevels, hook.Levels())
}
