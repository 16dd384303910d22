package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustomFormatter_Format(t *testing.T) {
	entry := &logrus.Entry{
		Logger:  logrus.New(),
		Time:    time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Level:   logrus.WarnLevel,
		Message: "section empty",
		Data:    logrus.Fields{"section": "DHCP", "ordinal": 6},
	}

	out, err := (&CustomFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-04 05:06:07] [WARN] [] section empty ordinal=6 section=DHCP\n", string(out))
}

func TestCustomFormatter_TruncatesLevel(t *testing.T) {
	entry := &logrus.Entry{Logger: logrus.New(), Level: logrus.ErrorLevel, Message: "x"}

	out, err := (&CustomFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Contains(t, string(out), "[ERRO]")
}

func TestInitLogger(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	path := filepath.Join(t.TempDir(), "logs", "radar.log")
	require.NoError(t, InitLogger("debug", path))
	assert.Equal(t, logrus.DebugLevel, Log.GetLevel())

	Log.Info("hello")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "hello\n"))
	assert.Contains(t, string(data), "logger_test.go:")
}

func TestInitLogger_BadLevelFallsBackToInfo(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	require.NoError(t, InitLogger("chatty", ""))
	assert.Equal(t, logrus.InfoLevel, Log.GetLevel())
}

func TestInitLogger_FileUnavailableKeepsConsole(t *testing.T) {
	prev := Log
	t.Cleanup(func() { Log = prev })

	// 目录位置被普通文件占用
	blocker := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	err := InitLogger(" Warn ", filepath.Join(blocker, "radar.log"))
	assert.ErrorContains(t, err, "create log directory")
	assert.Equal(t, logrus.WarnLevel, Log.GetLevel())
	assert.Equal(t, os.Stdout, Log.Out)
}
