package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected log.Level
	}{
		{"debug lowercase", "debug", log.DebugLevel},
		{"debug uppercase", "DEBUG", log.DebugLevel},
		{"verbose mixed case", "Verbose", log.DebugLevel},
		{"info lowercase", "info", log.InfoLevel},
		{"warn lowercase", "warn", log.WarnLevel},
		{"warning uppercase", "WARNING", log.WarnLevel},
		{"error mixed case", "Error", log.ErrorLevel},
		{"quiet lowercase", "quiet", log.FatalLevel},
		{"silent uppercase", "SILENT", log.FatalLevel},
		{"padded", "  warn ", log.WarnLevel},
		{"unknown string", "unknown", log.InfoLevel},
		{"empty string", "", log.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log.SetLevel(log.PanicLevel)
			SetLogLevel(tt.input)
			assert.Equal(t, tt.expected, log.GetLevel())
		})
	}
	log.SetLevel(log.InfoLevel)
}

func TestLogFormatter_Format(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.New(),
		Time:    time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "stale dist tree removed",
		Data:    log.Fields{"path": "dist/DB", "files": 3},
	}

	out, err := (&LogFormatter{}).Format(entry)
	require.NoError(t, err)
	assert.Equal(t, "[2026-03-04 05:06:07] [warn] stale dist tree removed files=3 path=dist/DB\n", string(out))
}

func TestConfigureLogOutput_WritesFile(t *testing.T) {
	dir := t.TempDir()
	logger := log.StandardLogger()
	prevOut := logger.Out
	t.Cleanup(func() {
		CloseLogOutput()
		logger.SetOutput(prevOut)
	})

	require.NoError(t, ConfigureLogOutput(FileOptions{Dir: dir, MaxSizeMB: 1}))
	log.Info("written to file")
	CloseLogOutput()

	data, err := os.ReadFile(filepath.Join(dir, LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestConfigureLogOutput_EmptyDir(t *testing.T) {
	require.NoError(t, ConfigureLogOutput(FileOptions{}))
	assert.Equal(t, os.Stdout, log.StandardLogger().Out)
}

func TestRingBuffer_WrapsAndKeepsOrder(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg, Level: "info"})
	}

	entries := rb.Entries()
	require.Len(t, entries, 3)
	var got []string
	for _, e := range entries {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"c", "d", "e"}, got)

	rb.Clear()
	assert.Equal(t, 0, rb.Len())
	assert.Empty(t, rb.Entries())
}

func TestRingBuffer_HookCapturesProblems(t *testing.T) {
	rb := NewRingBuffer(10)
	logger := log.New()
	logger.SetOutput(&bytes.Buffer{})
	logger.AddHook(rb)

	logger.Info("starting")
	logger.WithError(errors.New("disk full")).Warn("copy icons")
	logger.Error("pyinstaller failed")

	problems := rb.Problems()
	require.Len(t, problems, 2)
	assert.Equal(t, "warn", problems[0].Level)
	assert.Equal(t, "disk full", problems[0].Fields["error"])
	assert.True(t, strings.Contains(problems[1].Message, "pyinstaller"))
}
