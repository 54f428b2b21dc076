// Package logging configures the process-wide logrus logger used by relicpack.
// It owns the log line format, level selection from CLI flags, the optional
// rotating log file, and the in-memory ring buffer that feeds run reports.
package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogFileName is the name of the rotating log file inside the configured log directory.
const LogFileName = "relicpack.log"

var (
	setupOnce  sync.Once
	outputMu   sync.Mutex
	fileWriter *lumberjack.Logger
)

// LogFormatter renders entries as "[time] [level] [file:line] message key=value".
type LogFormatter struct{}

// Format implements logrus.Formatter.
func (f *LogFormatter) Format(entry *log.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05")
	level := entry.Level.String()
	if level == "warning" {
		level = "warn"
	}

	if entry.HasCaller() {
		fmt.Fprintf(b, "[%s] [%s] [%s] %s", timestamp, level, formatSource(entry.Caller.File, entry.Caller.Line), entry.Message)
	} else {
		fmt.Fprintf(b, "[%s] [%s] %s", timestamp, level, entry.Message)
	}

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(b, " %s=%v", k, entry.Data[k])
	}
	b.WriteByte('\n')
	return b.Bytes(), nil
}

// SetupBaseLogger installs the formatter, caller reporting, stdout output,
// and the global ring buffer hook. Safe to call more than once.
func SetupBaseLogger() {
	setupOnce.Do(func() {
		log.SetOutput(os.Stdout)
		log.SetReportCaller(true)
		log.SetFormatter(&LogFormatter{})
		log.AddHook(GlobalBuffer)
	})
}

// SetLogLevel maps a user supplied level name onto logrus levels.
// Unknown names fall back to info.
func SetLogLevel(level string) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug", "verbose":
		log.SetLevel(log.DebugLevel)
	case "warn", "warning":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	case "quiet", "silent":
		log.SetLevel(log.FatalLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// FileOptions controls log file rotation.
type FileOptions struct {
	// Console receives every line; nil means stdout.
	Console    io.Writer
	Dir        string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// ConfigureLogOutput tees log output into a rotating file under opts.Dir.
// An empty directory restores stdout-only output.
func ConfigureLogOutput(opts FileOptions) error {
	outputMu.Lock()
	defer outputMu.Unlock()

	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		log.SetOutput(console)
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	maxSize := opts.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	fileWriter = &lumberjack.Logger{
		Filename:   filepath.Join(dir, LogFileName),
		MaxSize:    maxSize,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   false,
	}
	log.SetOutput(io.MultiWriter(console, fileWriter))
	return nil
}

// CloseLogOutput flushes and closes the rotating log file, if any.
func CloseLogOutput() {
	outputMu.Lock()
	defer outputMu.Unlock()
	if fileWriter != nil {
		_ = fileWriter.Close()
		fileWriter = nil
	}
	log.SetOutput(os.Stdout)
}
