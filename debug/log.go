package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
	logger  = newLogger(os.Stderr)
)

func newLogger(w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000",
	})
	return l
}

// Dir returns ~/.config/midipush
func Dir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "midipush")
}

// Enable starts debug logging to ~/.config/midipush/debug.log
func Enable() error {
	return EnableFile(filepath.Join(Dir(), "debug.log"))
}

// EnableFile starts debug logging to the given path
func EnableFile(logPath string) error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	os.MkdirAll(filepath.Dir(logPath), 0755)

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	logger.SetOutput(f)
	logger.SetLevel(logrus.DebugLevel)
	logger.WithField("cat", "debug").Debug("=== Debug logging started ===")

	return nil
}

// Disable stops debug logging
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
	logger.SetOutput(os.Stderr)
	logger.SetLevel(logrus.WarnLevel)
}

// SetOutput redirects warnings (and debug output when enabled). The TUI sends
// them to io.Discard while it owns the terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		logger.SetOutput(w)
	}
}

// Log writes a message to the debug log
func Log(category, format string, args ...any) {
	mu.Lock()
	on := enabled
	mu.Unlock()
	if !on {
		return
	}
	logger.WithField("cat", category).Debugf(format, args...)
}

// Warn is always written, whether or not debug logging is enabled
func Warn(category, format string, args ...any) {
	logger.WithField("cat", category).Warnf(format, args...)
}

// LogEvery logs only every N calls (use for high-frequency events)
var counters = make(map[string]int)

func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count%n == 0 {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}

// Logger exposes the underlying logger for code that wants structured fields
func Logger() *logrus.Logger { return logger }

func init() {
	if os.Getenv("MIDIPUSH_DEBUG") != "" {
		if err := Enable(); err != nil {
			fmt.Fprintf(os.Stderr, "debug log: %v\n", err)
		}
	}
}
