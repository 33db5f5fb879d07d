package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

const (
	appName    = "obsaudio"
	envLogPath = "OBSAUDIO_LOG_PATH"
)

var (
	diagLog  zerolog.Logger
	diagFile *os.File
	logMu    sync.Mutex
	logReady bool
	pid      int
	dir      string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absPath(flagPath)
	}

	// Priority 2: OBSAUDIO_LOG_PATH environment variable
	if envPath := os.Getenv(envLogPath); envPath != "" {
		return absPath(envPath)
	}

	// Priority 3: Default OS-specific location
	return defaultDir()
}

// defaultDir is the per-user log directory: appName under the OS log root,
// plus a logs subdirectory where the root is not already log-specific.
func defaultDir() (string, error) {
	root, sub, err := userLogRoot()
	if err != nil {
		return "", err
	}
	return filepath.Join(root, appName, sub), nil
}

func absPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

// Init opens diagnostics_log.txt in the log directory. Until Init (or
// SetOutput) succeeds every logging call is a no-op.
func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error
	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	setWriter(diagFile)
	return nil
}

// SetOutput routes diagnostics to w instead of the log file.
func SetOutput(w io.Writer) {
	logMu.Lock()
	defer logMu.Unlock()
	pid = os.Getpid()
	setWriter(w)
}

func setWriter(w io.Writer) {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()
	logReady = true
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	logReady = false
}

func ready() bool {
	logMu.Lock()
	defer logMu.Unlock()
	return logReady
}

func Info(msg string) {
	if ready() {
		diagLog.Info().Msg(msg)
	}
}

func Infof(format string, args ...any) {
	if ready() {
		diagLog.Info().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if ready() {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if ready() {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if ready() {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if ready() {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func SessionReady(category, mode string, inputs, outputs int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("category", category).
		Str("mode", mode).
		Int("inputs", inputs).
		Int("outputs", outputs).
		Msg("session_ready")
}

func RouteChange(code int, reason string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("code", code).
		Str("reason", reason).
		Msg("route_change")
}

func RecordingFinished(path string, ok bool, exists bool) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("path", path).
		Bool("ok", ok).
		Bool("exists", exists).
		Msg("recording_finished")
}

func PlaybackFinished(path string, ok bool) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("path", path).
		Bool("ok", ok).
		Msg("playback_finished")
}

func SessionStart(backend, category, settings string) {
	if !ready() {
		return
	}
	diagLog.Info().
		Str("backend", backend).
		Str("category", category).
		Str("settings", settings).
		Msg("session_start")
}

func SessionEnd(recordings int) {
	if !ready() {
		return
	}
	diagLog.Info().
		Int("recordings", recordings).
		Msg("session_end")
}
