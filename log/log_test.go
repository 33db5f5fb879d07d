package log

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func setupLogDir(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	SetDir(tmp)
	t.Cleanup(func() { Close(); SetDir("") })
	return tmp
}

func TestResolveDirFlag(t *testing.T) {
	got, err := ResolveDir("/tmp/mylog")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/mylog" {
		t.Errorf("got %q, want /tmp/mylog", got)
	}
}

func TestResolveDirFlagRelative(t *testing.T) {
	got, err := ResolveDir("logs")
	if err != nil {
		t.Fatal(err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(wd, "logs")
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestResolveDirEnv(t *testing.T) {
	t.Setenv("OBSAUDIO_LOG_PATH", "/tmp/obsaudio-env-log")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/obsaudio-env-log" {
		t.Errorf("got %q, want /tmp/obsaudio-env-log", got)
	}
}

func TestResolveDirDefault(t *testing.T) {
	t.Setenv("OBSAUDIO_LOG_PATH", "")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "obsaudio") {
		t.Errorf("default dir %q does not mention obsaudio", got)
	}
}

func TestResolveDirDefaultXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG layout is linux only")
	}
	t.Setenv("OBSAUDIO_LOG_PATH", "")
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	got, err := ResolveDir("")
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join("/tmp/xdg", appName, "logs"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestInitCreatesFile(t *testing.T) {
	tmp := setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Info("hello")

	data, err := os.ReadFile(filepath.Join(tmp, "diagnostics_log.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") {
		t.Errorf("diagnostics_log.txt missing message, got: %q", data)
	}
}

func TestNoopBeforeInit(t *testing.T) {
	Close()
	// must not panic with no writer configured
	Info("dropped")
	Warnf("dropped %d", 1)
	RouteChange(1, "dropped")
}

func TestSetOutputStructuredEvents(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(Close)

	RouteChange(1, "A new device became available.")
	RecordingFinished("/tmp/recording.wav", true, false)

	out := buf.String()
	for _, want := range []string{"route_change", "code=1", "recording_finished", "exists=false"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestCloseIdempotent(t *testing.T) {
	setupLogDir(t)

	if err := Init(); err != nil {
		t.Fatal(err)
	}
	Close()
	Close() // should not panic
}
