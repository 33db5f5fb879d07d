package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/term"

	"obsaudio/audio"
	"obsaudio/beep"
	"obsaudio/dispatch"
	"obsaudio/log"
	"obsaudio/native"
	"obsaudio/player"
	"obsaudio/recorder"
	"obsaudio/session"
	"obsaudio/shutdown"
)

var version = "dev"

// app wires the observable wrappers to one audio context. Every wrapper
// publishes on the same main queue.
type app struct {
	backend  string
	ctx      audio.Context
	queue    *dispatch.Queue
	platform *native.Session
	session  *session.Session
	rec      *recorder.Recorder
	play     *player.Player
	cues     *beep.Player
	settings recorder.Settings

	recordings atomic.Int32
	stopCues   func()
	closeOnce  sync.Once
}

func newApp(ctx audio.Context, backend string, settings recorder.Settings, poll time.Duration) (*app, error) {
	platform, err := native.NewSession(ctx, poll)
	if err != nil {
		return nil, err
	}
	q := dispatch.NewQueue("main")
	a := &app{
		backend:  backend,
		ctx:      ctx,
		queue:    q,
		platform: platform,
		session:  session.New(platform, q),
		rec:      recorder.New(native.NewRecorders(ctx, platform), q, recorder.Config{MeteringPeriod: 100 * time.Millisecond}),
		play:     player.New(native.NewPlayers(ctx, nil, platform), q, player.DefaultPollPeriod),
		cues:     beep.New(ctx, platform.OutputDevice),
		settings: settings,
	}
	a.stopCues = a.watchRecorder()
	return a, nil
}

// watchRecorder sounds a cue when a recording starts and when one finishes
// with a usable file.
func (a *app) watchRecorder() func() {
	changes, cancel := a.rec.Changes()
	go func() {
		prev := a.rec.State()
		for st := range changes {
			if st.IsRecording && !prev.IsRecording {
				a.cues.Play(beep.Start)
			}
			if st.RecordingResult && !prev.RecordingResult {
				a.recordings.Add(1)
				a.cues.Play(beep.End)
			}
			prev = st
		}
	}()
	return cancel
}

func (a *app) Close() {
	a.closeOnce.Do(func() {
		a.stopCues()
		a.play.Close()
		a.rec.Close()
		a.session.Close()
		a.platform.Close()
		a.queue.Close()
		log.SessionEnd(int(a.recordings.Load()))
	})
}

// configure applies the category from path, or the default playAndRecord
// category when path is empty.
func (a *app) configure(ctx context.Context, path string) error {
	if path != "" {
		return a.session.ConfigureFile(ctx, path)
	}
	return a.session.Configure(ctx, session.NewCategory(session.PlayAndRecord))
}

// cycleCategory configures the next category the current devices support.
func (a *app) cycleCategory(ctx context.Context) error {
	names := a.platform.AvailableCategories()
	if len(names) == 0 {
		return errors.New("no category is available")
	}
	i := slices.Index(names, a.session.State().Active.Category)
	next := names[(i+1)%len(names)]
	return a.session.Configure(ctx, session.NewCategory(next))
}

// cycleInput prefers the input after the one currently routed.
func (a *app) cycleInput() {
	inputs := a.session.State().Inputs
	if len(inputs) < 2 {
		return
	}
	current := a.platform.CurrentRoute().Inputs
	i := 0
	if len(current) > 0 {
		i = slices.IndexFunc(inputs, func(p session.Port) bool { return p.ID == current[0].ID })
	}
	a.session.SetPreferredInput(inputs[(i+1)%len(inputs)])
}

// toggleRecord stops a running recording or starts a new take.
func (a *app) toggleRecord() {
	if a.rec.State().IsRecording {
		a.rec.Stop()
		return
	}
	if !a.rec.Record() {
		a.cues.Play(beep.Error)
	}
}

// togglePlay stops playback, or plays the last recording from the start.
func (a *app) togglePlay(loop bool) {
	if a.play.State().IsPlaying {
		a.play.Stop()
		return
	}
	path := a.rec.ResultURL()
	if path == "" || !a.rec.State().RecordingResult {
		a.cues.Play(beep.Error)
		return
	}
	if a.play.URL() != path || !a.play.State().Ready {
		a.play.Prepare(path)
		go func() {
			if waitFor(context.Background(), a.play.Changes, a.play.State, func(st player.State) bool { return st.Ready }, 5*time.Second) {
				a.play.Play(loop)
			}
		}()
		return
	}
	a.play.Play(loop)
}

// waitFor blocks until cond holds for the wrapper's state, ctx is done or
// timeout passes.
func waitFor[S any](ctx context.Context, changes func() (<-chan S, func()), load func() S, cond func(S) bool, timeout time.Duration) bool {
	ch, cancel := changes()
	defer cancel()
	if cond(load()) {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				return false
			}
			if cond(st) {
				return true
			}
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func presetNames() []string {
	names := make([]string, 0, len(recorder.Presets))
	for name := range recorder.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func openContext(fake string) (audio.Context, string, error) {
	if fake != "" {
		ctx, err := audio.NewFakeContext(fake, true)
		if err != nil {
			return nil, "", err
		}
		return ctx, "fake", nil
	}
	ctx, err := audio.NewContext()
	if err != nil {
		return nil, "", err
	}
	return ctx, "native", nil
}

func main() {
	os.Exit(run())
}

func run() int {
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	categoryFlag := flag.String("category", "", "JSON file with the session category (default: playAndRecord)")
	watchFlag := flag.Bool("watch", false, "Reconfigure the session whenever the -category file changes")
	settingsFlag := flag.String("settings", "pcm-stereo", "Recorder settings preset")
	outFlag := flag.String("out", "", "Recording path (default: temp dir)")
	fakeFlag := flag.String("fake", "", "Capture from this WAV file and play into memory instead of real devices")
	setupFlag := flag.Bool("setup", false, "Select the input device interactively")
	durationFlag := flag.Duration("duration", 3*time.Second, "Recording length in headless mode")
	pollFlag := flag.Duration("poll", native.DefaultPollInterval, "Device hot-plug polling interval")
	quietFlag := flag.Bool("quiet", false, "Disable cue tones")
	tuiFlag := flag.Bool("tui", true, "Run with terminal UI")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *versionFlag {
		fmt.Printf("obsaudio %s\n", version)
		return 0
	}

	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		return 1
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	if crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644); err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *tuiFlag && !term.IsTerminal(int(os.Stdout.Fd())) {
		*tuiFlag = false
	}
	if *tuiFlag {
		if err := log.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
		}
	} else {
		log.SetOutput(os.Stderr)
	}
	defer log.Close()

	preset, ok := recorder.Presets[*settingsFlag]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown settings preset %q (use one of %v)\n", *settingsFlag, presetNames())
		return 1
	}
	settings := preset()

	ctx, backend, err := openContext(*fakeFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing audio: %v\n", err)
		return 1
	}
	defer ctx.Close()

	var preferred *audio.DeviceInfo
	if *setupFlag {
		preferred, err = audio.SelectDevice(ctx, audio.Capture)
		if errors.Is(err, audio.ErrCancelled) {
			return 1
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	sigCtx, stop := shutdown.Context(context.Background())
	defer stop()

	a, err := newApp(ctx, backend, settings, *pollFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer a.Close()
	if *quietFlag {
		a.cues.Disable()
	}

	if err := a.configure(sigCtx, *categoryFlag); err != nil {
		log.Warnf("session not configured: %v", err)
		if !*tuiFlag {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}
	log.SessionStart(backend, a.session.State().Active.String(), *settingsFlag)
	if preferred != nil {
		a.session.SetPreferredInput(session.Port{ID: preferred.ID, Name: preferred.Name})
	}
	if *watchFlag {
		if *categoryFlag == "" {
			log.Warn("-watch needs -category")
		} else if err := a.session.WatchFile(sigCtx, *categoryFlag); err != nil {
			log.Warnf("watch %s: %v", *categoryFlag, err)
		}
	}

	if *outFlag != "" {
		a.rec.ResetAt(*outFlag, settings)
	} else {
		a.rec.Reset(settings)
	}

	if *tuiFlag {
		if err := runTUI(sigCtx, a); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}
	return runHeadless(sigCtx, a, *durationFlag)
}

// runHeadless records for d, plays the take back once and exits.
func runHeadless(ctx context.Context, a *app, d time.Duration) int {
	if !waitFor(ctx, a.rec.Changes, a.rec.State, func(st recorder.State) bool { return st.Ready }, 5*time.Second) {
		fmt.Fprintln(os.Stderr, "Error: recorder not ready")
		return 1
	}
	fmt.Printf("recording %s to %s\n", d, a.rec.ResultURL())
	if !a.rec.RecordFor(d) {
		fmt.Fprintln(os.Stderr, "Error: recording refused")
		return 1
	}
	finished := func(st recorder.State) bool { return !st.IsRecording }
	if !waitFor(ctx, a.rec.Changes, a.rec.State, finished, d+5*time.Second) {
		a.rec.Stop()
	}
	// The result lands with the delegate, shortly after the watchdog.
	waitFor(ctx, a.rec.Changes, a.rec.State, func(st recorder.State) bool { return st.RecordingResult }, time.Second)
	st := a.rec.State()
	fmt.Printf("recording finished: result=%t\n", st.RecordingResult)
	if !st.RecordingResult {
		return 1
	}

	a.play.Prepare(a.rec.ResultURL())
	if !waitFor(ctx, a.play.Changes, a.play.State, func(st player.State) bool { return st.Ready }, 5*time.Second) {
		fmt.Fprintln(os.Stderr, "Error: player not ready")
		return 1
	}
	fmt.Printf("playing %s (%s)\n", a.play.URL(), a.play.Duration())
	a.play.Play(false)
	waitFor(ctx, a.play.Changes, a.play.State, func(st player.State) bool { return st.IsPlaying }, time.Second)
	waitFor(ctx, a.play.Changes, a.play.State, func(st player.State) bool { return !st.IsPlaying }, a.play.Duration()+5*time.Second)
	fmt.Println("done")
	return 0
}
