package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"obsaudio/player"
	"obsaudio/recorder"
	"obsaudio/session"
)

// TUI message types
type SessionMsg struct{ State session.State }
type RecorderMsg struct{ State recorder.State }
type PlayerMsg struct{ State player.State }
type ErrorMsg struct{ Err error }
type tickMsg time.Time

const (
	meterWidth = 30
	// silentPeak is the peak level, in dBFS, under which a take counts as
	// silent.
	silentPeak = -50
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	playStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	meterStyles = []lipgloss.Style{
		lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
)

type tuiModel struct {
	app     *app
	ctx     context.Context
	session session.State
	rec     recorder.State
	play    player.State
	err     string
	started time.Time
	now     time.Time
	loudest float32 // highest peak of the current take

	width, height int
}

func runTUI(ctx context.Context, a *app) error {
	m := tuiModel{app: a, ctx: ctx, session: a.session.State(), rec: a.rec.State(), play: a.play.State()}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))

	cancels := []func(){
		forward(a.session.Changes, func(st session.State) tea.Msg { return SessionMsg{st} }, p),
		forward(a.rec.Changes, func(st recorder.State) tea.Msg { return RecorderMsg{st} }, p),
		forward(a.play.Changes, func(st player.State) tea.Msg { return PlayerMsg{st} }, p),
	}
	defer func() {
		for _, cancel := range cancels {
			cancel()
		}
	}()

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// forward sends every snapshot of a wrapper's state to the program.
func forward[S any](changes func() (<-chan S, func()), wrap func(S) tea.Msg, p *tea.Program) func() {
	ch, cancel := changes()
	go func() {
		for st := range ch {
			p.Send(wrap(st))
		}
	}()
	return cancel
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

// background runs fn off the UI goroutine and reports its error.
func background(fn func() error) tea.Cmd {
	return func() tea.Msg {
		if err := fn(); err != nil {
			return ErrorMsg{err}
		}
		return nil
	}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		m.err = ""
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.app.toggleRecord()
		case "t":
			if !m.app.rec.RecordFor(5 * time.Second) {
				m.err = "cannot record now"
			}
		case "p":
			m.app.rec.Pause()
		case " ":
			m.app.togglePlay(false)
		case "l":
			m.app.togglePlay(true)
		case "i":
			m.app.cycleInput()
		case "c":
			return m, background(func() error { return m.app.cycleCategory(m.ctx) })
		}

	case tickMsg:
		m.now = time.Time(msg)
		return m, tuiTick()

	case SessionMsg:
		m.session = msg.State

	case RecorderMsg:
		if msg.State.IsRecording && !m.rec.IsRecording {
			m.started = time.Now()
			m.loudest = -160
		}
		if msg.State.IsRecording && msg.State.Metering != nil {
			for _, p := range msg.State.Metering.Peak {
				m.loudest = max(m.loudest, p)
			}
		}
		m.rec = msg.State

	case PlayerMsg:
		m.play = msg.State

	case ErrorMsg:
		m.err = msg.Err.Error()
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var lines []string
	lines = append(lines, titleStyle.Render("obsaudio")+dimStyle.Render(" "+version+" ("+m.app.backend+")"), "")

	// Session
	if m.session.Ready {
		lines = append(lines, labelStyle.Render("session  ")+m.session.Active.String())
	} else {
		lines = append(lines, labelStyle.Render("session  ")+dimStyle.Render("not ready"))
	}
	if m.session.ErrorDescription != "" {
		lines = append(lines, "         "+errStyle.Render(m.session.ErrorDescription))
	}
	lines = append(lines, labelStyle.Render("inputs   ")+portList(m.session.Inputs, m.app.platform.CurrentRoute().Inputs))
	lines = append(lines, labelStyle.Render("outputs  ")+portList(m.session.Outputs, nil))
	if m.session.RouteChanged != "" {
		lines = append(lines, labelStyle.Render("route    ")+dimStyle.Render(m.session.RouteChanged))
	}
	lines = append(lines, "")

	// Recorder
	switch {
	case m.rec.IsRecording:
		elapsed := m.now.Sub(m.started)
		lines = append(lines, recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed.Seconds())))
		if elapsed > time.Second && m.loudest < silentPeak {
			lines = append(lines, warnStyle.Render("  ⚠ no signal on the input"))
		}
	case !m.rec.Ready:
		lines = append(lines, dimStyle.Render("○ recorder not ready"))
	default:
		lines = append(lines, dimStyle.Render("○ STANDBY"))
	}
	if m.rec.Metering != nil {
		for ch := range m.rec.Metering.Channels {
			lines = append(lines, fmt.Sprintf("  ch%d %s %s", ch+1,
				renderMeter(m.rec.Metering.Average[ch], m.rec.Metering.Peak[ch]),
				dimStyle.Render(fmt.Sprintf("%6.1f dB", m.rec.Metering.Peak[ch]))))
		}
	}
	if url := m.app.rec.ResultURL(); url != "" {
		result := warnStyle.Render("no take")
		if m.rec.RecordingResult {
			result = playStyle.Render("saved")
		}
		lines = append(lines, labelStyle.Render("file     ")+url+" "+result)
	}
	lines = append(lines, "")

	// Player
	if m.play.IsPlaying {
		lines = append(lines, playStyle.Render(fmt.Sprintf("▶ PLAY %s / %s",
			m.play.CurrentTime.Truncate(100*time.Millisecond), m.app.play.Duration().Truncate(100*time.Millisecond))))
	} else {
		lines = append(lines, dimStyle.Render("■ stopped"))
	}

	if m.err != "" {
		lines = append(lines, "", errStyle.Render(m.err))
	}

	lines = append(lines, "", helpLine(
		"r", "record/stop", "t", "5s take", "p", "pause", "space", "play", "l", "loop",
		"i", "input", "c", "category", "q", "quit"))

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(lines, "\n"))
}

func portList(ports, current []session.Port) string {
	if len(ports) == 0 {
		return warnStyle.Render("none")
	}
	names := make([]string, len(ports))
	for i, p := range ports {
		name := p.Name
		if p.Type == "Bluetooth" {
			name += " (BT!)"
		}
		if len(current) > 0 && current[0].ID == p.ID {
			name = "[" + name + "]"
		}
		names[i] = name
	}
	return strings.Join(names, ", ")
}

// renderMeter draws the average level as a filled bar and the peak as a
// marker, over a -60..0 dBFS scale.
func renderMeter(avg, peak float32) string {
	pos := func(db float32) int {
		if db <= -60 {
			return 0
		}
		return min(int((db+60)/60*meterWidth), meterWidth)
	}
	fill, mark := pos(avg), pos(peak)

	var b strings.Builder
	for i := range meterWidth {
		style := meterStyles[0]
		switch {
		case i >= meterWidth*9/10:
			style = meterStyles[2]
		case i >= meterWidth*7/10:
			style = meterStyles[1]
		}
		switch {
		case i < fill:
			b.WriteString(style.Render("█"))
		case i == mark-1:
			b.WriteString(style.Render("│"))
		default:
			b.WriteString(dimStyle.Render("·"))
		}
	}
	return b.String()
}

func helpLine(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, keyStyle.Render(pairs[i])+helpStyle.Render(" "+pairs[i+1]))
	}
	return strings.Join(parts, helpStyle.Render("  "))
}
