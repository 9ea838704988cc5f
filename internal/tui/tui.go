// Package tui provides a Bubble Tea terminal user interface for songsync.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/handiism/songsync/internal/app"
	"github.com/handiism/songsync/internal/catalogue"
	"github.com/handiism/songsync/internal/config"
	"github.com/handiism/songsync/internal/pipeline"
)

// DefaultCatalogue is the catalogue path the input starts with.
const DefaultCatalogue = "liked_songs.csv"

const maxLogs = 10

var errCancelled = errors.New("cancelled by user")

// Styles for the TUI
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1DB954")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#95E1A3"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFE66D"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8DADC"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6C757D"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#1DB954")).
			Padding(1, 2)

	trackStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F8B500"))
)

// State represents the current UI state.
type State int

const (
	StateInput State = iota
	StateInitializing
	StateRunning
	StateComplete
	StateError
)

// LogEntry represents a log message in the UI.
type LogEntry struct {
	Message string
	Level   pipeline.ProgressLevel
}

// Options configures the TUI.
type Options struct {
	Settings *config.Settings
	Logger   *log.Logger

	// NewApp builds the App for a run. Defaults to app.New.
	NewApp func(ctx context.Context, opts app.Options) (*app.App, error)
}

// Model is the Bubble Tea model for the TUI.
type Model struct {
	state     State
	textInput textinput.Model
	spinner   spinner.Model
	progress  progress.Model
	opts      Options
	logs      []LogEntry
	current   string
	summary   pipeline.Summary
	err       error

	// Run context
	ctx    context.Context
	cancel context.CancelFunc

	// Run components, set once initialization succeeds
	app    *app.App
	driver *pipeline.Driver
	reader *catalogue.Reader

	// events carries progress events from the run goroutine; done is closed
	// when the run returns.
	events chan pipeline.ProgressEvent
	done   chan struct{}

	position int
	total    int

	// Options
	force   bool
	verbose bool

	width  int
	height int
}

// NewModel creates a new TUI model.
func NewModel(opts Options) Model {
	if opts.Settings == nil {
		opts.Settings = config.DefaultSettings()
	}
	if opts.NewApp == nil {
		opts.NewApp = app.New
	}

	ti := textinput.New()
	ti.Placeholder = DefaultCatalogue
	ti.SetValue(DefaultCatalogue)
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#1DB954"))

	prog := progress.New(progress.WithDefaultGradient())
	prog.Width = 50

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     StateInput,
		textInput: ti,
		spinner:   sp,
		progress:  prog,
		opts:      opts,
		logs:      make([]LogEntry, 0),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Init initializes the model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Message types
type (
	// ProgressMsg carries one pipeline progress event.
	ProgressMsg struct {
		Event pipeline.ProgressEvent
	}

	// InitDoneMsg is sent when the App is built and the catalogue loaded.
	InitDoneMsg struct {
		App    *app.App
		Driver *pipeline.Driver
		Reader *catalogue.Reader
		Events chan pipeline.ProgressEvent
		Done   chan struct{}
		Err    error
	}

	// RunDoneMsg is sent when the run returns.
	RunDoneMsg struct {
		Summary pipeline.Summary
		Err     error
	}

	// TickMsg is for periodic progress updates.
	TickMsg struct{}
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = min(max(msg.Width-20, 20), 80)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.cancel()
			m.closeApp()
			return m, tea.Quit

		case "esc":
			if m.state == StateInput {
				return m, tea.Quit
			}
			if m.state == StateRunning || m.state == StateInitializing {
				// The run stops between tracks and reports through RunDoneMsg.
				m.cancel()
				m.err = errCancelled
			}

		case "enter":
			if m.state == StateInput && strings.TrimSpace(m.textInput.Value()) != "" {
				m.state = StateInitializing
				return m, tea.Batch(m.initializeRun(), m.spinner.Tick)
			}

		case "tab":
			if m.state == StateInput {
				if m.textInput.Focused() {
					m.textInput.Blur()
				} else {
					cmds = append(cmds, m.textInput.Focus())
				}
				return m, tea.Batch(cmds...)
			}

		case "f":
			if m.state == StateInput && !m.textInput.Focused() {
				m.force = !m.force
			}

		case "v":
			if m.state == StateInput && !m.textInput.Focused() {
				m.verbose = !m.verbose
			}

		case "q":
			if m.state == StateComplete || m.state == StateError {
				m.closeApp()
				return m, tea.Quit
			}

		case "r":
			if m.state == StateComplete || m.state == StateError {
				m.closeApp()
				m.state = StateInput
				m.logs = nil
				m.current = ""
				m.summary = pipeline.Summary{}
				m.err = nil
				m.position, m.total = 0, 0
				m.driver, m.reader = nil, nil
				m.events, m.done = nil, nil
				m.ctx, m.cancel = context.WithCancel(context.Background())
				cmds = append(cmds, m.textInput.Focus(), m.progress.SetPercent(0))
				return m, tea.Batch(cmds...)
			}
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case ProgressMsg:
		cmds = append(cmds, listen(m.events, m.done))
		if msg.Event.Position > 0 && msg.Event.Level == pipeline.LevelInfo {
			m.current = msg.Event.Message
		}
		// Filter verbose messages if not in verbose mode
		if msg.Event.Level == pipeline.LevelVerbose && !m.verbose {
			return m, tea.Batch(cmds...)
		}
		m.logs = append(m.logs, LogEntry{
			Message: msg.Event.Message,
			Level:   msg.Event.Level,
		})
		if len(m.logs) > maxLogs {
			m.logs = m.logs[len(m.logs)-maxLogs:]
		}

	case InitDoneMsg:
		if msg.Err != nil {
			m.state = StateError
			m.err = msg.Err
			if m.ctx.Err() != nil {
				m.err = errCancelled
			}
			break
		}
		m.app = msg.App
		m.driver = msg.Driver
		m.reader = msg.Reader
		m.events = msg.Events
		m.done = msg.Done
		m.total = msg.Reader.Len()
		m.state = StateRunning
		cmds = append(cmds, m.startRun(), listen(m.events, m.done), m.tickProgress())

	case RunDoneMsg:
		m.summary = msg.Summary
		switch {
		case msg.Err != nil:
			m.state = StateError
			m.err = msg.Err
		case msg.Summary.Interrupted:
			m.state = StateError
			m.err = errCancelled
		default:
			m.state = StateComplete
			cmds = append(cmds, m.progress.SetPercent(1))
		}

	case TickMsg:
		if m.driver != nil && m.state == StateRunning {
			m.position, m.total = m.driver.Progress()
			cmds = append(cmds, m.progress.SetPercent(m.percent()), m.tickProgress())
		}

	case progress.FrameMsg:
		progressModel, cmd := m.progress.Update(msg)
		m.progress = progressModel.(progress.Model)
		cmds = append(cmds, cmd)
	}

	// Update text input
	if m.state == StateInput && m.textInput.Focused() {
		var cmd tea.Cmd
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// State returns the current UI state.
func (m Model) State() State {
	return m.state
}

func (m Model) percent() float64 {
	if m.total <= 0 {
		return 0
	}
	// position is the track in flight, so completed tracks are one fewer.
	done := m.position - 1
	if m.state != StateRunning {
		done = m.position
	}
	return float64(max(done, 0)) / float64(m.total)
}

func (m *Model) closeApp() {
	if m.app == nil {
		return
	}
	if err := m.app.Close(); err != nil && m.opts.Logger != nil {
		m.opts.Logger.Warn("failed to close", "err", err)
	}
	m.app = nil
}

// tickProgress returns a command to tick progress updates.
func (m Model) tickProgress() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(_ time.Time) tea.Msg {
		return TickMsg{}
	})
}

// listen waits for the next progress event. It returns nil once the run
// has finished and every event has been delivered.
func listen(events <-chan pipeline.ProgressEvent, done <-chan struct{}) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case ev := <-events:
			return ProgressMsg{Event: ev}
		case <-done:
			select {
			case ev := <-events:
				return ProgressMsg{Event: ev}
			default:
				return nil
			}
		}
	}
}

// View renders the UI.
func (m Model) View() string {
	var b strings.Builder

	// Header
	b.WriteString(titleStyle.Render("♫ songsync"))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("Acquire and tag your liked songs"))
	b.WriteString("\n\n")

	switch m.state {
	case StateInput:
		b.WriteString(m.viewInput())
	case StateInitializing:
		b.WriteString(m.viewInitializing())
	case StateRunning:
		b.WriteString(m.viewRunning())
	case StateComplete:
		b.WriteString(m.viewComplete())
	case StateError:
		b.WriteString(m.viewError())
	}

	// Footer
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(m.getHelpText()))

	return b.String()
}

func checkbox(on bool) string {
	if on {
		return "[×]"
	}
	return "[ ]"
}

func (m Model) viewInput() string {
	var b strings.Builder
	s := m.opts.Settings

	b.WriteString(subtitleStyle.Render("Catalogue file:"))
	b.WriteString("\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n\n")

	b.WriteString(infoStyle.Render("Options:"))
	if m.textInput.Focused() {
		b.WriteString(dimStyle.Render(" (tab to edit)"))
	}
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("  %s Request refresh of existing files (f)\n", checkbox(m.force)))
	b.WriteString(fmt.Sprintf("  %s Verbose output (v)\n", checkbox(m.verbose)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Output path: %s", s.OutputDir)))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("Genre provider: %s | Lyrics: %t | Cooldown: %g-%gs",
		s.Genre.Provider, s.Lyrics.Enabled, s.Throttle.CooldownMin, s.Throttle.CooldownMax)))
	b.WriteString("\n")

	return b.String()
}

func (m Model) viewInitializing() string {
	var b strings.Builder

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(subtitleStyle.Render("Loading catalogue..."))
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewRunning() string {
	var b strings.Builder

	if m.current != "" {
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(trackStyle.Render(m.current))
		b.WriteString("\n\n")
	}

	b.WriteString(m.progress.View())
	b.WriteString("\n")

	b.WriteString(infoStyle.Render(fmt.Sprintf("Track: %d/%d", m.position, m.total)))
	if m.err != nil {
		b.WriteString(warningStyle.Render("  stopping after the current track..."))
	}
	b.WriteString("\n\n")

	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewComplete() string {
	var b strings.Builder

	s := m.summary
	text := fmt.Sprintf(
		"✨ Run Complete!\n\n"+
			"Processed: %d\n"+
			"Tagged: %d\n"+
			"Acquired: %d\n"+
			"Skipped: %d\n"+
			"Failed: %d\n"+
			"Elapsed: %s",
		s.Processed, s.Tagged, s.Acquired, s.Skipped, s.Failed,
		s.Elapsed.Round(time.Second),
	)
	if s.PlaylistPath != "" {
		text += "\nPlaylist: " + s.PlaylistPath
	}
	if s.RunID != "" {
		text += "\nRun: " + s.RunID
	}
	b.WriteString(boxStyle.Render(text))
	b.WriteString("\n\n")
	b.WriteString(m.renderLogs())

	return b.String()
}

func (m Model) viewError() string {
	var b strings.Builder

	b.WriteString(errorStyle.Render("❌ Error occurred:"))
	b.WriteString("\n\n")
	if m.err != nil {
		b.WriteString(fmt.Sprintf("  %s", m.err.Error()))
	}
	if m.summary.Processed > 0 {
		b.WriteString("\n\n")
		b.WriteString(infoStyle.Render(fmt.Sprintf("  %d of %d tracks processed before stopping", m.summary.Processed, m.total)))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderLogs() string {
	var b strings.Builder

	for _, entry := range m.logs {
		var style lipgloss.Style
		prefix := "•"
		switch entry.Level {
		case pipeline.LevelError:
			style = errorStyle
			prefix = "✗"
		case pipeline.LevelWarning:
			style = warningStyle
			prefix = "!"
		case pipeline.LevelSuccess:
			style = successStyle
			prefix = "✓"
		case pipeline.LevelInfo:
			style = infoStyle
			prefix = "›"
		default:
			style = dimStyle
		}
		b.WriteString(style.Render(prefix + " " + entry.Message))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) getHelpText() string {
	switch m.state {
	case StateInput:
		return "enter: start • tab: options • f: force • v: verbose • esc: quit"
	case StateInitializing, StateRunning:
		return "esc: stop after current track • ctrl+c: quit"
	case StateComplete, StateError:
		return "r: new run • q: quit"
	}
	return ""
}

// initializeRun builds the App and loads the catalogue.
func (m Model) initializeRun() tea.Cmd {
	ctx := m.ctx
	opts := m.opts
	path := strings.TrimSpace(m.textInput.Value())
	force := m.force

	return func() tea.Msg {
		a, err := opts.NewApp(ctx, app.Options{Settings: opts.Settings, Logger: opts.Logger})
		if err != nil {
			return InitDoneMsg{Err: err}
		}

		reader, err := catalogue.Open(path)
		if err != nil {
			a.Close()
			return InitDoneMsg{Err: &pipeline.SetupError{Op: "open catalogue", Err: err}}
		}

		events := make(chan pipeline.ProgressEvent, 64)
		done := make(chan struct{})
		driver := a.Driver(app.RunOptions{
			Catalogue: path,
			Force:     force,
			OnProgress: func(ev pipeline.ProgressEvent) {
				select {
				case events <- ev:
				case <-ctx.Done():
				}
			},
		})

		return InitDoneMsg{App: a, Driver: driver, Reader: reader, Events: events, Done: done}
	}
}

// startRun processes the catalogue in the background.
func (m Model) startRun() tea.Cmd {
	ctx, driver, reader, done := m.ctx, m.driver, m.reader, m.done
	return func() tea.Msg {
		defer close(done)
		summary, err := driver.Run(ctx, reader)
		return RunDoneMsg{Summary: summary, Err: err}
	}
}

// Run starts the TUI application.
func Run(opts Options) error {
	p := tea.NewProgram(NewModel(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
