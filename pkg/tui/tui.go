// Package tui provides a terminal player for gowildmidi
package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/james-see/gowildmidi/pkg/playback"
	"github.com/james-see/gowildmidi/pkg/wildmidi"
)

// Patch-bay color scheme
var (
	amber     = lipgloss.Color("#FFB000")
	cream     = lipgloss.Color("#F5E6C8")
	slateGray = lipgloss.Color("#8A8F98")
	darkGray  = lipgloss.Color("#2B2B2B")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(amber).
			Background(darkGray).
			Padding(0, 2).
			MarginBottom(1)

	menuStyle = lipgloss.NewStyle().
			Foreground(slateGray).
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true).
			PaddingLeft(2)

	statusStyle = lipgloss.NewStyle().
			Foreground(cream).
			PaddingTop(1)

	lyricStyle = lipgloss.NewStyle().
			Foreground(cream).
			Italic(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF4040")).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(amber).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666")).
			MarginTop(1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(amber).
			Padding(1, 2)
)

// State represents the current TUI state
type State int

const (
	StateMenu State = iota
	StateFilePicker
	StateWorking
	StatePlaying
	StateResult
)

// Action is what happens to the picked file.
type Action int

const (
	ActionPlay Action = iota
	ActionRender
	ActionExport
	ActionInfo
	ActionExit
)

// MenuItem represents a menu option
type MenuItem struct {
	Title       string
	Description string
	Action      Action
}

var menuItems = []MenuItem{
	{Title: "Play", Description: "Play a MIDI file on the audio device", Action: ActionPlay},
	{Title: "Render → WAV", Description: "Render a MIDI file to a 16-bit stereo WAV next to it", Action: ActionRender},
	{Title: "Export → SMF", Description: "Convert any supported container to a type 0 .mid", Action: ActionExport},
	{Title: "Info", Description: "Show header, length and copyright", Action: ActionInfo},
	{Title: "Exit", Description: "Exit the application", Action: ActionExit},
}

// AllowedTypes are the extensions shown by the file picker.
var AllowedTypes = []string{".mid", ".midi", ".kar", ".rmi", ".hmi", ".hmp", ".mus", ".xmi"}

const (
	tickInterval = 100 * time.Millisecond
	seekStep     = 5 * time.Second
	volumeStep   = 8
)

// Model represents the TUI model
type Model struct {
	session *playback.Session
	sink    playback.Sink

	state        State
	menuIndex    int
	filePicker   filepicker.Model
	spinner      spinner.Model
	progress     progress.Model
	selectedFile string
	action       MenuItem

	stream  *playback.Stream
	cancel  context.CancelFunc
	info    wildmidi.Info
	lyric   string
	volume  int
	playErr error

	result string
	err    error
	width  int
	height int
}

// workDoneMsg signals render, export or info completion
type workDoneMsg struct {
	result string
	err    error
}

// playStartedMsg carries a freshly opened stream.
type playStartedMsg struct {
	stream *playback.Stream
	info   wildmidi.Info
	err    error
}

// playDoneMsg is sent when the sink returns.
type playDoneMsg struct {
	err error
}

type tickMsg time.Time

// Init initializes the TUI model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick)
}

// New creates a new TUI model. sink receives the audio of the Play action.
func New(session *playback.Session, sink playback.Sink) Model {
	// Initialize file picker
	fp := filepicker.New()
	fp.AllowedTypes = AllowedTypes
	fp.CurrentDirectory, _ = os.Getwd()

	// Initialize spinner
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(amber)

	return Model{
		session:    session,
		sink:       sink,
		state:      StateMenu,
		menuIndex:  0,
		filePicker: fp,
		spinner:    s,
		progress:   progress.New(progress.WithGradient("#FFB000", "#FF4040"), progress.WithoutPercentage()),
		volume:     wildmidi.DefaultVolume,
	}
}

// State returns the current screen.
func (m Model) State() State {
	return m.state
}

// Update handles TUI updates
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Handle file picker state first - it needs to receive all messages
	if m.state == StateFilePicker {
		// Check for escape/quit keys first
		if keyMsg, ok := msg.(tea.KeyMsg); ok {
			switch keyMsg.String() {
			case "esc":
				m.state = StateMenu
				return m, nil
			case "q", "ctrl+c":
				return m, tea.Quit
			}
		}

		// Pass all other messages to the file picker
		var cmd tea.Cmd
		m.filePicker, cmd = m.filePicker.Update(msg)

		// Check if file was selected
		if didSelect, path := m.filePicker.DidSelectFile(msg); didSelect {
			return m.selectFile(path)
		}

		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.filePicker.SetHeight(msg.Height - 10)
		m.progress.Width = max(msg.Width-12, 20)
		return m, nil

	case tea.KeyMsg:
		switch m.state {
		case StateMenu:
			return m.updateMenu(msg)
		case StatePlaying:
			return m.updatePlaying(msg)
		case StateResult:
			return m.updateResult(msg)
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case workDoneMsg:
		m.state = StateResult
		m.result = msg.result
		m.err = msg.err
		return m, nil

	case playStartedMsg:
		if msg.err != nil {
			m.state = StateResult
			m.err = msg.err
			return m, nil
		}
		ctx, cancel := context.WithCancel(context.Background())
		m.state = StatePlaying
		m.stream = msg.stream
		m.info = msg.info
		m.cancel = cancel
		m.lyric = ""
		return m, tea.Batch(m.play(ctx, msg.stream), tick())

	case tickMsg:
		if m.state != StatePlaying || m.stream == nil {
			return m, nil
		}
		if info, err := m.stream.Info(); err == nil {
			m.info = info
		}
		if text, ok := m.stream.Lyric(); ok {
			m.lyric = text
		}
		return m, tick()

	case playDoneMsg:
		return m.stopPlayback(msg.err), nil
	}

	return m, nil
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.menuIndex > 0 {
			m.menuIndex--
		}
	case "down", "j":
		if m.menuIndex < len(menuItems)-1 {
			m.menuIndex++
		}
	case "enter":
		if menuItems[m.menuIndex].Action == ActionExit {
			return m, tea.Quit
		}
		m.action = menuItems[m.menuIndex]
		m.state = StateFilePicker
		return m, m.filePicker.Init()
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) updatePlaying(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "s":
		m.cancel()
		return m, nil
	case "q", "ctrl+c":
		m.cancel()
		m.stream.Close()
		return m, tea.Quit
	case "right", "l":
		m.seek(seekStep)
	case "left", "h":
		m.seek(-seekStep)
	case "+", "=", "up":
		m.setVolume(m.volume + volumeStep)
	case "-", "down":
		m.setVolume(m.volume - volumeStep)
	}
	return m, nil
}

func (m *Model) seek(delta time.Duration) {
	target := m.info.Position() + delta
	if target < 0 {
		target = 0
	}
	if target > m.info.Duration() {
		target = m.info.Duration()
	}
	if err := m.stream.Seek(target); err != nil {
		m.playErr = err
	}
}

func (m *Model) setVolume(v int) {
	v = min(max(v, 0), wildmidi.MaxVolume)
	if err := m.session.SetVolume(v); err != nil {
		m.playErr = err
		return
	}
	m.volume = v
}

func (m Model) stopPlayback(err error) Model {
	if m.stream != nil {
		m.stream.Close()
		m.stream = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateResult
	if err != nil && !errors.Is(err, context.Canceled) {
		m.err = err
	} else {
		m.err = m.playErr
		m.result = fmt.Sprintf("Played %s of %s", formatDuration(m.info.Position()), filepath.Base(m.selectedFile))
	}
	m.playErr = nil
	return m
}

func (m Model) updateResult(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter", "esc":
		m.state = StateMenu
		m.err = nil
		m.selectedFile = ""
		m.result = ""
		return m, nil
	case "q", "ctrl+c":
		return m, tea.Quit
	}
	return m, nil
}

func (m Model) selectFile(path string) (tea.Model, tea.Cmd) {
	m.selectedFile = path
	m.state = StateWorking
	if m.action.Action == ActionPlay {
		return m, tea.Batch(m.spinner.Tick, m.openStream())
	}
	return m, tea.Batch(m.spinner.Tick, m.perform())
}

func (m Model) openStream() tea.Cmd {
	session, path := m.session, m.selectedFile
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return playStartedMsg{err: err}
		}
		st, err := session.OpenStream(data)
		if err != nil {
			return playStartedMsg{err: err}
		}
		info, err := st.Info()
		if err != nil {
			st.Close()
			return playStartedMsg{err: err}
		}
		return playStartedMsg{stream: st, info: info}
	}
}

func (m Model) play(ctx context.Context, st *playback.Stream) tea.Cmd {
	sink := m.sink
	return func() tea.Msg {
		return playDoneMsg{err: sink.Play(ctx, st)}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) perform() tea.Cmd {
	session, path, action := m.session, m.selectedFile, m.action.Action
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return workDoneMsg{err: err}
		}
		base := strings.TrimSuffix(path, filepath.Ext(path))

		switch action {
		case ActionRender:
			r, err := session.Render(context.Background(), data, playback.RenderOptions{})
			if err != nil {
				return workDoneMsg{err: err}
			}
			out := base + ".wav"
			f, err := os.Create(out)
			if err != nil {
				return workDoneMsg{err: err}
			}
			if err := playback.WriteWAV(f, session.Config().SampleRate, r.PCM); err != nil {
				_ = f.Close()
				return workDoneMsg{err: err}
			}
			if err := f.Close(); err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{result: fmt.Sprintf("Output: %s (%s, %s)",
				filepath.Base(out), formatDuration(r.Info.Duration()), humanize.Bytes(uint64(len(r.PCM))))}

		case ActionExport:
			out, err := session.Export(data)
			if err != nil {
				return workDoneMsg{err: err}
			}
			name := base + ".type0.mid"
			if err := os.WriteFile(name, out, 0644); err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{result: fmt.Sprintf("Output: %s (%s)", filepath.Base(name), humanize.Bytes(uint64(len(out))))}

		case ActionInfo:
			info, err := session.Inspect(data)
			if err != nil {
				return workDoneMsg{err: err}
			}
			return workDoneMsg{result: describe(info, len(data))}
		}
		return workDoneMsg{err: fmt.Errorf("unknown action %d", action)}
	}
}

func describe(info wildmidi.Info, size int) string {
	var s strings.Builder
	fmt.Fprintf(&s, "Container: %s (%s)\n", info.Header.Container, humanize.Bytes(uint64(size)))
	if info.Header.Format >= 0 {
		fmt.Fprintf(&s, "Format:    %d, %d tracks, %d ticks/quarter\n", info.Header.Format, info.Tracks(), info.Header.Division)
	}
	fmt.Fprintf(&s, "Length:    %s (%s frames at %d Hz)\n", formatDuration(info.Duration()),
		humanize.Comma(int64(info.TotalSamples)), info.SampleRate)
	if info.HasCopyright {
		fmt.Fprintf(&s, "Copyright: %s\n", info.Copyright)
	}
	fmt.Fprintf(&s, "Mixer:     %s", info.Mixer)
	return s.String()
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// View renders the TUI
func (m Model) View() string {
	var s strings.Builder

	// Header
	s.WriteString(asciiLogo())
	s.WriteString("\n")

	switch m.state {
	case StateMenu:
		s.WriteString(m.viewMenu())
	case StateFilePicker:
		s.WriteString(m.viewFilePicker())
	case StateWorking:
		s.WriteString(m.viewWorking())
	case StatePlaying:
		s.WriteString(m.viewPlaying())
	case StateResult:
		s.WriteString(m.viewResult())
	}

	// Footer help
	s.WriteString("\n")
	if m.state == StatePlaying {
		s.WriteString(helpStyle.Render("←/→: seek • +/-: volume • esc: stop • q: quit"))
	} else {
		s.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • q: quit"))
	}

	return s.String()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WILDMIDI "))
	s.WriteString("\n\n")

	for i, item := range menuItems {
		if i == m.menuIndex {
			s.WriteString(selectedStyle.Render(fmt.Sprintf("▸ %s", item.Title)))
			s.WriteString("\n")
			s.WriteString(lipgloss.NewStyle().Foreground(cream).PaddingLeft(4).Render(item.Description))
		} else {
			s.WriteString(menuStyle.Render(fmt.Sprintf("  %s", item.Title)))
		}
		s.WriteString("\n")
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewFilePicker() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(fmt.Sprintf(" %s: SELECT FILE ", strings.ToUpper(m.action.Title))))
	s.WriteString("\n\n")
	s.WriteString(m.filePicker.View())
	s.WriteString("\n")
	s.WriteString(helpStyle.Render("esc: back to menu"))

	return s.String()
}

func (m Model) viewWorking() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" WORKING "))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("%s %s %s...\n", m.spinner.View(), m.action.Title, filepath.Base(m.selectedFile)))

	return boxStyle.Render(s.String())
}

func (m Model) viewPlaying() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render(" NOW PLAYING "))
	s.WriteString("\n\n")
	s.WriteString(filepath.Base(m.selectedFile))
	s.WriteString("\n\n")

	var percent float64
	if m.info.TotalSamples > 0 {
		percent = float64(m.info.CurrentSample) / float64(m.info.TotalSamples)
	}
	s.WriteString(m.progress.ViewAs(percent))
	s.WriteString("\n")
	s.WriteString(statusStyle.Render(fmt.Sprintf("%s / %s   volume %d",
		formatDuration(m.info.Position()), formatDuration(m.info.Duration()), m.volume)))
	if m.lyric != "" {
		s.WriteString("\n\n")
		s.WriteString(lyricStyle.Render(m.lyric))
	}
	if m.playErr != nil {
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(m.playErr.Error()))
	}

	return boxStyle.Render(s.String())
}

func (m Model) viewResult() string {
	var s strings.Builder

	if m.err != nil {
		s.WriteString(titleStyle.Render(" ERROR "))
		s.WriteString("\n\n")
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ %s failed: %s", m.action.Title, m.err.Error())))
	} else {
		s.WriteString(titleStyle.Render(" DONE "))
		s.WriteString("\n\n")
		s.WriteString(successStyle.Render(fmt.Sprintf("✓ %s complete!", m.action.Title)))
		s.WriteString("\n\n")
		s.WriteString(fmt.Sprintf("Input:  %s\n", filepath.Base(m.selectedFile)))
		s.WriteString(m.result)
	}

	s.WriteString("\n\n")
	s.WriteString(helpStyle.Render("Press enter to continue"))

	return boxStyle.Render(s.String())
}

func asciiLogo() string {
	logo := `
 __        __ _  _      _  __  __  _      _  _
 \ \      / /(_)| |  __| ||  \/  |(_)  __| |(_)
  \ \ /\ / / | || | / _' || |\/| || | / _' || |
   \ V  V /  | || || (_| || |  | || || (_| || |
    \_/\_/   |_||_| \__,_||_|  |_||_| \__,_||_|
`
	return lipgloss.NewStyle().Foreground(amber).Render(logo)
}

// Run starts the TUI application
func Run(session *playback.Session, sink playback.Sink) error {
	p := tea.NewProgram(New(session, sink), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
