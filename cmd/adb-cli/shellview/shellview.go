// Package shellview is a bubbletea front end for an interactive adb shell
// session, in the style of this lineage's chat/log TUI views.
package shellview

import (
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"adbhost/pkg/adbclient"
	"adbhost/pkg/adbproto"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#000000")).
			Background(lipgloss.Color("#A4E400")).
			Padding(0, 2).
			Bold(true)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#4B5563")).
			Padding(0, 2)

	outputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#9CA3AF"))

	inputStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#2563EB")).
			Padding(0, 1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	copyNoticeStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#10B981")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 2).
			Bold(true)
)

// commandResultMsg carries the output of one InteractiveShell round trip
// back into the bubbletea event loop.
type commandResultMsg struct {
	output string
	err    error
}

type copyNoticeDoneMsg struct{}

// Model is the bubbletea model driving one interactive adb shell session.
type Model struct {
	device *adbclient.Device

	history []string // rendered lines: "$ cmd" and its output, interleaved
	output  viewport.Model
	input   string
	running bool
	lastErr error

	showCopyNotice bool

	width, height int
}

// New builds a Model wrapping an already-connected Device.
func New(device *adbclient.Device) Model {
	vp := viewport.New(80, 10)
	vp.Style = outputStyle
	return Model{device: device, output: vp}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.output.Width = m.widthOr(80) - 2
		m.output.Height = maxInt(m.height-6, 3)
		m.refreshOutput()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			if m.running || strings.TrimSpace(m.input) == "" {
				return m, nil
			}
			cmd := m.input
			m.history = append(m.history, "$ "+cmd)
			m.refreshOutput()
			m.input = ""
			m.running = true
			return m, m.runCommand(cmd)
		case "backspace":
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
			return m, nil
		case "ctrl+y":
			return m, m.copyLastOutput()
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		default:
			if msg.Type == tea.KeyRunes {
				m.input += string(msg.Runes)
			}
			return m, nil
		}

	case commandResultMsg:
		m.running = false
		if msg.err != nil {
			m.lastErr = msg.err
			m.history = append(m.history, errorStyle.Render(msg.err.Error()))
		} else {
			m.lastErr = nil
			m.history = append(m.history, msg.output)
		}
		m.refreshOutput()
		return m, nil

	case copyNoticeDoneMsg:
		m.showCopyNotice = false
		return m, nil
	}

	return m, nil
}

// refreshOutput word-wraps the accumulated history to the viewport's current
// width and scrolls it to the bottom, the way the teacher's own log viewport
// re-wraps on every new line rather than truncating.
func (m *Model) refreshOutput() {
	width := m.output.Width
	if width <= 0 {
		width = 80
	}
	var wrapped []string
	for _, line := range m.history {
		wrapped = append(wrapped, ansi.Wordwrap(line, width, " \t"))
	}
	m.output.SetContent(strings.Join(wrapped, "\n"))
	m.output.GotoBottom()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func (m Model) runCommand(cmd string) tea.Cmd {
	return func() tea.Msg {
		out, err := m.device.InteractiveShell(adbproto.InteractiveShellOptions{
			Cmd:         cmd,
			CleanStdout: true,
		})
		return commandResultMsg{output: out, err: err}
	}
}

func (m Model) copyLastOutput() tea.Cmd {
	if len(m.history) == 0 {
		return nil
	}
	last := m.history[len(m.history)-1]
	return func() tea.Msg {
		clipboard.WriteAll(last)
		return copyNoticeDoneMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder

	status := "idle"
	if m.running {
		status = "running"
	}
	fmt.Fprintln(&b, headerStyle.Render(fmt.Sprintf("adb shell — %s", status)))

	b.WriteString(m.output.View())
	b.WriteString("\n")

	b.WriteString(inputStyle.Width(m.widthOr(80)).Render("$ " + m.input + "█"))
	b.WriteString("\n")

	if m.showCopyNotice {
		b.WriteString(copyNoticeStyle.Render("copied to clipboard"))
		b.WriteString("\n")
	}

	b.WriteString(footerStyle.Render("enter: run  ctrl+y: copy last output  esc: quit  ↑/↓: scroll"))
	return b.String()
}

func (m Model) widthOr(fallback int) int {
	if m.width > 0 {
		return m.width
	}
	return fallback
}

// Run starts the bubbletea program for an interactive shell against device.
func Run(device *adbclient.Device) error {
	p := tea.NewProgram(New(device), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
