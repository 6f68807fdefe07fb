package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// TUI message types
type stateMsg struct {
	State  SessionState
	Detail string
}
type modeLineMsg struct{ Text string }
type deviceLineMsg struct{ Text string }
type audioLevelMsg struct{ Level float64 }
type interimMsg struct{ Text string }
type utteranceMsg struct{ Text string }
type responseMsg struct{ Text string }
type noticeMsg struct{ Text string }
type errorMsg struct{ Text string }
type textPromptMsg struct{ Enabled bool }
type tickMsg time.Time

// tuiSink forwards session events into the Bubble Tea program.
type tuiSink struct {
	p *tea.Program
}

func (s *tuiSink) State(st SessionState, detail string) { s.p.Send(stateMsg{st, detail}) }
func (s *tuiSink) ModeLine(text string)                 { s.p.Send(modeLineMsg{text}) }
func (s *tuiSink) DeviceLine(text string)               { s.p.Send(deviceLineMsg{text}) }
func (s *tuiSink) AudioLevel(level float64)             { s.p.Send(audioLevelMsg{level}) }
func (s *tuiSink) Interim(text string)                  { s.p.Send(interimMsg{text}) }
func (s *tuiSink) Utterance(text string)                { s.p.Send(utteranceMsg{text}) }
func (s *tuiSink) Response(text string)                 { s.p.Send(responseMsg{text}) }
func (s *tuiSink) Notice(text string)                   { s.p.Send(noticeMsg{text}) }
func (s *tuiSink) ErrorMsg(text string)                 { s.p.Send(errorMsg{text}) }
func (s *tuiSink) TextPrompt(enabled bool)              { s.p.Send(textPromptMsg{enabled}) }

type tuiModel struct {
	state         SessionState
	detail        string
	frame         int
	listeningFor  time.Duration
	listenStart   time.Time
	audioLevel    float64
	peakLevel     float64
	width, height int

	modeLine   string
	deviceLine string
	interim    string
	lastHeard  string
	lastReply  string
	notice     string
	errText    string
	count      int

	promptOn bool
	input    string

	onToggle func()
	onText   func(string)
}

func NewTUIProgram(onToggle func(), onText func(string)) *tea.Program {
	m := tuiModel{onToggle: onToggle, onText: onText}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.frame++
		if m.state == StateListening && !m.listenStart.IsZero() {
			m.listeningFor = time.Since(m.listenStart)
		}
		return m, tuiTick()

	case stateMsg:
		prev := m.state
		m.state = msg.State
		m.detail = msg.Detail
		if msg.State == StateListening && prev != StateListening {
			m.listenStart = time.Now()
			m.listeningFor = 0
			m.audioLevel = 0
			m.peakLevel = 0
			m.notice = ""
			m.errText = ""
		}
		if msg.State == StateIdle {
			m.audioLevel = 0
		}

	case audioLevelMsg:
		if m.state == StateListening {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
			if msg.Level > m.peakLevel {
				m.peakLevel = msg.Level
			}
		}

	case interimMsg:
		m.interim = msg.Text

	case utteranceMsg:
		m.count++
		m.lastHeard = msg.Text
		m.lastReply = ""
		m.interim = ""

	case responseMsg:
		m.lastReply = msg.Text

	case noticeMsg:
		m.notice = msg.Text

	case errorMsg:
		m.errText = msg.Text

	case modeLineMsg:
		m.modeLine = msg.Text

	case deviceLineMsg:
		m.deviceLine = msg.Text

	case textPromptMsg:
		m.promptOn = msg.Enabled
		if !msg.Enabled {
			m.input = ""
		}
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	if m.promptOn {
		switch msg.Type {
		case tea.KeyEnter:
			text := strings.TrimSpace(m.input)
			m.input = ""
			if text != "" && m.onText != nil {
				m.onText(text)
			}
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input += " "
		case tea.KeyRunes:
			m.input += string(msg.Runes)
		}
		return m, nil
	}

	if key == " " && m.onToggle != nil {
		m.onToggle()
	}
	return m, nil
}

var (
	styleStatusIdle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleStatusListen = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleStatusBusy   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	styleStatusSpeak  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	styleMode         = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	styleDim          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleHelp         = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleHelpBold     = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	styleMeterOn      = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	styleMeterHot     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	styleInterim      = lipgloss.NewStyle().Foreground(lipgloss.Color("243")).Italic(true)
	styleHeard        = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleReply        = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	styleNotice       = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleError        = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	stylePrompt       = lipgloss.NewStyle().Foreground(lipgloss.Color("231"))
)

const statusWidth = 34

func (m tuiModel) statusLine() string {
	switch m.state {
	case StateListening:
		return styleStatusListen.Render(fmt.Sprintf("● LISTENING %.1fs", m.listeningFor.Seconds()))
	case StateProcessing:
		dots := strings.Repeat(".", m.frame%4)
		return styleStatusBusy.Render("◐ PROCESSING" + dots)
	case StateSpeaking:
		return styleStatusSpeak.Render("♪ SPEAKING")
	case StateError:
		return styleError.Render("✗ ERROR")
	default:
		return styleStatusIdle.Render("○ IDLE")
	}
}

func (m tuiModel) meterLine() string {
	const cells = 24
	lit := int(m.audioLevel * cells)
	if lit > cells {
		lit = cells
	}
	var b strings.Builder
	for i := 0; i < cells; i++ {
		switch {
		case i >= lit:
			b.WriteString(styleDim.Render("·"))
		case i >= cells*3/4:
			b.WriteString(styleMeterHot.Render("█"))
		default:
			b.WriteString(styleMeterOn.Render("█"))
		}
	}
	return b.String()
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var left []string
	left = append(left, "")
	left = append(left, m.statusLine())
	if m.state == StateListening && !m.promptOn {
		left = append(left, m.meterLine())
		if m.listeningFor > time.Second && m.peakLevel < 0.02 {
			left = append(left, styleNotice.Render("⚠ no voice detected"))
		}
	}
	left = append(left, "")
	if m.modeLine != "" {
		left = append(left, styleMode.Render("mode: "+m.modeLine))
	}
	if m.deviceLine != "" {
		left = append(left, styleDim.Render(m.deviceLine))
	}
	if m.notice != "" {
		left = append(left, "")
		left = append(left, styleNotice.Render(m.notice))
	}
	if m.errText != "" {
		left = append(left, "")
		left = append(left, styleError.Render(m.errText))
	}
	left = append(left, "")
	left = append(left, styleHelpBold.Render("Ctrl+Shift+V")+styleHelp.Render(" or space to talk"))
	left = append(left, styleHelp.Render("say: add task, add journal, list tasks"))
	left = append(left, styleHelp.Render("voxdo "+version))

	rightWidth := m.width - statusWidth - 1
	if rightWidth < 20 {
		rightWidth = 20
	}
	wrapWidth := rightWidth - 2
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var right strings.Builder
	if m.promptOn {
		right.WriteString(styleMode.Render("Type your command and press enter:") + "\n\n")
		right.WriteString(stylePrompt.Render("> "+m.input) + "\n")
	} else if m.interim != "" {
		right.WriteString(styleDim.Render("Hearing...") + "\n\n")
		for _, line := range wrapText(m.interim, wrapWidth) {
			right.WriteString(styleInterim.Render(line) + "\n")
		}
	} else if m.lastHeard != "" {
		right.WriteString(styleDim.Render(fmt.Sprintf("Exchange #%d", m.count)) + "\n\n")
		for _, line := range wrapText("you:    "+m.lastHeard, wrapWidth) {
			right.WriteString(styleHeard.Render(line) + "\n")
		}
		if m.lastReply != "" {
			right.WriteString("\n")
			for _, line := range wrapText("voxdo:  "+m.lastReply, wrapWidth) {
				right.WriteString(styleReply.Render(line) + "\n")
			}
		}
	} else {
		right.WriteString(styleDim.Render("No commands yet"))
	}

	leftPanel := lipgloss.NewStyle().
		Width(statusWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(left, "\n"))

	rightPanel := lipgloss.NewStyle().
		Width(rightWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(right.String())

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
