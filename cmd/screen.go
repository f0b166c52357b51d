// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Thermoquad/deckmon/pkg/deckbus"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Full screen dashboard of the deck state",
	Long: `Show the state reported on the bus in a terminal dashboard.

The front panel view shows the VU meters, deck time, function, drawer and
poll flags, track titles and texts. The deck controller view shows the deck
status. Both show statistics and a log of recent events.

Keys:
  space  capture on/off
  v      verbose (show repeated polls in the log)
  c      clear the event log
  q      quit

Logs are written to --log-file only; the screen owns the terminal.`,
	RunE: runScreen,
}

func init() {
	rootCmd.AddCommand(screenCmd)
}

const vuWidth = 40

// Key bindings
type screenKeys struct {
	Capture key.Binding
	Verbose key.Binding
	Clear   key.Binding
	Quit    key.Binding
}

func (k screenKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Capture, k.Verbose, k.Clear, k.Quit}
}

func (k screenKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var defaultScreenKeys = screenKeys{
	Capture: key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "capture on/off")),
	Verbose: key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "verbose")),
	Clear:   key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear log")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// Event log entry
type screenLogEntry struct {
	timestamp time.Time
	message   string
	kind      deckbus.EventKind
}

// deckState is the latest value of every displayed bus register
type deckState struct {
	vuLeft, vuRight int
	hasVU           bool
	deckTime        string
	function        string
	system          string
	drawer          string
	tape            string
	poll            string
	trackTitle      string
	texts           map[uint8]string
	deckStatus      string
	deckVersion     string
}

// TUI model
type screenModel struct {
	info          string
	bus           deckbus.Bus
	stats         *deckbus.Statistics
	capture       *deckbus.Capture
	monitor       *deckbus.Monitor
	keys          screenKeys
	help          help.Model
	state         deckState
	eventLog      []screenLogEntry
	maxLogEntries int
	width         int
	height        int
	quitting      bool
	doneErr       error
	done          bool
}

// Messages
type screenTickMsg time.Time
type eventMsg struct {
	event deckbus.Event
}
type sessionDoneMsg struct {
	err error
}

func newScreenModel(info string, bus deckbus.Bus, capture *deckbus.Capture, monitor *deckbus.Monitor) screenModel {
	return screenModel{
		info:          info,
		bus:           bus,
		stats:         monitor.Statistics(),
		capture:       capture,
		monitor:       monitor,
		keys:          defaultScreenKeys,
		help:          help.New(),
		state:         deckState{texts: make(map[uint8]string)},
		eventLog:      make([]screenLogEntry, 0),
		maxLogEntries: 100,
		width:         80,
		height:        24,
	}
}

func (m screenModel) Init() tea.Cmd {
	return screenTickCmd()
}

func screenTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return screenTickMsg(t)
	})
}

func (m screenModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Capture):
			if m.capture.Toggle() {
				m.addLogEntry("Capture enabled", deckbus.EventDecoded)
			} else {
				m.addLogEntry("Capture disabled", deckbus.EventDecoded)
			}
		case key.Matches(msg, m.keys.Verbose):
			verbose := !m.monitor.Verbose()
			m.monitor.SetVerbose(verbose)
			m.addLogEntry(fmt.Sprintf("Verbose %s", onOff(verbose)), deckbus.EventDecoded)
		case key.Matches(msg, m.keys.Clear):
			m.eventLog = m.eventLog[:0]
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width

	case screenTickMsg:
		return m, screenTickCmd()

	case eventMsg:
		m.apply(msg.event)

	case sessionDoneMsg:
		m.done = true
		m.doneErr = msg.err
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Capture stopped: %v", msg.err), deckbus.EventMalformed)
		} else {
			m.addLogEntry("Capture source ended", deckbus.EventDecoded)
		}
	}

	return m, nil
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func (m *screenModel) addLogEntry(message string, kind deckbus.EventKind) {
	m.eventLog = append(m.eventLog, screenLogEntry{
		timestamp: time.Now(),
		message:   message,
		kind:      kind,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

// apply updates the displayed state from an event and logs it
func (m *screenModel) apply(ev deckbus.Event) {
	switch ev.Kind {
	case deckbus.EventDecoded:
		m.applyDecoded(ev)
		if ev.Opcode&deckbus.OpcodeMask == deckbus.FPVUMeter && m.bus == deckbus.BusFrontPanel {
			// Shown on the meters
			return
		}
		m.eventLog = append(m.eventLog, screenLogEntry{
			timestamp: ev.Timestamp,
			message:   fmt.Sprintf("%02X %s: %s", ev.Opcode&deckbus.OpcodeMask, ev.Name, ev.Tag),
			kind:      ev.Kind,
		})
	case deckbus.EventRawDump:
		name := ev.Name
		if name == "" {
			name = "??"
		}
		m.eventLog = append(m.eventLog, screenLogEntry{
			timestamp: ev.Timestamp,
			message:   fmt.Sprintf("%02X %s (%s) %s", ev.Opcode&deckbus.OpcodeMask, name, ev.Reason, deckbus.FormatHex(ev.Raw())),
			kind:      ev.Kind,
		})
	default:
		message := ev.Kind.String()
		switch ev.Kind {
		case deckbus.EventChecksumError:
			message = fmt.Sprintf("CHECKSUM ERROR (%s)", ev.Segment)
		case deckbus.EventParityMismatch:
			message = "PARITY MISMATCH"
		case deckbus.EventMalformed:
			message = fmt.Sprintf("MALFORMED (%s)", ev.Reason)
		}
		m.eventLog = append(m.eventLog, screenLogEntry{
			timestamp: ev.Timestamp,
			message:   message + " " + deckbus.FormatHex(ev.Raw()),
			kind:      ev.Kind,
		})
	}

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}

func (m *screenModel) applyDecoded(ev deckbus.Event) {
	op := ev.Opcode & deckbus.OpcodeMask

	if m.bus == deckbus.BusDeckControl {
		switch op {
		case deckbus.DCStatus:
			m.state.deckStatus = ev.Tag
		case deckbus.DCVersion:
			m.state.deckVersion = ev.Tag
		}
		return
	}

	switch op {
	case deckbus.FPVUMeter:
		left, _ := ev.Field("left")
		right, _ := ev.Field("right")
		if l, ok := left.(int); ok {
			m.state.vuLeft = l
		}
		if r, ok := right.(int); ok {
			m.state.vuRight = r
		}
		m.state.hasVU = true
	case deckbus.FPDeckTime:
		m.state.deckTime = ev.Tag
	case deckbus.FPFunctionState:
		m.state.function = ev.Tag
	case deckbus.FPSystemStatus:
		m.state.system = ev.Tag
	case deckbus.FPDrawerStatus:
		m.state.drawer = ev.Tag
	case deckbus.FPTapeType:
		m.state.tape = ev.Tag
	case deckbus.FPPollStatus:
		m.state.poll = ev.Tag
	case deckbus.FPTrackTitle, deckbus.FPShortTitle:
		m.state.trackTitle = ev.Tag
	case deckbus.FPLongText, deckbus.FPShortText:
		if sel, ok := ev.Field("selector"); ok {
			if b, ok := sel.(byte); ok {
				m.state.texts[b] = ev.Tag
			}
		}
	}
}

func (m screenModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("DECKMON - %s", strings.ToUpper(m.bus.String()))))
	s.WriteString("\n")

	capture := valueStyle.Render("CAPTURE ON")
	if !m.capture.Enabled() {
		capture = errorStyle.Render("CAPTURE OFF")
	}
	mode := "changes only"
	if m.monitor.Verbose() {
		mode = "verbose"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Log: %s | ", m.info, mode)))
	s.WriteString(capture)
	if m.done {
		s.WriteString(warningStyle.Render(" | source ended"))
	}
	s.WriteString("\n\n")

	// Deck state
	deck := strings.Builder{}
	row := func(label, value string) {
		if value == "" {
			value = headerStyle.Render("-")
		} else {
			value = valueStyle.Render(value)
		}
		deck.WriteString(fmt.Sprintf("%s %s\n", labelStyle.Render(fmt.Sprintf("%-9s", label)), value))
	}

	if m.bus == deckbus.BusDeckControl {
		row("Status:", m.state.deckStatus)
		row("Version:", m.state.deckVersion)
	} else {
		if m.state.hasVU {
			deck.WriteString(fmt.Sprintf("%s [%s] %4d dB\n", labelStyle.Render("L"),
				valueStyle.Render(deckbus.FormatVU(m.state.vuLeft, vuWidth)), m.state.vuLeft))
			deck.WriteString(fmt.Sprintf("%s [%s] %4d dB\n", labelStyle.Render("R"),
				valueStyle.Render(deckbus.FormatVU(m.state.vuRight, vuWidth)), m.state.vuRight))
		}
		row("Time:", m.state.deckTime)
		row("Function:", m.state.function)
		row("System:", m.state.system)
		row("Drawer:", m.state.drawer)
		row("Tape:", m.state.tape)
		row("Poll:", m.state.poll)
		row("Title:", m.state.trackTitle)

		selectors := make([]int, 0, len(m.state.texts))
		for sel := range m.state.texts {
			selectors = append(selectors, int(sel))
		}
		sort.Ints(selectors)
		for _, sel := range selectors {
			row("Text:", m.state.texts[uint8(sel)])
		}
	}
	s.WriteString(boxStyle.Render(strings.TrimRight(deck.String(), "\n")))
	s.WriteString("\n")

	// Statistics
	snap := m.stats.Snapshot()
	errors := snap.Errors()
	errText := valueStyle.Render(fmt.Sprintf("%d", errors))
	if errors > 0 {
		errText = errorStyle.Render(fmt.Sprintf("%d", errors))
	}
	s.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s   %s %s\n",
		labelStyle.Render("Transactions:"), valueStyle.Render(fmt.Sprintf("%d", snap.Transactions)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f/s", snap.TransactionRate)),
		labelStyle.Render("Errors:"), errText,
		labelStyle.Render("Raw:"), warningStyle.Render(fmt.Sprintf("%d", snap.RawDumps)),
		labelStyle.Render("Suppressed:"), headerStyle.Render(fmt.Sprintf("%d", snap.Suppressed)),
	))
	if snap.RingOverflows > 0 {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Ring overflows: %d", snap.RingOverflows)))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 22
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
			switch {
			case entry.kind == deckbus.EventRawDump:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, warningStyle.Render("? "+entry.message)))
			case entry.kind == deckbus.EventDecoded:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, entry.message))
			default:
				logContent.WriteString(fmt.Sprintf("%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message)))
			}
		}
	}

	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(strings.TrimRight(logContent.String(), "\n")))
	s.WriteString("\n")
	s.WriteString(m.help.View(m.keys))

	return s.String()
}

func runScreen(cmd *cobra.Command, args []string) error {
	// The screen owns the terminal: only log to a file
	log := logger
	if cfg.LogFile == "" {
		log = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	s, err := openSession(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer s.Close()

	p := tea.NewProgram(newScreenModel(s.info, cfg.bus(), s.capture, s.monitor), tea.WithAltScreen())

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := s.Run(ctx, deckbus.SinkFunc(func(ev deckbus.Event) {
			p.Send(eventMsg{event: ev})
		}))
		p.Send(sessionDoneMsg{err: err})
	}()

	_, err = p.Run()
	cancel()
	<-done
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
