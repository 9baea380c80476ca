package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/wemolink/internal/control"
	"github.com/muurk/wemolink/internal/discovery"
	"github.com/muurk/wemolink/internal/insight"
)

// screen identifies the active view.
type screen int

const (
	screenScanning screen = iota
	screenPicking
	screenDevice
)

// Messages for async operations
type scanDoneMsg struct {
	result *discovery.Result
	err    error
}

type stateMsg struct {
	state control.BinaryState
	err   error
}

type telemetryMsg struct {
	summary insight.Summary
	err     error
}

// deviceItem adapts a discovery record to the list component.
type deviceItem struct {
	dev *discovery.Device
}

func (i deviceItem) Title() string { return i.dev.Name }
func (i deviceItem) Description() string {
	return fmt.Sprintf("%s  %s:%d", i.dev.Type, i.dev.Host, i.dev.Port)
}
func (i deviceItem) FilterValue() string { return i.dev.Name }

// deviceKeyMap defines key bindings for the device screen.
type deviceKeyMap struct {
	Toggle  key.Binding
	On      key.Binding
	Off     key.Binding
	Insight key.Binding
	Back    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view.
func (k deviceKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.On, k.Off, k.Insight, k.Back, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k deviceKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Toggle, k.On, k.Off},
		{k.Insight, k.Back, k.Quit},
	}
}

func newDeviceKeyMap() deviceKeyMap {
	return deviceKeyMap{
		Toggle:  key.NewBinding(key.WithKeys("t", "enter"), key.WithHelp("t/enter", "toggle")),
		On:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "on")),
		Off:     key.NewBinding(key.WithKeys("f"), key.WithHelp("f", "off")),
		Insight: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "telemetry")),
		Back:    key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// Model is the wizard's single top-level model: scan, pick, control.
type Model struct {
	screen screen

	scanTimeout time.Duration
	spin        spinner.Model
	devices     list.Model

	selected  *discovery.Device
	state     control.BinaryState
	haveState bool
	telemetry *insight.Summary
	busy      bool
	err       error

	keys deviceKeyMap
	help help.Model

	width  int
	height int
}

// NewModel returns a wizard model that starts with a scan.
func NewModel(scanTimeout time.Duration) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	lst := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	lst.Title = "WeMo devices"
	lst.SetShowStatusBar(false)

	return Model{
		screen:      screenScanning,
		scanTimeout: scanTimeout,
		spin:        sp,
		devices:     lst,
		keys:        newDeviceKeyMap(),
		help:        help.New(),
	}
}

// Init kicks off the spinner and the first scan.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, scanCmd(m.scanTimeout))
}

func scanCmd(timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		scanner := discovery.NewScanner()
		scanner.Timeout = timeout
		result, err := scanner.Scan(context.Background())
		return scanDoneMsg{result: result, err: err}
	}
}

func queryStateCmd(dev *discovery.Device) tea.Cmd {
	return func() tea.Msg {
		state, err := control.NewClient(dev).GetState()
		return stateMsg{state: state, err: err}
	}
}

func setStateCmd(dev *discovery.Device, on bool) tea.Cmd {
	return func() tea.Msg {
		client := control.NewClient(dev)
		if err := client.SetState(on); err != nil {
			return stateMsg{err: err}
		}
		state := control.StateOff
		if on {
			state = control.StateOn
		}
		return stateMsg{state: state}
	}
}

func toggleCmd(dev *discovery.Device) tea.Cmd {
	return func() tea.Msg {
		state, err := control.NewClient(dev).Toggle()
		return stateMsg{state: state, err: err}
	}
}

func telemetryCmd(dev *discovery.Device) tea.Cmd {
	return func() tea.Msg {
		summary, err := control.NewInsightClient(dev).GetPowerSummary()
		return telemetryMsg{summary: summary, err: err}
	}
}

// Update routes messages by screen.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		frameW, frameH := docStyle.GetFrameSize()
		m.devices.SetSize(msg.Width-frameW, msg.Height-frameH-2)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		return m.updateKeys(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		return m, cmd

	case scanDoneMsg:
		m.err = msg.err
		if msg.result != nil {
			items := make([]list.Item, 0, len(msg.result.Devices))
			for _, d := range msg.result.Devices {
				items = append(items, deviceItem{dev: d})
			}
			m.devices.SetItems(items)
		}
		m.screen = screenPicking
		return m, nil

	case stateMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			m.state = msg.state
			m.haveState = true
		}
		return m, nil

	case telemetryMsg:
		m.busy = false
		m.err = msg.err
		if msg.err == nil {
			s := msg.summary
			m.telemetry = &s
		}
		return m, nil
	}

	if m.screen == screenPicking {
		var cmd tea.Cmd
		m.devices, cmd = m.devices.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.screen {
	case screenScanning:
		if msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil

	case screenPicking:
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "r":
			m.screen = screenScanning
			m.err = nil
			return m, tea.Batch(m.spin.Tick, scanCmd(m.scanTimeout))
		case "enter":
			if item, ok := m.devices.SelectedItem().(deviceItem); ok {
				m.selected = item.dev
				m.screen = screenDevice
				m.haveState = false
				m.telemetry = nil
				m.err = nil
				m.busy = true
				return m, queryStateCmd(m.selected)
			}
			return m, nil
		}
		var cmd tea.Cmd
		m.devices, cmd = m.devices.Update(msg)
		return m, cmd

	case screenDevice:
		if m.busy {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Back):
			m.screen = screenPicking
			m.err = nil
			return m, nil
		case key.Matches(msg, m.keys.Toggle):
			m.busy = true
			return m, toggleCmd(m.selected)
		case key.Matches(msg, m.keys.On):
			m.busy = true
			return m, setStateCmd(m.selected, true)
		case key.Matches(msg, m.keys.Off):
			m.busy = true
			return m, setStateCmd(m.selected, false)
		case key.Matches(msg, m.keys.Insight):
			if m.selected.Type == discovery.TypeInsight {
				m.busy = true
				return m, telemetryCmd(m.selected)
			}
			return m, nil
		}
	}
	return m, nil
}

// View renders the active screen.
func (m Model) View() string {
	switch m.screen {
	case screenScanning:
		return docStyle.Render(fmt.Sprintf("%s Scanning for WeMo devices (%.0fs)...\n\n%s",
			m.spin.View(), m.scanTimeout.Seconds(),
			statusStyle.Render("q to quit")))

	case screenPicking:
		var b strings.Builder
		b.WriteString(m.devices.View())
		b.WriteString("\n")
		if m.err != nil {
			b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
		}
		b.WriteString(statusStyle.Render("enter: control  r: rescan  q: quit"))
		return docStyle.Render(b.String())

	case screenDevice:
		return docStyle.Render(m.deviceView())
	}
	return ""
}

func (m Model) deviceView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(m.selected.Name) + "\n")

	b.WriteString(labelStyle.Render("Type") + m.selected.Type.String() + "\n")
	b.WriteString(labelStyle.Render("Address") + fmt.Sprintf("%s:%d", m.selected.Host, m.selected.Port) + "\n")
	b.WriteString(labelStyle.Render("Serial") + m.selected.Serial + "\n")

	b.WriteString(labelStyle.Render("State"))
	switch {
	case m.busy:
		b.WriteString(m.spin.View() + " working...")
	case !m.haveState:
		b.WriteString("unknown")
	case m.state == control.StateOn:
		b.WriteString(onStyle.Render("ON"))
	case m.state == control.StateStandby:
		b.WriteString(standbyStyle.Render("STANDBY"))
	default:
		b.WriteString(offStyle.Render("OFF"))
	}
	b.WriteString("\n")

	if m.telemetry != nil {
		t := m.telemetry
		b.WriteString("\n")
		b.WriteString(labelStyle.Render("Draw") + fmt.Sprintf("%.1f W", t.CurrentWatts) + "\n")
		b.WriteString(labelStyle.Render("Today") + fmt.Sprintf("%.3f kWh (on %s)", t.TodayKWh, t.OnToday) + "\n")
		b.WriteString(labelStyle.Render("Lifetime") + fmt.Sprintf("%.3f kWh (on %s)", t.TotalKWh, t.OnTotal) + "\n")
	}

	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + m.help.View(m.keys))
	return b.String()
}

// Run launches the wizard and blocks until the user quits.
func Run(scanTimeout time.Duration) error {
	_, err := tea.NewProgram(NewModel(scanTimeout), tea.WithAltScreen()).Run()
	return err
}
