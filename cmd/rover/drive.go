package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/rover/pkg/arbiter"
	"github.com/gwillem/rover/pkg/logging"
	"github.com/gwillem/rover/pkg/motion"
)

type DriveCommand struct {
	Sim    bool   `long:"sim" description:"Simulate the wheels and the sensor board"`
	Listen string `long:"listen" description:"Also serve the remote control API on this address"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	statusHeight = 2 // status row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border

	// resendInterval keeps a held key ahead of the watchdog timeout.
	resendInterval = 50 * time.Millisecond
)

// Sensor colors, in feature order
var sensorColors = [motion.NumFeatures]string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
}

// benchSteps are the distances a simulated sensor cycles through, starting
// at the simulated rig's initial reading.
var benchSteps = []float64{1.0, 0.5, 0.25, 2.0}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

type driveModel struct {
	rig      *rig
	lines    <-chan string
	chart    *streamlinechart.Model
	width    int      // terminal width
	height   int      // terminal height
	logs     []string // last N log messages
	quitting bool

	held  motion.Command // latched manual command, re-sent until released
	bench [motion.NumFeatures]int
	state arbiter.State
}

func (m *driveModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// Messages from the rig
type stateMsg arbiter.State
type logMsg string
type resendMsg time.Time

func waitForState(arb *arbiter.Arbiter) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-arb.States())
	}
}

func waitForLog(lines <-chan string) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-lines)
	}
}

func resend() tea.Cmd {
	return tea.Tick(resendInterval, func(t time.Time) tea.Msg {
		return resendMsg(t)
	})
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *driveModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - statusHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *driveModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

// sensorLabel names sensor i the way the dataset header does.
func sensorLabel(i int) string {
	a := motion.Angles()[i]
	if a > 0 && a < 180 {
		return fmt.Sprintf("+%d°", a)
	}
	return fmt.Sprintf("%d°", a)
}

func initialDriveModel(r *rig, lines <-chan string) driveModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(0, motion.MaxDistance),
	)

	for i := range motion.NumFeatures {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(sensorColors[i]))
		chart.SetDataSetStyles(sensorLabel(i), runes.ThinLineStyle, style)
	}

	return driveModel{
		rig:   r,
		lines: lines,
		chart: &chart,
		held:  motion.Stop,
		state: r.arb.Snapshot(),
	}
}

func (m driveModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.rig.arb),
		waitForLog(m.lines),
		resend(),
	)
}

func (m driveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	arb := m.rig.arb

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			arb.SetManualAction(motion.Stop)
			return m, tea.Quit
		case "up":
			m.hold(motion.Forward)
		case "down":
			m.hold(motion.Backward)
		case "left":
			m.hold(motion.RotateLeft)
		case "right":
			m.hold(motion.RotateRight)
		case " ", "x":
			m.hold(motion.Stop)
		case "m":
			m.held = motion.Stop
			arb.SetMode(motion.Manual)
		case "a":
			m.held = motion.Stop
			arb.SetMode(motion.Automatic)
		case "s":
			if arb.AutoAction() == motion.AutoStart {
				arb.SetAutoAction(motion.AutoStop)
			} else {
				arb.SetAutoAction(motion.AutoStart)
			}
		case "c":
			m.toggleCapture()
		case "1", "2", "3", "4", "5", "6":
			m.stepBench(int(key[0] - '1'))
		}
		return m, nil

	case resendMsg:
		if m.held != motion.Stop && arb.Mode() == motion.Manual {
			arb.SetManualAction(m.held)
		}
		return m, resend()

	case stateMsg:
		m.state = arbiter.State(msg)
		for i, d := range m.state.Features {
			m.chart.PushDataSet(sensorLabel(i), d)
		}
		m.chart.DrawAll()
		return m, waitForState(arb)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.lines)
	}

	return m, nil
}

func (m *driveModel) hold(cmd motion.Command) {
	m.held = cmd
	m.rig.arb.SetManualAction(cmd)
}

func (m *driveModel) toggleCapture() {
	rec := m.rig.recorder
	var err error
	if rec.Enabled() {
		err = rec.Disable()
	} else {
		err = rec.Enable()
	}
	if err != nil {
		m.rig.logger.Error().Err(err).Msg("toggle capture")
	}
}

// stepBench moves simulated sensor i to its next distance.
func (m *driveModel) stepBench(i int) {
	if m.rig.bench == nil {
		return
	}
	m.bench[i] = (m.bench[i] + 1) % len(benchSteps)
	m.rig.bench.Set(i, benchSteps[m.bench[i]])
}

func (m driveModel) View() string {
	if m.quitting {
		return "Rover stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Rover Drive"))
	sb.WriteString(fmt.Sprintf(" - every %s", m.rig.arb.Period()))
	if m.rig.bench != nil {
		sb.WriteString(statusStyle.Render("  [sim]"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(renderLegend(m.state.Features))
	sb.WriteString("\n\n")

	sb.WriteString(m.renderStatus())
	sb.WriteString("\n\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4)

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Arrows drive, space stops, m/a mode, s start/stop, c capture, q quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m driveModel) renderStatus() string {
	s := m.state
	items := []string{
		"mode " + activeStyle.Render(s.Mode.String()),
		"applied " + activeStyle.Render(s.Applied.String()),
	}
	if s.Mode == motion.Automatic {
		items = append(items, "auto "+activeStyle.Render(s.AutoAction.String()))
	}
	if m.rig.recorder.Enabled() {
		items = append(items, alertStyle.Render("● REC"))
	}
	if s.WatchdogTripped && s.Mode == motion.Manual && m.held != motion.Stop {
		items = append(items, alertStyle.Render("watchdog"))
	}
	if s.Error != "" {
		items = append(items, alertStyle.Render(s.Error))
	}
	return strings.Join(items, statusStyle.Render("  │  "))
}

func renderLegend(features motion.FeatureVector) string {
	var items []string
	for i := range motion.NumFeatures {
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(sensorColors[i])).Bold(true)
		item := colorStyle.Render("━━") + " " + fmt.Sprintf("%s %.2fm", sensorLabel(i), features[i])
		items = append(items, item)
	}
	return strings.Join(items, "  ")
}

func (c *DriveCommand) Execute(args []string) error {
	cfg, found, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !found && !c.Sim {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'rover setup' first or use --sim.")
		os.Exit(1)
	}

	// Log lines go to the TUI log box instead of the terminal.
	lines := logging.NewChannelWriter(100)
	logger := logging.NewPlain(lines, logLevel(cfg))

	r, err := openRig(cfg, logger, c.Sim)
	if err != nil {
		return fmt.Errorf("open rover: %w", err)
	}
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if c.Listen != "" {
		stopServer, failed, err := serveRemote(ctx, r, c.Listen)
		if err != nil {
			return err
		}
		defer stopServer()
		go func() {
			select {
			case err := <-failed:
				logger.Error().Err(err).Msg("remote control stopped")
			case <-ctx.Done():
			}
		}()
	}

	wait := r.start(ctx)

	p := tea.NewProgram(initialDriveModel(r, lines.Lines()), tea.WithAltScreen())
	_, err = p.Run()

	cancel()
	wait()
	if err != nil {
		return fmt.Errorf("run terminal ui: %w", err)
	}
	return nil
}
