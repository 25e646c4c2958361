package viz

import (
	"context"
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/gravsim/internal/dynamo"
	"github.com/san-kum/gravsim/internal/export"
	"github.com/san-kum/gravsim/internal/metrics"
	"github.com/san-kum/gravsim/internal/sim"
	"gonum.org/v1/gonum/spatial/r2"
)

const (
	width         = 80
	height        = 24
	trailCapacity = 200
	zoomStep      = 1.25
)

// Controller is the part of the scheduler the viewer drives.
type Controller interface {
	Start(ctx context.Context, s sim.Settings) error
	Stop(ctx context.Context) error
	Running() bool
}

type snapshotMsg dynamo.Snapshot

type feedClosedMsg struct{}

// waitForSnapshot blocks on the feed for the next published snapshot.
func waitForSnapshot(feed <-chan dynamo.Snapshot) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-feed
		if !ok {
			return feedClosedMsg{}
		}
		return snapshotMsg(s)
	}
}

// Model renders the snapshots a scheduler publishes and forwards
// start/stop requests back to it.
type Model struct {
	ctx      context.Context
	ctl      Controller
	settings sim.Settings
	feed     <-chan dynamo.Snapshot
	monitor  *metrics.Monitor
	title    string

	canvas *Canvas
	view   *View
	fitted bool
	theme  Theme
	styles styles

	snap     dynamo.Snapshot
	trails   [][]r2.Vec
	follow   int // body index, -1 for the center of mass
	err      error
	showHelp bool
}

// NewModel builds a viewer. feed is usually a ChannelPublisher's C() and
// monitor, if not nil, must be published to by the same scheduler.
func NewModel(ctx context.Context, title string, ctl Controller, settings sim.Settings, feed <-chan dynamo.Snapshot, monitor *metrics.Monitor) Model {
	return Model{
		ctx:      ctx,
		ctl:      ctl,
		settings: settings,
		feed:     feed,
		monitor:  monitor,
		title:    title,
		canvas:   NewCanvas(width, height),
		view:     NewView(width*2, height*4, 1),
		theme:    ThemeCyberpunk,
		styles:   newStyles(ThemeCyberpunk),
		follow:   -1,
	}
}

func (m Model) Init() tea.Cmd {
	return waitForSnapshot(m.feed)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.err = m.ctl.Stop(m.ctx)
			return m, tea.Quit
		case "s", " ":
			if m.ctl.Running() {
				m.err = m.ctl.Stop(m.ctx)
			} else {
				m.err = m.ctl.Start(m.ctx, m.settings)
			}
		case "r":
			m.err = m.ctl.Start(m.ctx, m.settings)
		case "+", "=":
			m.view.Zoom(zoomStep)
		case "-", "_":
			m.view.Zoom(1 / zoomStep)
		case "f":
			m.fitted = false
			m.fit()
		case "c":
			m.follow++
			if m.follow >= len(m.snap.Bodies) {
				m.follow = -1
			}
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = newStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		w := max(10, msg.Width-panelWidth-8)
		h := max(5, msg.Height-3)
		m.canvas = NewCanvas(w, h)
		m.view.Resize(m.canvas.SubWidth(), m.canvas.SubHeight())
	case snapshotMsg:
		m.observe(dynamo.Snapshot(msg))
		return m, waitForSnapshot(m.feed)
	case feedClosedMsg:
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) observe(s dynamo.Snapshot) {
	if s.Session != m.snap.Session || len(m.trails) != len(s.Bodies) {
		m.trails = make([][]r2.Vec, len(s.Bodies))
	}
	for i, b := range s.Bodies {
		if !b.IsValid() {
			continue
		}
		t := append(m.trails[i], b.Pos)
		if len(t) > trailCapacity {
			t = t[1:]
		}
		m.trails[i] = t
	}
	m.snap = s
	if m.follow >= len(s.Bodies) {
		m.follow = -1
	}
	m.fit()
}

// fit scales the view to the current bodies once per request.
func (m *Model) fit() {
	if m.fitted || len(m.snap.Bodies) == 0 {
		return
	}
	m.view = FitView(m.canvas.SubWidth(), m.canvas.SubHeight(), m.snap.Bodies)
	m.fitted = true
}

func (m *Model) focus() r2.Vec {
	if m.follow >= 0 && m.follow < len(m.snap.Bodies) && m.snap.Bodies[m.follow].IsValid() {
		return m.snap.Bodies[m.follow].Pos
	}
	return CenterOfMass(m.snap.Bodies)
}

func (m *Model) followName() string {
	if m.follow < 0 || m.follow >= len(m.snap.Bodies) {
		return "center of mass"
	}
	if name := m.snap.Bodies[m.follow].Name; name != "" {
		return name
	}
	return fmt.Sprintf("body %d", m.follow)
}

func (m *Model) draw() {
	m.canvas.Clear()
	m.view.Center = m.focus()

	for _, trail := range m.trails {
		px, py, prev := 0, 0, false
		for _, p := range trail {
			x, y, ok := m.view.Project(p)
			if !ok {
				prev = false
				continue
			}
			if prev && m.nearCanvas(px, py) && m.nearCanvas(x, y) {
				m.canvas.DrawLine(px, py, x, y, m.theme.Trail)
			} else {
				m.canvas.SetColor(x, y, m.theme.Trail)
			}
			px, py, prev = x, y, true
		}
	}
	for _, b := range m.snap.Bodies {
		if !b.IsValid() {
			continue
		}
		if x, y, ok := m.view.Project(b.Pos); ok {
			m.canvas.FillCircle(x, y, m.view.DiscRadius(b.Radius), lipgloss.Color(export.HexColor(b.Color)))
		}
	}
}

// nearCanvas bounds trail segments to a margin of one canvas around it.
func (m *Model) nearCanvas(x, y int) bool {
	w, h := m.canvas.SubWidth(), m.canvas.SubHeight()
	return x >= -w && x < 2*w && y >= -h && y < 2*h
}

// onCanvas reports whether b is drawn in the current view.
func (m *Model) onCanvas(b dynamo.Body) bool {
	if !b.IsValid() {
		return false
	}
	x, y, ok := m.view.Project(b.Pos)
	return ok && m.canvas.IsSet(x, y)
}

// span is the world width covered by the canvas.
func (m *Model) span() float64 {
	left := m.view.Unproject(0, 0)
	right := m.view.Unproject(m.canvas.SubWidth(), 0)
	return r2.Norm(r2.Sub(right, left))
}

func (m Model) View() string {
	m.draw()
	st := m.styles
	canvasView := st.canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.header.Render(strings.ToUpper(m.title)) + "\n")

	switch {
	case m.snap.Err() != nil:
		s.WriteString(st.invalid.Render("INVALID STATE") + "\n")
	case m.ctl.Running():
		s.WriteString(st.running.Render("RUNNING") + "\n")
	default:
		s.WriteString(st.stopped.Render("STOPPED") + "\n")
	}
	s.WriteString("\n")

	row := func(label, value string) {
		s.WriteString(st.label.Render(label) + st.value.Render(value) + "\n")
	}
	row("Time", fmt.Sprintf("%.4gs (%.1fd)", m.snap.Time, m.snap.Time/86400))
	row("Tick", fmt.Sprintf("%d", m.snap.Tick))
	row("Step", fmt.Sprintf("%gs", m.snap.Step))
	row("Scale", fmt.Sprintf("%.3g m/px", m.view.MetersPerPixel))
	row("Span", fmt.Sprintf("%.3g m", m.span()))
	row("Focus", m.followName())

	if m.monitor != nil {
		vals := m.monitor.Values()
		now := m.monitor.Current()
		row("Energy", fmt.Sprintf("%.3e (now %+.2e)", vals["energy_drift"], now["energy_drift"]))
		row("Momentum", fmt.Sprintf("%.3e", vals["momentum_drift"]))
		row("Ang. mom.", fmt.Sprintf("%.3e", vals["angular_momentum_drift"]))
		row("Stability", fmt.Sprintf("%.0f%%", vals["stability"]*100))

		if hist := m.monitor.History("energy_drift"); len(hist) > 1 && allFinite(hist) {
			chart := asciigraph.Plot(hist, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("energy drift"))
			s.WriteString(st.graph.Render(chart) + "\n")
		}
		s.WriteString(st.label.Render("p drift") + SparklineChart(m.monitor.History("momentum_drift"), 28) + "\n")
	}

	s.WriteString("\nBODIES\n")
	for i, b := range m.snap.Bodies {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color(export.HexColor(b.Color))).Render("●")
		line := fmt.Sprintf("%s %-8s %.3g m/s", dot, b.Name, r2.Norm(b.Vel))
		if !m.onCanvas(b) {
			line += st.label.UnsetWidth().Render(" off view")
		}
		if i == m.follow {
			line = st.header.UnsetMarginBottom().Render(">") + line
		} else {
			line = " " + line
		}
		s.WriteString(line + "\n")
	}

	if m.err != nil {
		s.WriteString("\n" + st.invalid.Render(m.err.Error()) + "\n")
	}
	s.WriteString(st.help.Render("S:Start/Stop R:Restart Q:Quit\n+/-:Zoom F:Fit C:Follow T:Theme ?:Help"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.panel.Render(s.String()))
	if m.showHelp {
		return `
╔══════════════════════════════════════╗
║          KEYBOARD SHORTCUTS          ║
╠══════════════════════════════════════╣
║  S/Space  - Stop or start            ║
║  R        - Restart from t=0         ║
║  +/-      - Zoom in/out              ║
║  F        - Fit view to bodies       ║
║  C        - Follow next body         ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝
` + "\n\n" + mainView
	}
	return mainView
}

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
