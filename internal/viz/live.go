package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"github.com/san-kum/reachenv/internal/control"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	width           = 60
	height          = 12
	historyCapacity = 300
	// clearanceScale is the clearance shown as a full bar.
	clearanceScale = 0.2
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model plays a policy in the environment and draws top and side views.
type Model struct {
	env    *env.Env
	policy control.Policy
	top    *View
	side   *View

	seed     uint64
	episode  int
	step     int
	reward   float64
	ret      float64
	distance float64
	info     env.Info
	running  bool
	done     bool
	err      error

	trail     []r3.Vec
	distances []float64
	rewards   []float64
}

// NewModel resets e with seed and starts running.
func NewModel(e *env.Env, p control.Policy, seed uint64) Model {
	m := Model{
		env:     e,
		policy:  p,
		top:     NewView(PlaneXY, DefaultBounds(PlaneXY), NewCanvas(width, height)),
		side:    NewView(PlaneXZ, DefaultBounds(PlaneXZ), NewCanvas(width, height)),
		seed:    seed,
		running: true,
	}
	m.reset()
	return m
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the environment.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.seed++
			m.reset()
		case "n":
			m.running = false
			m.advance()
		}
	case TickMsg:
		if m.running {
			m.advance()
		}
		return m, tick()
	}
	return m, nil
}

// advance takes one step, or starts the next episode once one has ended.
func (m *Model) advance() {
	if m.err != nil {
		return
	}
	if m.done {
		m.seed++
		m.reset()
		return
	}
	action, err := m.policy.Act(m.env.LastObservation())
	if err != nil {
		m.fail(err)
		return
	}
	_, reward, terminated, truncated, info, err := m.env.Step(action)
	if err != nil {
		m.fail(err)
		return
	}
	m.reward, m.info = reward, info
	m.ret += reward
	m.step++
	m.done = terminated || truncated
	m.record()
}

func (m *Model) fail(err error) {
	m.err = err
	m.running = false
}

// reset starts a new episode.
func (m *Model) reset() {
	seed := m.seed
	_, info, err := m.env.Reset(env.ResetOptions{Seed: &seed})
	if err != nil {
		m.fail(err)
		return
	}
	m.policy.Reset()
	m.info = info
	m.episode++
	m.step, m.reward, m.ret = 0, 0, 0
	m.done = false
	m.trail = m.trail[:0]
	m.distances = m.distances[:0]
	m.rewards = m.rewards[:0]
	m.record()
}

func (m *Model) record() {
	ee, err := spatial.Vec(env.Float64s(m.env.LastObservation().AchievedGoal[:3]))
	if err == nil {
		m.trail = appendCapped(m.trail, ee)
	}
	if d, err := m.env.Distance(); err == nil {
		m.distance = d
		m.distances = appendCapped(m.distances, d)
	}
	if m.step > 0 {
		m.rewards = appendCapped(m.rewards, m.reward)
	}
}

func appendCapped[T any](s []T, v T) []T {
	s = append(s, v)
	if len(s) > historyCapacity {
		s = s[1:]
	}
	return s
}

func (m Model) clearance() float64 {
	return env.Transition{Observation: m.env.LastObservation()}.Clearance()
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return StatusCollision.Render("ERROR")
	case m.info.IsCollision:
		return StatusCollision.Render("COLLISION")
	case m.info.IsSuccess:
		return StatusRunning.Render("SUCCESS")
	case !m.running:
		return StatusPaused.Render("PAUSED")
	}
	return StatusRunning.Render("RUNNING")
}

func (m *Model) draw() {
	goal := m.env.LastObservation().DesiredGoal
	for _, v := range []*View{m.top, m.side} {
		v.Canvas.Clear()
		v.Scene(m.env.Sim().Snapshot())
		for _, p := range m.trail {
			v.Canvas.Set(v.Dot(p))
		}
		if len(goal) >= 3 {
			v.Circle(r3.Vec{X: float64(goal[0]), Y: float64(goal[1]), Z: float64(goal[2])}, 0.03)
		}
	}
}

func row(label, value string) string {
	return labelStyle.Render(label) + valueStyle.Render(value) + "\n"
}

// View renders the two projections beside the stats panel.
func (m Model) View() string {
	m.draw()
	views := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("top (x-y)"),
		canvasStyle.Render(m.top.Canvas.String()),
		titleStyle.Render("side (x-z)"),
		canvasStyle.Render(m.side.Canvas.String()),
	)

	var s strings.Builder
	s.WriteString(headerStyle.Render("PANDA REACH") + "\n")
	s.WriteString(m.status() + "\n\n")
	s.WriteString(row("Episode", fmt.Sprintf("%d (seed %d)", m.episode, m.seed)))
	s.WriteString(row("Step", fmt.Sprintf("%d", m.step)))
	s.WriteString(row("Reward", fmt.Sprintf("%.3f", m.reward)))
	s.WriteString(row("Return", fmt.Sprintf("%.3f", m.ret)))
	s.WriteString(row("Distance", fmt.Sprintf("%.3f m", m.distance)))
	c := m.clearance()
	s.WriteString(row("Clearance", fmt.Sprintf("%.3f m ", c)+ProgressBar(c/clearanceScale, 10)))
	s.WriteString(row("Policy", m.policy.Name()))
	if m.err != nil {
		s.WriteString(row("Error", m.err.Error()))
	}
	if len(m.distances) > 1 {
		chart := asciigraph.Plot(m.distances, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Distance"))
		s.WriteString(graphStyle.Render(chart) + "\n")
	}
	s.WriteString(Sparkline(m.rewards, 30) + "\n")
	s.WriteString(helpStyle.Render("SP:Pause N:Step R:Reset Q:Quit"))

	return lipgloss.JoinHorizontal(lipgloss.Top, views, statsStyle.Render(s.String()))
}

// Run starts the live view on the terminal.
func Run(m Model) error {
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
