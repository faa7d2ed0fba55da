package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/san-kum/reachenv/internal/config"
	"github.com/san-kum/reachenv/internal/control"
	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestCanvasSet(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(4, 0)
	if c.Grid[0][0] != 0x2801 {
		t.Errorf("expected dot 1 in first cell, got %U", c.Grid[0][0])
	}
	if c.Grid[0][1] != 0x2880 {
		t.Errorf("expected dot 8 in second cell, got %U", c.Grid[0][1])
	}
	if !c.IsSet(3, 3) || c.IsSet(1, 1) {
		t.Error("IsSet disagrees with Set")
	}
	c.Clear()
	if c.String() != "\u2800\u2800\n" {
		t.Errorf("expected blank canvas, got %q", c.String())
	}
}

func TestCanvasShapes(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawLine(0, 0, 19, 19)
	if !c.IsSet(0, 0) || !c.IsSet(19, 19) || !c.IsSet(10, 10) {
		t.Error("expected diagonal line endpoints and midpoint")
	}
	c.Clear()
	c.DrawRect(2, 2, 8, 6)
	if !c.IsSet(2, 2) || !c.IsSet(8, 6) || !c.IsSet(5, 2) || c.IsSet(5, 4) {
		t.Error("expected outlined rectangle")
	}
	c.Clear()
	c.DrawCircle(10, 10, 4)
	if !c.IsSet(14, 10) || !c.IsSet(6, 10) || c.IsSet(10, 10) {
		t.Error("expected circle outline without centre")
	}
}

func TestParsePlane(t *testing.T) {
	for _, s := range []string{"xy", "xz"} {
		if _, err := ParsePlane(s); err != nil {
			t.Errorf("%s: %v", s, err)
		}
	}
	if _, err := ParsePlane("yz"); err == nil {
		t.Error("expected error for yz")
	}
}

func TestViewDot(t *testing.T) {
	c := NewCanvas(10, 10) // 20 x 40 dots
	v := NewView(PlaneXZ, Bounds{MinU: 0, MaxU: 1, MinV: 0, MaxV: 1}, c)

	x0, y0 := v.Dot(r3.Vec{})
	x1, y1 := v.Dot(r3.Vec{X: 1, Y: 5, Z: 1})
	if x0 != 0 || x1 != 19 {
		t.Errorf("expected u to span 0..19, got %d..%d", x0, x1)
	}
	if y0 <= y1 {
		t.Errorf("expected z to grow upwards, got y0=%d y1=%d", y0, y1)
	}
	if y0-y1 != 19 {
		t.Errorf("expected equal scale on both axes, got height %d", y0-y1)
	}
}

func TestViewScene(t *testing.T) {
	c := NewCanvas(30, 15)
	v := NewView(PlaneXY, DefaultBounds(PlaneXY), c)
	v.Scene(physics.Scene{
		Primitives: []physics.Primitive{{
			Name:  "obstacle1",
			Shape: physics.Box{HalfExtents: r3.Vec{X: 0.05, Y: 0.05, Z: 0.05}},
			Pose:  spatial.NewPose(r3.Vec{X: 0.5}, spatial.Identity()),
		}},
		Capsules: []physics.Capsule{{A: r3.Vec{}, B: r3.Vec{X: 0.3}, Radius: 0.05}},
	})
	x, y := v.Dot(r3.Vec{X: 0.45, Y: -0.05})
	if !c.IsSet(x, y) {
		t.Error("expected box corner to be drawn")
	}
	x, y = v.Dot(r3.Vec{X: 0.15})
	if !c.IsSet(x, y) {
		t.Error("expected capsule centre line to be drawn")
	}
}

func TestSparklineAndProgress(t *testing.T) {
	if s := Sparkline(nil, 5); s != "─────" {
		t.Errorf("expected flat line, got %q", s)
	}
	if s := Sparkline([]float64{1, 2, 3}, 5); !strings.Contains(s, "▁") || !strings.Contains(s, "█") {
		t.Errorf("expected lowest and highest blocks, got %q", s)
	}
	if s := ProgressBar(2, 4); strings.Count(s, "█") != 4 {
		t.Errorf("expected a full bar, got %q", s)
	}
}

func newModel(t *testing.T) Model {
	t.Helper()
	e, err := env.New(*config.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return NewModel(e, control.NewZero(e.ActionSpace().Dim()), 1)
}

func press(m Model, key string) (Model, tea.Cmd) {
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return next.(Model), cmd
}

func TestModelKeys(t *testing.T) {
	m := newModel(t)
	if !m.running || m.episode != 1 {
		t.Fatalf("expected a running first episode, got running=%v episode=%d", m.running, m.episode)
	}

	m, _ = press(m, " ")
	if m.running {
		t.Error("expected space to pause")
	}

	m, _ = press(m, "n")
	if m.step != 1 {
		t.Errorf("expected one step, got %d", m.step)
	}

	next, _ := m.Update(TickMsg{})
	m = next.(Model)
	if m.step != 1 {
		t.Errorf("expected paused tick not to step, got %d", m.step)
	}

	m, _ = press(m, "r")
	if m.step != 0 || m.episode != 2 || m.seed != 2 {
		t.Errorf("expected reset to a new episode, got step=%d episode=%d seed=%d", m.step, m.episode, m.seed)
	}

	_, cmd := press(m, "q")
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestModelView(t *testing.T) {
	m := newModel(t)
	m, _ = press(m, "n")
	out := m.View()
	for _, want := range []string{"PANDA REACH", "Episode", "Distance", "Clearance", "top (x-y)", "side (x-z)"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}
