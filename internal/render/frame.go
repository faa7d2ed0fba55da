package render

import (
	"image"
	"math"
	"sort"

	"github.com/fogleman/gg"
	"github.com/san-kum/reachenv/internal/physics"
	"github.com/san-kum/reachenv/internal/spatial"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	Background = physics.Color{61.0 / 255, 61.0 / 255, 61.0 / 255, 1}
	ArmColor   = physics.Color{0.95, 0.6, 0.2, 1}
)

type item struct {
	depth float64
	draw  func(dc *gg.Context)
}

// Frame renders scene as seen from cam into a width x height image.
func Frame(scene physics.Scene, cam Camera, width, height int, bg physics.Color) image.Image {
	dc := gg.NewContext(width, height)
	dc.SetRGBA(bg[0], bg[1], bg[2], bg[3])
	dc.Clear()
	dc.SetLineCapRound()
	dc.SetLineJoinRound()

	v := cam.view(width, height)
	var items []item

	for _, p := range scene.Primitives {
		p := p
		_, _, depth, ok := v.project(p.Pose.Position)
		if !ok {
			continue
		}
		items = append(items, item{depth: depth, draw: func(dc *gg.Context) { drawPrimitive(dc, v, p) }})
	}
	for _, c := range scene.Capsules {
		c := c
		_, _, depth, ok := v.project(r3.Scale(0.5, r3.Add(c.A, c.B)))
		if !ok {
			continue
		}
		items = append(items, item{depth: depth, draw: func(dc *gg.Context) { drawCapsule(dc, v, c) }})
	}

	// Painter's order: far to near.
	sort.SliceStable(items, func(i, j int) bool { return items[i].depth > items[j].depth })
	for _, it := range items {
		it.draw(dc)
	}
	return dc.Image()
}

func setColor(dc *gg.Context, c physics.Color) {
	a := c[3]
	if a == 0 {
		a = 1
	}
	dc.SetRGBA(c[0], c[1], c[2], a)
}

func drawPrimitive(dc *gg.Context, v view, p physics.Primitive) {
	setColor(dc, p.Color)
	dc.SetLineWidth(1.5)
	switch s := p.Shape.(type) {
	case physics.Box:
		drawBox(dc, v, p.Pose, s.HalfExtents)
	case physics.Sphere:
		x, y, depth, ok := v.project(p.Pose.Position)
		if !ok {
			return
		}
		dc.DrawCircle(x, y, math.Max(1, s.Radius/depth*v.focal))
		dc.Fill()
	case physics.Cylinder:
		drawCylinder(dc, v, p.Pose, s)
	case physics.Plane:
		drawGrid(dc, v, p.Pose)
	}
}

// drawGrid draws a finite patch of an infinite plane as grid lines.
func drawGrid(dc *gg.Context, v view, pose spatial.Pose) {
	const half, cells = 1.5, 6
	step := 2 * half / cells
	for i := 0; i <= cells; i++ {
		c := -half + float64(i)*step
		line(dc, v, pose.Apply(r3.Vec{X: c, Y: -half}), pose.Apply(r3.Vec{X: c, Y: half}))
		line(dc, v, pose.Apply(r3.Vec{X: -half, Y: c}), pose.Apply(r3.Vec{X: half, Y: c}))
	}
	dc.Stroke()
}

var boxEdges = [12][2]int{
	{0, 1}, {1, 3}, {3, 2}, {2, 0},
	{4, 5}, {5, 7}, {7, 6}, {6, 4},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

func drawBox(dc *gg.Context, v view, pose spatial.Pose, h r3.Vec) {
	var corners [8]r3.Vec
	for i := range corners {
		c := r3.Vec{X: -h.X, Y: -h.Y, Z: -h.Z}
		if i&1 != 0 {
			c.X = h.X
		}
		if i&2 != 0 {
			c.Y = h.Y
		}
		if i&4 != 0 {
			c.Z = h.Z
		}
		corners[i] = pose.Apply(c)
	}
	for _, e := range boxEdges {
		line(dc, v, corners[e[0]], corners[e[1]])
	}
	dc.Stroke()
}

func drawCylinder(dc *gg.Context, v view, pose spatial.Pose, c physics.Cylinder) {
	const segments = 16
	half := c.Length / 2
	var top, bottom [segments]r3.Vec
	for i := 0; i < segments; i++ {
		a := 2 * math.Pi * float64(i) / segments
		x, y := c.Radius*math.Cos(a), c.Radius*math.Sin(a)
		top[i] = pose.Apply(r3.Vec{X: x, Y: y, Z: half})
		bottom[i] = pose.Apply(r3.Vec{X: x, Y: y, Z: -half})
	}
	for i := 0; i < segments; i++ {
		j := (i + 1) % segments
		line(dc, v, top[i], top[j])
		line(dc, v, bottom[i], bottom[j])
	}
	line(dc, v, top[0], bottom[0])
	line(dc, v, top[segments/2], bottom[segments/2])
	dc.Stroke()
}

func drawCapsule(dc *gg.Context, v view, c physics.Capsule) {
	x1, y1, d1, ok1 := v.project(c.A)
	x2, y2, d2, ok2 := v.project(c.B)
	if !ok1 || !ok2 {
		return
	}
	setColor(dc, ArmColor)
	dc.SetLineWidth(math.Max(1, 2*c.Radius/((d1+d2)/2)*v.focal))
	dc.DrawLine(x1, y1, x2, y2)
	dc.Stroke()
}

func line(dc *gg.Context, v view, a, b r3.Vec) {
	x1, y1, _, ok1 := v.project(a)
	x2, y2, _, ok2 := v.project(b)
	if !ok1 || !ok2 {
		return
	}
	dc.MoveTo(x1, y1)
	dc.LineTo(x2, y2)
}

// SavePNG writes img to path.
func SavePNG(path string, img image.Image) error {
	return gg.SavePNG(path, img)
}
