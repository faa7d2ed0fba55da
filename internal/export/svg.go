// Package export writes end-effector trajectories and braille canvases
// as SVG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/reachenv/internal/env"
	"github.com/san-kum/reachenv/internal/sim"
	"github.com/san-kum/reachenv/internal/viz"
	"gonum.org/v1/gonum/spatial/r3"
)

var palette = []string{"#00ff88", "#00ccff", "#ffcc00", "#ff66cc", "#aa88ff"}

// CanvasToSVG converts a Braille canvas to SVG format
func CanvasToSVG(canvas *viz.Canvas, scale float64) string {
	if canvas == nil {
		return ""
	}

	w, h := canvas.Dots()
	width, height := float64(w)*scale, float64(h)*scale

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff00">
`, width, height, width, height)

	dotRadius := scale * 0.4
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if canvas.IsSet(x, y) {
				fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\"/>\n",
					float64(x)*scale+scale/2, float64(y)*scale+scale/2, dotRadius)
			}
		}
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

type point struct{ X, Y float64 }

// frame maps plane coordinates to SVG pixels with 10% padding.
type frame struct {
	minX, minY, rangeX, rangeY float64
	width, height              int
}

func newFrame(pts []point, width, height int) frame {
	minX, maxX := pts[0].X, pts[0].X
	minY, maxY := pts[0].Y, pts[0].Y
	for _, p := range pts {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.1
	minY -= rangeY * 0.1
	return frame{minX: minX, minY: minY, rangeX: rangeX * 1.2, rangeY: rangeY * 1.2, width: width, height: height}
}

func (f frame) px(p point) (float64, float64) {
	x := (p.X - f.minX) / f.rangeX * float64(f.width)
	y := float64(f.height) - (p.Y-f.minY)/f.rangeY*float64(f.height)
	return x, y
}

func project(plane viz.Plane, v r3.Vec) point {
	x, y := plane.Coords(v)
	return point{x, y}
}

func vec(v []float32) r3.Vec {
	return r3.Vec{X: float64(v[0]), Y: float64(v[1]), Z: float64(v[2])}
}

// TrajectoryToSVG draws one end-effector path per episode projected on
// plane, a cross at each episode's goal and the obstacle outline.
func TrajectoryToSVG(trs []env.Transition, plane viz.Plane, width, height int) string {
	paths := map[int][]point{}
	goals := map[int]point{}
	var order []int
	for _, tr := range trs {
		if len(tr.Observation.AchievedGoal) < 3 || len(tr.Observation.DesiredGoal) < 3 {
			continue
		}
		if _, ok := paths[tr.Episode]; !ok {
			order = append(order, tr.Episode)
		}
		paths[tr.Episode] = append(paths[tr.Episode], project(plane, vec(tr.Observation.AchievedGoal)))
		goals[tr.Episode] = project(plane, vec(tr.Observation.DesiredGoal))
	}
	if len(order) == 0 {
		return ""
	}

	obstacle := obstacleCorners(plane)
	all := append([]point(nil), obstacle[:]...)
	for _, ep := range order {
		all = append(all, paths[ep]...)
		all = append(all, goals[ep])
	}
	f := newFrame(all, width, height)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height)

	x0, y0 := f.px(obstacle[0])
	x1, y1 := f.px(obstacle[1])
	fmt.Fprintf(&sb, "<rect class=\"obstacle\" x=\"%.1f\" y=\"%.1f\" width=\"%.1f\" height=\"%.1f\" fill=\"#ff4444\" fill-opacity=\"0.4\"/>\n",
		math.Min(x0, x1), math.Min(y0, y1), math.Abs(x1-x0), math.Abs(y1-y0))

	for i, ep := range order {
		color := palette[i%len(palette)]
		sb.WriteString(`<path class="trajectory" fill="none" stroke="` + color + `" stroke-width="1.5" d="`)
		for j, p := range paths[ep] {
			x, y := f.px(p)
			if j == 0 {
				fmt.Fprintf(&sb, "M%.1f,%.1f", x, y)
			} else {
				fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
			}
		}
		sb.WriteString("\"/>\n")

		gx, gy := f.px(goals[ep])
		fmt.Fprintf(&sb, "<path class=\"goal\" stroke=\"%s\" stroke-width=\"2\" d=\"M%.1f,%.1f L%.1f,%.1f M%.1f,%.1f L%.1f,%.1f\"/>\n",
			color, gx-5, gy-5, gx+5, gy+5, gx-5, gy+5, gx+5, gy-5)
	}

	sb.WriteString("</svg>")
	return sb.String()
}

func obstacleCorners(plane viz.Plane) [2]point {
	lo := r3.Sub(sim.ObstaclePosition, sim.ObstacleHalfExtents)
	hi := r3.Add(sim.ObstaclePosition, sim.ObstacleHalfExtents)
	return [2]point{project(plane, lo), project(plane, hi)}
}
