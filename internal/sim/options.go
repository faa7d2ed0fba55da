package sim

import (
	"errors"

	"github.com/san-kum/reachenv/internal/dynamo"
	"go.uber.org/zap"
)

var (
	ErrInvalidRenderMode = errors.New("sim: the 'render' argument must be in {'rgb_array', 'human'}")
	ErrInvalidRenderer   = errors.New("sim: the 'renderer' argument must be in {'Tiny', 'OpenGL'}")
	ErrUnknownBody       = errors.New("sim: unknown body name")
	ErrDuplicateBody     = errors.New("sim: body name already in use")
)

type RenderMode string

const (
	RenderHuman    RenderMode = "human"
	RenderRGBArray RenderMode = "rgb_array"
)

type Renderer string

const (
	RendererTiny   Renderer = "Tiny"
	RendererOpenGL Renderer = "OpenGL"
)

const (
	DefaultTimestep  = 1.0 / 500
	DefaultSubsteps  = 20
	DefaultProbeLink = 10
	// NoContactDistance is reported when nothing is within query range.
	NoContactDistance = 10.0
)

type Options struct {
	RenderMode      RenderMode
	Renderer        Renderer
	NSubsteps       int
	Timestep        float64
	OrientationTask bool
	DebugMode       bool

	// ProbeLinks are the arm links measured against the obstacle.
	ProbeLinks []int
	Integrator dynamo.Integrator
	Logger     *zap.Logger
}

func DefaultOptions() Options {
	return Options{
		RenderMode: RenderRGBArray,
		Renderer:   RendererTiny,
		NSubsteps:  DefaultSubsteps,
		Timestep:   DefaultTimestep,
		ProbeLinks: []int{DefaultProbeLink},
	}
}

func (o *Options) fill() {
	if o.NSubsteps <= 0 {
		o.NSubsteps = DefaultSubsteps
	}
	if o.Timestep <= 0 {
		o.Timestep = DefaultTimestep
	}
	if len(o.ProbeLinks) == 0 {
		o.ProbeLinks = []int{DefaultProbeLink}
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}
