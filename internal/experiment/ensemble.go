package experiment

import (
	"context"
	"runtime"

	"github.com/san-kum/reachenv/internal/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Ensemble runs the same configuration under several seeds. Each run owns
// its environment since an engine is not safe for concurrent use.
type Ensemble struct {
	cfg       config.Config
	registry  *Registry
	numRuns   int
	seedStart uint64
	workers   int
	logger    *zap.Logger
}

func NewEnsemble(cfg config.Config, reg *Registry, numRuns int, seedStart uint64) *Ensemble {
	return &Ensemble{
		cfg:       cfg,
		registry:  reg,
		numRuns:   numRuns,
		seedStart: seedStart,
		workers:   runtime.GOMAXPROCS(0),
		logger:    zap.NewNop(),
	}
}

func (e *Ensemble) WithWorkers(n int) *Ensemble {
	if n > 0 {
		e.workers = n
	}
	return e
}

func (e *Ensemble) WithLogger(l *zap.Logger) *Ensemble {
	e.logger = l
	return e
}

// Run returns one result per seed, in seed order.
func (e *Ensemble) Run(ctx context.Context, run Config) ([]*Result, error) {
	results := make([]*Result, e.numRuns)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			cfg := *e.cfg.Clone()
			cfg.Seed = e.seedStart + uint64(i)
			r, err := NewRunner(cfg, e.registry, e.logger.With(zap.Int("run", i)))
			if err != nil {
				return err
			}
			defer r.Close()

			c := run
			c.Seed = cfg.Seed
			res, err := r.Run(ctx, c)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Mean averages each metric over the results.
func Mean(results []*Result) map[string]float64 {
	out := make(map[string]float64)
	if len(results) == 0 {
		return out
	}
	for _, r := range results {
		for k, v := range r.Metrics {
			out[k] += v
		}
	}
	for k := range out {
		out[k] /= float64(len(results))
	}
	return out
}
