package sim

import (
	"context"
	"fmt"

	"github.com/san-kum/queuesim/internal/dynamo"
)

// Job is one independent integration: a system, its initial vector and its grid.
type Job struct {
	System  dynamo.System
	Initial dynamo.State
	Config  Config
}

// Ensemble runs independent jobs concurrently. Each job gets its own
// Simulator and integrator, so systems may be shared between jobs.
type Ensemble struct {
	newIntegrator func() dynamo.Integrator
}

func NewEnsemble(newIntegrator func() dynamo.Integrator) *Ensemble {
	return &Ensemble{newIntegrator: newIntegrator}
}

// Run returns one trajectory per job, in job order. A cancelled context stops
// jobs that have not started yet; any failure discards all results.
func (e *Ensemble) Run(ctx context.Context, jobs []Job) ([]*dynamo.Trajectory, error) {
	results := make([]*dynamo.Trajectory, len(jobs))
	errs := make([]error, len(jobs))

	dynamo.ParallelFor(len(jobs), 1, func(start, end int) {
		for idx := start; idx < end; idx++ {
			if err := ctx.Err(); err != nil {
				errs[idx] = err
				continue
			}
			job := jobs[idx]
			s := New(job.System, e.newIntegrator())
			results[idx], errs[idx] = s.Run(job.Initial, job.Config)
		}
	})

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("job %d: %w", i, err)
		}
	}

	return results, nil
}
