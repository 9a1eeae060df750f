package optim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/metrics"
	"github.com/san-kum/queuesim/internal/models"
)

const (
	paramChannels = "channel_count"
	paramCapacity = "queue_capacity"
)

// Requirement is the service level a plan must meet. A zero MaxQueueWait
// leaves waiting time unconstrained.
type Requirement struct {
	MaxRejection float64
	MaxQueueWait float64
}

// Costs prices one channel and one queue place.
type Costs struct {
	Channel float64
	Place   float64
}

// Plan is the cheapest (c, K) shape found for a load.
type Plan struct {
	Channels int
	Capacity int
	Cost     float64
	Steady   *metrics.SteadyState
}

// CapacityPlanner searches channel counts and queue capacities for the
// cheapest shape whose closed-form characteristics meet a requirement.
type CapacityPlanner struct {
	MaxChannels int
	MaxCapacity int
	Costs       Costs
	Log         *slog.Logger
}

// Plan keeps the rates and integration window of base and varies its shape.
func (p *CapacityPlanner) Plan(ctx context.Context, base models.Scenario, req Requirement) (*Plan, error) {
	if !(req.MaxRejection > 0) || req.MaxRejection > 1 {
		return nil, &dynamo.ParameterError{Field: "max_rejection", Value: req.MaxRejection, Reason: "must lie in (0, 1]"}
	}
	if p.MaxChannels < 1 || p.MaxCapacity < 0 {
		return nil, &dynamo.ParameterError{Field: "max_channels", Value: float64(p.MaxChannels), Reason: "grid is empty"}
	}
	log := p.Log
	if log == nil {
		log = slog.Default()
	}

	grid := NewGridSearch(
		[]string{paramChannels, paramCapacity},
		[][]float64{IntRange(1, p.MaxChannels), IntRange(0, p.MaxCapacity)},
	)

	objective := func(params map[string]float64) (float64, error) {
		c, k := int(params[paramChannels]), int(params[paramCapacity])
		s, err := base.WithShape(c, k)
		if err != nil {
			return 0, err
		}
		ss, err := metrics.Analyze(s)
		if errors.Is(err, dynamo.ErrUndefinedResult) {
			log.Debug("skipping undefined shape", "channels", c, "capacity", k)
			return math.Inf(1), nil
		}
		if err != nil {
			return 0, err
		}
		if !meets(ss, req) {
			return math.Inf(1), nil
		}
		return p.Costs.Channel*float64(c) + p.Costs.Place*float64(k), nil
	}

	best, cost, err := grid.Search(ctx, objective)
	if err != nil {
		return nil, fmt.Errorf("capacity plan: %w", err)
	}

	s, err := base.WithShape(int(best[paramChannels]), int(best[paramCapacity]))
	if err != nil {
		return nil, err
	}
	ss, err := metrics.Analyze(s)
	if err != nil {
		return nil, err
	}
	log.Info("capacity plan found", "channels", s.Channels(), "capacity", s.Capacity(), "cost", cost)
	return &Plan{Channels: s.Channels(), Capacity: s.Capacity(), Cost: cost, Steady: ss}, nil
}

func meets(ss *metrics.SteadyState, req Requirement) bool {
	if ss.RejectionProbability > req.MaxRejection {
		return false
	}
	if req.MaxQueueWait > 0 && ss.MeanQueueWait > req.MaxQueueWait {
		return false
	}
	return true
}
