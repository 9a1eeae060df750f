package metrics

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/queuesim/internal/dynamo"
	"github.com/san-kum/queuesim/internal/models"
)

// Map is a flat metric-name → value view of a SteadyState, the shape handed
// to reporting and storage.
type Map map[string]float64

// Metric names used in Map.
const (
	KeyLoadFactor             = "load_factor"
	KeyIdleProbability        = "idle_probability"
	KeyRejectionProbability   = "rejection_probability"
	KeyMeanArrivals           = "mean_arrivals"
	KeyMeanServiceTime        = "mean_service_time"
	KeyMeanChannelServiceTime = "mean_channel_service_time"
	KeyMeanBusyChannels       = "mean_busy_channels"
	KeyChannelUtilization     = "channel_utilization"
	KeyEffectiveArrivalRate   = "effective_arrival_rate"
	KeyMeanQueueLength        = "mean_queue_length"
	KeyMeanQueueWait          = "mean_queue_wait"
	KeyMeanInSystem           = "mean_in_system"
	KeyMeanSystemTime         = "mean_system_time"
)

// ChannelKey names the probability that i channels are busy and nobody waits.
func ChannelKey(i int) string { return fmt.Sprintf("p_channel_%d", i) }

// QueueKey names the probability that all channels are busy and i requests wait.
func QueueKey(i int) string { return fmt.Sprintf("p_queue_%d", i) }

// Keys returns the map keys in a stable order: scalars first, then the
// per-state probabilities by state index.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keyRank(keys[i]), keyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func keyRank(k string) int {
	var i int
	if _, err := fmt.Sscanf(k, "p_channel_%d", &i); err == nil {
		return 1000 + i
	}
	if _, err := fmt.Sscanf(k, "p_queue_%d", &i); err == nil {
		return 100000 + i
	}
	return 0
}

// SteadyState holds the closed-form characteristics of an M/M/c/K system.
type SteadyState struct {
	Load                 float64
	IdleProbability      float64
	ChannelProbabilities []float64 // P_0..P_c
	QueueProbabilities   []float64 // P_{c+1}..P_{c+K}
	RejectionProbability float64

	MeanArrivals           float64
	MeanServiceTime        float64
	MeanChannelServiceTime float64
	MeanBusyChannels       float64
	ChannelUtilization     float64
	EffectiveArrivalRate   float64
	MeanQueueLength        float64
	MeanQueueWait          float64
	MeanInSystem           float64
	MeanSystemTime         float64
}

// undefinedTolerance is the relative distance of ρ from c below which the
// mean queue length formula is treated as singular.
const undefinedTolerance = 1e-12

// Analyze computes the steady-state characteristics of s. It depends only on
// the scenario, so repeated calls return identical values.
func Analyze(s models.Scenario) (*SteadyState, error) {
	lambda := s.ArrivalRate()
	mu := s.ServiceRate()
	c := s.Channels()
	k := s.Capacity()
	if c < 1 || k < 0 || !(lambda > 0) || !(mu > 0) {
		return nil, &dynamo.ParameterError{Field: "scenario", Value: float64(c), Reason: "not built by NewScenario"}
	}

	rho := lambda / mu
	cf := float64(c)

	probs, err := stateProbabilities(rho, c, k)
	if err != nil {
		return nil, err
	}

	ss := &SteadyState{
		Load:                 rho,
		IdleProbability:      probs[0],
		ChannelProbabilities: append([]float64(nil), probs[:c+1]...),
		QueueProbabilities:   append([]float64(nil), probs[c+1:]...),
		RejectionProbability: probs[len(probs)-1],
	}

	ss.MeanArrivals = lambda * s.Horizon()
	ss.MeanServiceTime = 1 / mu
	ss.MeanChannelServiceTime = rho * s.Horizon()

	for i, p := range probs {
		busy := i
		if busy > c {
			busy = c
		}
		ss.MeanBusyChannels += float64(busy) * p
	}
	ss.ChannelUtilization = ss.MeanBusyChannels / cf
	ss.EffectiveArrivalRate = lambda * (1 - ss.RejectionProbability)

	lq, err := meanQueueLength(rho, c, k, probs[c])
	if err != nil {
		return nil, err
	}
	ss.MeanQueueLength = lq
	ss.MeanQueueWait = lq / lambda
	ss.MeanInSystem = lq + rho
	ss.MeanSystemTime = ss.MeanInSystem / lambda

	m := ss.Map()
	for _, name := range m.Keys() {
		if v := m[name]; math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, &dynamo.DomainError{Metric: name, Reason: "value is not finite"}
		}
	}
	return ss, nil
}

// rescaleAbove bounds the unnormalised state weights; larger runs are scaled
// down as they are built so that ρ^i/i! never overflows.
const rescaleAbove = 1e250

// stateProbabilities returns P_0..P_{c+K}. The unnormalised weights follow
// the birth–death balance
//
//	w_0 = 1
//	w_i = w_{i−1}·ρ/i  for i ≤ c
//	w_i = w_{i−1}·ρ/c  for i > c
//
// which is ρ^i/i! and c^c/c!·(ρ/c)^i without forming either factorial.
// P0 = 1/Σw and P_i = w_i/Σw.
func stateProbabilities(rho float64, c, k int) ([]float64, error) {
	weights := make([]float64, c+k+1)
	weights[0] = 1
	for i := 1; i < len(weights); i++ {
		weights[i] = weights[i-1] * rho / float64(min(i, c))
		if weights[i] > rescaleAbove {
			for j := 0; j <= i; j++ {
				weights[j] /= rescaleAbove
			}
		}
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}
	if math.IsNaN(total) || math.IsInf(total, 0) || total <= 0 {
		return nil, &dynamo.DomainError{Metric: KeyIdleProbability, Reason: fmt.Sprintf("normalization constant is %g", total)}
	}

	probs := make([]float64, len(weights))
	for i, w := range weights {
		probs[i] = w / total
	}
	return probs, nil
}

// meanQueueLength evaluates Lq = ρ^{c+1}/((c−1)!·(c−ρ)²)·P0, written as
// P_c·ρ·c/(c−ρ)². A loss system has no queue positions, so its Lq is 0.
func meanQueueLength(rho float64, c, k int, pc float64) (float64, error) {
	if k == 0 {
		return 0, nil
	}
	cf := float64(c)
	if math.Abs(cf-rho) <= undefinedTolerance*cf {
		return 0, &dynamo.DomainError{
			Metric: KeyMeanQueueLength,
			Reason: fmt.Sprintf("load factor %g equals channel count %d", rho, c),
		}
	}
	d := cf - rho
	return pc * rho * cf / (d * d), nil
}

// Probabilities returns the steady-state occupancy vector P_0..P_{c+K}.
func (ss *SteadyState) Probabilities() dynamo.State {
	p := make(dynamo.State, 0, len(ss.ChannelProbabilities)+len(ss.QueueProbabilities))
	p = append(p, ss.ChannelProbabilities...)
	p = append(p, ss.QueueProbabilities...)
	return p
}

// Map flattens the characteristics into named metrics.
func (ss *SteadyState) Map() Map {
	m := Map{
		KeyLoadFactor:             ss.Load,
		KeyIdleProbability:        ss.IdleProbability,
		KeyRejectionProbability:   ss.RejectionProbability,
		KeyMeanArrivals:           ss.MeanArrivals,
		KeyMeanServiceTime:        ss.MeanServiceTime,
		KeyMeanChannelServiceTime: ss.MeanChannelServiceTime,
		KeyMeanBusyChannels:       ss.MeanBusyChannels,
		KeyChannelUtilization:     ss.ChannelUtilization,
		KeyEffectiveArrivalRate:   ss.EffectiveArrivalRate,
		KeyMeanQueueLength:        ss.MeanQueueLength,
		KeyMeanQueueWait:          ss.MeanQueueWait,
		KeyMeanInSystem:           ss.MeanInSystem,
		KeyMeanSystemTime:         ss.MeanSystemTime,
	}
	for i, p := range ss.ChannelProbabilities {
		m[ChannelKey(i)] = p
	}
	for j, p := range ss.QueueProbabilities {
		m[QueueKey(j+1)] = p
	}
	return m
}
