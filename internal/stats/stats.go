// Package stats accumulates round-trip measurements for one host and folds
// per-host accumulators into a global aggregate.
package stats

import (
	"math"
	"sort"
)

// Accumulator tracks probe outcomes for a single host, or the merged union
// of several hosts. One goroutine owns an accumulator while probing; merging
// happens only after all contributors have finished.
type Accumulator struct {
	Sent     uint32
	Received uint32
	Lost     uint32

	Min   float64 // meaningful only when Received > 0
	Max   float64
	Total float64

	samples []float64 // received RTTs in arrival order

	lastRTT     float64
	haveLast    bool
	jitterSum   float64
	jitterCount uint32
}

// New returns an empty accumulator. Min starts at +Inf so the first sample
// always lowers it.
func New() *Accumulator {
	return &Accumulator{Min: math.Inf(1)}
}

// RecordSent counts one transmitted probe.
func (a *Accumulator) RecordSent() {
	a.Sent++
}

// RecordLost counts one probe that produced no matching reply.
func (a *Accumulator) RecordLost() {
	a.Lost++
}

// RecordReceived folds one round-trip measurement (milliseconds) into the
// accumulator. Jitter pairs consecutive received samples in arrival order;
// a loss in between does not reset the pairing.
func (a *Accumulator) RecordReceived(ms float64) {
	a.Received++
	a.Total += ms
	if ms < a.Min {
		a.Min = ms
	}
	if ms > a.Max {
		a.Max = ms
	}
	a.samples = append(a.samples, ms)
	if a.haveLast {
		a.jitterSum += math.Abs(ms - a.lastRTT)
		a.jitterCount++
	}
	a.lastRTT = ms
	a.haveLast = true
}

// LossPercentage is 100 * lost / sent, or 0 before anything was sent.
func (a *Accumulator) LossPercentage() float64 {
	if a.Sent == 0 {
		return 0
	}
	return float64(a.Lost) / float64(a.Sent) * 100
}

// Average is the mean received round trip, or 0 when nothing was received.
func (a *Accumulator) Average() float64 {
	if a.Received == 0 {
		return 0
	}
	return a.Total / float64(a.Received)
}

// Percentile returns the nearest-rank percentile for 0 <= p <= 1: the
// sample at index round(p*(n-1)) of the ascending-sorted sample list. It is
// deliberately not interpolated. Returns 0 with no samples.
func (a *Accumulator) Percentile(p float64) float64 {
	n := len(a.samples)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), a.samples...)
	sort.Float64s(sorted)
	rank := int(math.Round(p * float64(n-1)))
	if rank < 0 {
		rank = 0
	}
	if rank >= n {
		rank = n - 1
	}
	return sorted[rank]
}

// StdDeviation is the population standard deviation (divide by n) of the
// received samples; 0 with fewer than 2 samples.
func (a *Accumulator) StdDeviation() float64 {
	n := len(a.samples)
	if n < 2 {
		return 0
	}
	mean := a.Average()
	var variance float64
	for _, x := range a.samples {
		d := x - mean
		variance += d * d
	}
	variance /= float64(n)
	return math.Sqrt(variance)
}

// Jitter is the mean absolute difference between consecutive received
// samples; 0 when no pair has been observed.
func (a *Accumulator) Jitter() float64 {
	if a.jitterCount == 0 {
		return 0
	}
	return a.jitterSum / float64(a.jitterCount)
}

// Samples returns the received round trips in arrival order.
func (a *Accumulator) Samples() []float64 {
	return append([]float64(nil), a.samples...)
}

// Merge folds other into a. The operation is commutative and associative,
// so a global aggregate reports true percentiles and jitter over the union
// of all hosts' samples rather than an average of per-host figures.
func (a *Accumulator) Merge(other *Accumulator) {
	a.Sent += other.Sent
	a.Received += other.Received
	a.Lost += other.Lost
	if !math.IsInf(other.Min, 1) && other.Min < a.Min {
		a.Min = other.Min
	}
	if other.Max > a.Max {
		a.Max = other.Max
	}
	a.Total += other.Total
	a.samples = append(a.samples, other.samples...)
	a.jitterSum += other.jitterSum
	a.jitterCount += other.jitterCount
}
