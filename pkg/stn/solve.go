package stn

import (
	"fmt"
	"math"

	coreerrors "github.com/mrta-fleet/auction/pkg/errors"
)

// node kinds, used only to build the dispatchable graph's name index.
const (
	kindNav    = "nav"
	kindStart  = "start"
	kindFinish = "finish"
)

// Solve runs all-pairs-shortest-paths (Floyd-Warshall) over the constraint
// graph implied by the STN's ordered tasks and returns the minimised
// (every edge tight) Dispatchable Graph, or an infeasibility error if any
// negative cycle is found (spec.md §4.1).
func (s *STN) Solve() (*DispatchableGraph, error) {
	n := len(s.tasks)
	size := 1 + 3*n // ZTP + 3 nodes per task

	dist := newMatrix(size)

	// Absolute window for the ZTP itself: always [0, 0].
	dist.set(0, 0, 0)

	prevFinish := 0 // node index of finish_{i-1}, or ZTP for i==1
	for i, tw := range s.tasks {
		navIdx := 1 + 3*i
		startIdx := navIdx + 1
		finishIdx := navIdx + 2

		// Sequencing: finish_{p-1} -> nav_p in [0, +inf).
		addInterval(dist, prevFinish, navIdx, 0, Far)

		// nav_p and finish_p carry no explicit absolute window beyond
		// sequencing; bound them loosely to [0, +inf) from the ZTP so
		// every node participates in the all-pairs closure.
		addInterval(dist, 0, navIdx, 0, Far)
		addInterval(dist, 0, finishIdx, 0, Far)

		// Absolute "pickup" window binds the start node.
		addInterval(dist, 0, startIdx, tw.PickupEarliest, tw.PickupLatest)

		// travel_time: nav_p -> start_p, [mean-k*sigma, mean+k*sigma].
		tlb, tub := interval(tw.TravelMean, tw.TravelVariance, s.KSigma)
		addInterval(dist, navIdx, startIdx, tlb, tub)

		// work_time: start_p -> finish_p, [mean-k*sigma, mean+k*sigma].
		wlb, wub := interval(tw.WorkMean, tw.WorkVariance, s.KSigma)
		addInterval(dist, startIdx, finishIdx, wlb, wub)

		prevFinish = finishIdx
	}

	if err := floydWarshall(dist); err != nil {
		return nil, err
	}

	names := make([]string, size)
	names[0] = "ZTP"
	positions := make([]string, n)
	for i, tw := range s.tasks {
		navIdx := 1 + 3*i
		names[navIdx] = fmt.Sprintf("%s_%d", kindNav, i+1)
		names[navIdx+1] = fmt.Sprintf("%s_%d", kindStart, i+1)
		names[navIdx+2] = fmt.Sprintf("%s_%d", kindFinish, i+1)
		positions[i] = tw.TaskID
	}

	return &DispatchableGraph{
		dist:      dist,
		names:     names,
		taskIndex: positions,
	}, nil
}

// interval turns a duration distribution into [mean-k*sigma, mean+k*sigma],
// clamped so the lower bound never goes negative (a duration cannot be
// negative even if the confidence interval would suggest it).
func interval(mean, variance, k float64) (lb, ub float64) {
	sigma := math.Sqrt(variance)
	lb = mean - k*sigma
	if lb < 0 {
		lb = 0
	}
	ub = mean + k*sigma
	return lb, ub
}

// addInterval records the constraint "to - from in [lb, ub]" as its two
// directed distance-graph edges, keeping the tightest bound seen so far for
// each direction.
func addInterval(m *matrix, from, to int, lb, ub float64) {
	if ub < m.get(from, to) {
		m.set(from, to, ub)
	}
	negLB := -lb
	if negLB < m.get(to, from) {
		m.set(to, from, negLB)
	}
}

type matrix struct {
	n int
	d []float64
}

func newMatrix(n int) *matrix {
	d := make([]float64, n*n)
	for i := range d {
		d[i] = Far
	}
	for i := 0; i < n; i++ {
		d[i*n+i] = 0
	}
	return &matrix{n: n, d: d}
}

func (m *matrix) get(i, j int) float64 { return m.d[i*m.n+j] }
func (m *matrix) set(i, j int, v float64) { m.d[i*m.n+j] = v }

// floydWarshall computes all-pairs shortest paths in place, using
// saturating +inf arithmetic, and reports NoSTPSolution if any diagonal
// entry goes negative (a negative cycle, i.e. an infeasible STN).
func floydWarshall(m *matrix) error {
	n := m.n
	for k := 0; k < n; k++ {
		for i := 0; i < n; i++ {
			dik := m.get(i, k)
			if math.IsInf(dik, 1) {
				continue
			}
			for j := 0; j < n; j++ {
				dkj := m.get(k, j)
				if math.IsInf(dkj, 1) {
					continue
				}
				if cand := dik + dkj; cand < m.get(i, j) {
					m.set(i, j, cand)
				}
			}
		}
	}
	for i := 0; i < n; i++ {
		if m.get(i, i) < 0 {
			return coreerrors.NoSTPSolution()
		}
	}
	return nil
}
