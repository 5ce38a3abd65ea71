// Package stn implements the Simple Temporal Network / dispatchable-graph
// data structure of spec.md §3-4.1: a labelled directed graph of timepoints
// (one ZTP head node, plus navigation/start/finish nodes per inserted
// task) and the insert/remove/solve operations over it.
//
// The STN keeps its inserted tasks as an ordered slice rather than an
// incrementally-spliced adjacency list: positions are a contiguous prefix
// by construction (invariant I5), and the constraint graph is rebuilt from
// that ordered slice on every Solve, which is what the teacher's
// consensus.Engine does for its own in-memory state (derive the
// authoritative view from an ordered log rather than mutate a graph in
// place).
package stn

import (
	"math"

	coreerrors "github.com/mrta-fleet/auction/pkg/errors"
)

// Far is the STN's internal +inf sentinel for an unbounded upper limit.
// The solver treats arithmetic against it as saturating and must never let
// it decay into NaN.
var Far = math.Inf(1)

// TaskWindow is the per-task temporal data the STN needs to splice in three
// nodes at a position: the absolute pickup window (already translated to
// seconds relative to ZTP by the Timetable) and the two duration
// distributions.
type TaskWindow struct {
	TaskID string

	PickupEarliest float64 // seconds from ZTP
	PickupLatest   float64 // seconds from ZTP, may be Far

	TravelMean     float64
	TravelVariance float64

	WorkMean     float64
	WorkVariance float64
}

// STN is one robot's temporal constraint network.
type STN struct {
	// KSigma is the confidence-interval width (k·σ) applied to duration
	// distributions when they are turned into edge bounds.
	KSigma float64

	tasks []TaskWindow // ordered 1..n, index 0 is position 1
}

// New creates an empty STN (position 0 / ZTP only) with the given k·σ
// confidence width.
func New(kSigma float64) *STN {
	return &STN{KSigma: kSigma}
}

// Len returns n, the number of currently inserted tasks.
func (s *STN) Len() int {
	return len(s.tasks)
}

// Insert splices a task's three nodes into position p, per spec.md §4.1.
// p must be in 1..n+1; InvalidPosition is returned otherwise.
func (s *STN) Insert(tw TaskWindow, position int) error {
	n := len(s.tasks)
	if position < 1 || position > n+1 {
		return coreerrors.InvalidPosition(position, n)
	}
	s.tasks = append(s.tasks, TaskWindow{})
	copy(s.tasks[position:], s.tasks[position-1:n])
	s.tasks[position-1] = tw
	return nil
}

// Remove removes the task at position, re-linking neighbours, per
// spec.md §4.1. position must be in 1..n; InvalidPosition otherwise.
func (s *STN) Remove(position int) error {
	n := len(s.tasks)
	if position < 1 || position > n {
		return coreerrors.InvalidPosition(position, n)
	}
	s.tasks = append(s.tasks[:position-1], s.tasks[position:]...)
	return nil
}

// GetTasks returns the inserted task ids in position order.
func (s *STN) GetTasks() []string {
	ids := make([]string, len(s.tasks))
	for i, tw := range s.tasks {
		ids[i] = tw.TaskID
	}
	return ids
}

// Clone returns a deep copy, used by the bidding rule to trial an insertion
// without mutating the robot's committed STN.
func (s *STN) Clone() *STN {
	clone := &STN{KSigma: s.KSigma}
	clone.tasks = append([]TaskWindow(nil), s.tasks...)
	return clone
}
