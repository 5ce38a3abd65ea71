// Package timetable wraps one robot's STN with its zero-timepoint and
// solved dispatchable graph, per spec.md §3/§4.2.
package timetable

import (
	"math"
	"time"

	"github.com/mrta-fleet/auction/pkg/stn"
	"github.com/mrta-fleet/auction/pkg/task"
)

// Timetable is owned by one robot.
type Timetable struct {
	RobotID           string
	ZeroTimepoint     time.Time
	STN               *stn.STN
	DispatchableGraph *stn.DispatchableGraph // nil until a successful SolveSTP

	// Scheduled marks that the timetable's first task is committed for
	// execution by an external scheduler (§4.4: the core treats this as
	// opaque and only checks its presence).
	Scheduled bool
}

// New creates an empty Timetable for robotID with the given STN solver
// confidence width.
func New(robotID string, ztp time.Time, kSigma float64) *Timetable {
	return &Timetable{
		RobotID:       robotID,
		ZeroTimepoint: ztp,
		STN:           stn.New(kSigma),
	}
}

// relativeToZTP converts an absolute time to seconds from ZTP, translating
// the far-future sentinel to +inf (spec.md §4.2).
func (t *Timetable) relativeToZTP(at time.Time, unbounded bool) float64 {
	if unbounded || !at.Before(task.FarFutureTime) {
		return task.FarFuture
	}
	return at.Sub(t.ZeroTimepoint).Seconds()
}

// AddTask constructs the three task nodes from tk's constraints,
// translating absolute datetimes to offsets from ZeroTimepoint, and splices
// them into the STN at position (spec.md §4.2).
func (t *Timetable) AddTask(tk task.Task, position int) error {
	pickup, _ := tk.Constraints.Timepoint("pickup")
	travel, _ := tk.Constraints.InterTimepoint("travel_time")
	work, _ := tk.Constraints.InterTimepoint("work_time")

	tw := stn.TaskWindow{
		TaskID:         tk.ID,
		PickupEarliest: t.relativeToZTP(pickup.EarliestTime, false),
		PickupLatest:   t.relativeToZTP(pickup.LatestTime, pickup.LatestUnbounded),
		TravelMean:     travel.Mean,
		TravelVariance: travel.Variance,
		WorkMean:       work.Mean,
		WorkVariance:   work.Variance,
	}
	if math.IsInf(tw.PickupEarliest, 1) {
		tw.PickupEarliest = 0
	}

	return t.STN.Insert(tw, position)
}

// RemoveTask removes the task at position from the STN.
func (t *Timetable) RemoveTask(position int) error {
	return t.STN.Remove(position)
}

// GetTasks returns the inserted task ids in position order.
func (t *Timetable) GetTasks() []string {
	return t.STN.GetTasks()
}

// SolveSTP invokes the solver; on success it stores the resulting
// dispatchable graph and returns it. On infeasibility it returns
// *errors.AllocationError{Kind: NoSTPSolution} and leaves DispatchableGraph
// untouched — the caller (Bidder/Timetable owner) is responsible for
// rolling back the just-attempted insertion via RemoveTask.
func (t *Timetable) SolveSTP() (*stn.DispatchableGraph, error) {
	dg, err := t.STN.Solve()
	if err != nil {
		return nil, err
	}
	t.DispatchableGraph = dg
	return dg, nil
}

// Clone returns a deep copy: a fresh STN (via stn.Clone) and a copy of the
// scalar fields. DispatchableGraph is not copied — it is recomputed by
// SolveSTP after any mutation, matching the spec's "solve after insert"
// contract, and a stale pointer would otherwise outlive the STN it was
// derived from.
func (t *Timetable) Clone() *Timetable {
	return &Timetable{
		RobotID:       t.RobotID,
		ZeroTimepoint: t.ZeroTimepoint,
		STN:           t.STN.Clone(),
		Scheduled:     t.Scheduled,
	}
}
