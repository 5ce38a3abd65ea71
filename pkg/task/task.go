// Package task models the Task data structure of spec.md §3: a stable id,
// a TransportationRequest, and a TemporalConstraints bundle, plus the
// TaskStatus lifecycle supplemented from original_source/mrs/db/models/task.py
// (the distilled spec only names ALLOCATED; a complete persistence layer
// needs the rest of the enum to give update_task_status somewhere to land).
package task

import (
	"math"
	"time"
)

// Status is the task lifecycle, supplemented from the original Python
// source's ropod TaskStatus constants.
type Status string

const (
	StatusUnallocated Status = "UNALLOCATED"
	StatusAllocated   Status = "ALLOCATED"
	StatusScheduled   Status = "SCHEDULED"
	StatusCompleted   Status = "COMPLETED"
	StatusAborted     Status = "ABORTED"
)

// FarFuture is the sentinel representing "no upper bound" for relative
// (seconds-from-ZTP) times. The STN solver must treat arithmetic against it
// as saturating and must never let it degrade into NaN.
var FarFuture = math.Inf(1)

// FarFutureTime is the absolute-time encoding of "no upper bound" used on
// the wire (spec.md §3/§6: "9999-12-31T23:59:59").
var FarFutureTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// TransportationRequest carries pickup/delivery locations and the pickup
// window, per spec.md §3.
type TransportationRequest struct {
	PickupLocation   string
	DeliveryLocation string
	EarliestPickup   time.Time
	LatestPickup     time.Time
	HardConstraints  bool
}

// TimepointConstraint is a named absolute window, relative-to-ZTP once
// translated (§3, §4.2). EarliestTime/LatestTime hold the original absolute
// values; LatestUnbounded marks a "+inf" latest (far-future sentinel).
type TimepointConstraint struct {
	Name            string
	EarliestTime    time.Time
	LatestTime      time.Time
	LatestUnbounded bool
}

// InterTimepointConstraint is a named duration distribution (§3): at
// minimum travel_time and work_time.
type InterTimepointConstraint struct {
	Name     string
	Mean     float64
	Variance float64
}

// StandardDev is sqrt(Variance), matching the original's `standard_dev`
// property.
func (c InterTimepointConstraint) StandardDev() float64 {
	return math.Sqrt(c.Variance)
}

// TemporalConstraints bundles the two constraint lists plus the
// hard/soft-constraint flag (§3). OriginalHard is supplemented from the
// original source: it keeps the pre-relaxation value so an operator
// confirmation surface (out of scope here) can still show the task's
// original hard window after Round.GetResult flips Hard to false.
type TemporalConstraints struct {
	Hard                      bool
	OriginalHard              bool
	TimepointConstraints      []TimepointConstraint
	InterTimepointConstraints []InterTimepointConstraint
}

// Timepoint returns the named timepoint constraint, or false if absent.
func (c *TemporalConstraints) Timepoint(name string) (TimepointConstraint, bool) {
	for _, tc := range c.TimepointConstraints {
		if tc.Name == name {
			return tc, true
		}
	}
	return TimepointConstraint{}, false
}

// InterTimepoint returns the named inter-timepoint constraint, or false if
// absent.
func (c *TemporalConstraints) InterTimepoint(name string) (InterTimepointConstraint, bool) {
	for _, itc := range c.InterTimepointConstraints {
		if itc.Name == name {
			return itc, true
		}
	}
	return InterTimepointConstraint{}, false
}

// Task is identified by a stable unique id and carries a transportation
// request plus its temporal constraints bundle.
type Task struct {
	ID          string
	Request     TransportationRequest
	Constraints TemporalConstraints
	Status      Status
	// AssignedRobots is populated once the task is allocated.
	AssignedRobots []string
}

// NewFromRequest builds a Task the way the original source's
// Task.from_task classmethod does: a single "pickup" timepoint constraint
// from the request's pickup window, plus travel_time/work_time
// inter-timepoint constraints (work_time approximated from the pickup
// window width when the caller has no better estimate).
func NewFromRequest(id string, req TransportationRequest) Task {
	constraints := TemporalConstraints{
		Hard:         req.HardConstraints,
		OriginalHard: req.HardConstraints,
		TimepointConstraints: []TimepointConstraint{
			{
				Name:         "pickup",
				EarliestTime: req.EarliestPickup,
				LatestTime:   req.LatestPickup,
			},
		},
		InterTimepointConstraints: []InterTimepointConstraint{
			{Name: "travel_time", Mean: 0, Variance: 0},
			{
				Name:     "work_time",
				Mean:     req.LatestPickup.Sub(req.EarliestPickup).Seconds(),
				Variance: 0.1,
			},
		},
	}

	return Task{
		ID:          id,
		Request:     req,
		Constraints: constraints,
		Status:      StatusUnallocated,
	}
}

// SetSoftConstraints flips Hard to false while preserving OriginalHard,
// mirroring Task.set_soft_constraints in the original source.
func (t *Task) SetSoftConstraints() {
	t.Constraints.Hard = false
}

// Clone returns a deep copy, used whenever a task must be handed to a
// candidate timetable trial without aliasing the caller's slices.
func (t Task) Clone() Task {
	clone := t
	clone.Constraints.TimepointConstraints = append([]TimepointConstraint(nil), t.Constraints.TimepointConstraints...)
	clone.Constraints.InterTimepointConstraints = append([]InterTimepointConstraint(nil), t.Constraints.InterTimepointConstraints...)
	clone.AssignedRobots = append([]string(nil), t.AssignedRobots...)
	return clone
}
