// Package round implements the auction round state machine of spec.md
// §4.5: Fresh -> Open -> Closed -> Finished, bid aggregation, and winner
// election.
package round

import (
	"math"
	"strconv"
	"strings"
	"time"

	coreerrors "github.com/mrta-fleet/auction/pkg/errors"
	"github.com/mrta-fleet/auction/pkg/messages"
	"github.com/mrta-fleet/auction/pkg/task"

	"github.com/google/uuid"
)

// Round is one auction iteration; it allocates at most one task.
type Round struct {
	ID                   string
	TasksToAllocate      map[string]task.Task
	RoundTime            time.Duration
	NRobots              int // fixed at New, not read live, per original_source/mrs (§12 of SPEC_FULL.md)
	AlternativeTimeslots bool

	OpenTime    time.Time
	ClosureTime time.Time

	Opened   bool
	Finished bool

	ReceivedBids   map[string]messages.Bid // task_id -> best bid so far
	ReceivedNoBids map[string]int          // task_id -> count
}

// New constructs a fresh Round: finished=true, opened=false (invariant I3),
// stamped with a fresh round id the way the original source's
// Round.__init__ does.
func New(tasksToAllocate map[string]task.Task, roundTime time.Duration, nRobots int, alternativeTimeslots bool) *Round {
	return &Round{
		ID:                   uuid.NewString(),
		TasksToAllocate:      tasksToAllocate,
		RoundTime:            roundTime,
		NRobots:              nRobots,
		AlternativeTimeslots: alternativeTimeslots,
		Finished:             true,
		Opened:               false,
		ReceivedBids:         make(map[string]messages.Bid),
		ReceivedNoBids:       make(map[string]int),
	}
}

// Start transitions Fresh -> Open, recording the open time and computing
// the closure deadline.
func (r *Round) Start(now time.Time) {
	r.OpenTime = now
	r.ClosureTime = now.Add(r.RoundTime)
	r.Finished = false
	r.Opened = true
}

// isNoBid reports whether a bid's cost is (+inf, +inf).
func isNoBid(b messages.Bid) bool {
	return math.IsInf(b.RiskMetric, 1) && math.IsInf(b.TemporalMetric, 1)
}

// less is the total order on bid cost: lexicographic on (risk, temporal),
// +inf larger than any finite value (spec.md §3).
func less(a, b messages.Bid) bool {
	if a.RiskMetric != b.RiskMetric {
		return a.RiskMetric < b.RiskMetric
	}
	return a.TemporalMetric < b.TemporalMetric
}

func equalCost(a, b messages.Bid) bool {
	return a.RiskMetric == b.RiskMetric && a.TemporalMetric == b.TemporalMetric
}

// robotIndex parses the integer suffix of a robot id ("r_002" -> 2), per
// spec.md §4.5's update_task_bid tie-break.
func robotIndex(robotID string) int {
	parts := strings.Split(robotID, "_")
	n, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0
	}
	return n
}

// updateTaskBid returns true iff newBid should replace oldBid: strictly
// lower cost, or equal cost with a lower robot index (spec.md §4.5).
func updateTaskBid(newBid, oldBid messages.Bid) bool {
	if less(newBid, oldBid) {
		return true
	}
	if equalCost(newBid, oldBid) && robotIndex(newBid.RobotID) < robotIndex(oldBid.RobotID) {
		return true
	}
	return false
}

// ProcessBid parses a Bid payload (spec.md §4.5). Bids received while the
// round is not Open are silently dropped (spec.md §5's ordering
// guarantee). A finite-cost bid is inserted or replaces the prior best bid
// for its task per updateTaskBid; an infinite-cost bid (no-bid) increments
// that task's no-bid counter.
func (r *Round) ProcessBid(bid messages.Bid) {
	if !r.Opened {
		return
	}

	if !isNoBid(bid) {
		if old, ok := r.ReceivedBids[bid.TaskID]; !ok || updateTaskBid(bid, old) {
			r.ReceivedBids[bid.TaskID] = bid
		}
		return
	}

	r.ReceivedNoBids[bid.TaskID]++
}

// TimeToClose reports whether now has reached the closure deadline and, if
// so, marks the round no longer Open (Open -> Closed). It returns true on
// every call past the deadline, whether or not the round was still Open.
func (r *Round) TimeToClose(now time.Time) bool {
	if now.Before(r.ClosureTime) {
		return false
	}
	r.Opened = false
	return true
}

// Result is the successful outcome of GetResult: the allocated task, the
// winning robot, the STN position it was bid for, and the tasks still
// pending after this one is removed.
type Result struct {
	Task            task.Task
	RobotID         string
	Position        int
	RemainingTasks  map[string]task.Task
}

// GetResult elects the round's winner (spec.md §4.5). Only valid once the
// round is Closed (opened=false, finished=false).
//
// If alternative timeslots are enabled and at least one no-bid was
// received, every task whose no-bid count equals NRobots has its hard
// constraint flipped to soft before election (P6). The task is popped from
// TasksToAllocate unconditionally once elected; if its winning bid still
// carries HardConstraints=false, GetResult returns an AlternativeTimeSlot
// error — the task is treated as committed pending operator confirmation,
// not requeued (spec.md §9 Open Question (c)).
func (r *Round) GetResult() (*Result, error) {
	if r.AlternativeTimeslots && len(r.ReceivedNoBids) > 0 {
		r.setSoftConstraints()
	}

	winner, ok := r.electWinner()
	if !ok {
		return nil, coreerrors.NoAllocation(r.ID)
	}

	allocatedTask, present := r.TasksToAllocate[winner.TaskID]
	if present {
		delete(r.TasksToAllocate, winner.TaskID)
	}

	if !winner.HardConstraints {
		var alt float64
		if winner.AlternativeStartTime != nil {
			alt = *winner.AlternativeStartTime
		}
		return nil, coreerrors.AlternativeTimeSlot(winner.TaskID, winner.RobotID, alt)
	}

	return &Result{
		Task:           allocatedTask,
		RobotID:        winner.RobotID,
		Position:       winner.Position,
		RemainingTasks: r.TasksToAllocate,
	}, nil
}

// setSoftConstraints flips hard_constraints to false for any task every
// robot no-bid on (spec.md §4.5, §8 P6).
func (r *Round) setSoftConstraints() {
	for taskID, n := range r.ReceivedNoBids {
		if n != r.NRobots {
			continue
		}
		t, ok := r.TasksToAllocate[taskID]
		if !ok {
			continue
		}
		t.SetSoftConstraints()
		r.TasksToAllocate[taskID] = t
	}
}

// electWinner returns the lowest-cost bid across all tasks, or false if no
// bid was ever received.
func (r *Round) electWinner() (messages.Bid, bool) {
	var lowest messages.Bid
	found := false
	for _, bid := range r.ReceivedBids {
		if !found || less(bid, lowest) {
			lowest = bid
			found = true
		}
	}
	return lowest, found
}

// Finish transitions Closed -> Finished (terminal).
func (r *Round) Finish() {
	r.Finished = true
}
