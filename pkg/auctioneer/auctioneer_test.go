package auctioneer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrta-fleet/auction/pkg/bidder"
	"github.com/mrta-fleet/auction/pkg/bidding"
	"github.com/mrta-fleet/auction/pkg/bus"
	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

func newRequest(ztp time.Time, earliestOffset, latestOffset time.Duration) task.TransportationRequest {
	return task.TransportationRequest{
		PickupLocation:   "dock-a",
		DeliveryLocation: "dock-b",
		EarliestPickup:   ztp.Add(earliestOffset),
		LatestPickup:     ztp.Add(latestOffset),
		HardConstraints:  true,
	}
}

func wireFleet(t *testing.T, ztp time.Time, robotIDs []string, roundTime time.Duration, altTimeslots bool) (*Auctioneer, *bus.Local) {
	t.Helper()
	rule, err := bidding.New("srea", "completion_time")
	require.NoError(t, err)

	b := bus.NewLocal()
	a := New(robotIDs, ztp, roundTime, altTimeslots, 2, b, nil)
	for _, id := range robotIDs {
		bidder.New(id, timetable.New(id, ztp, 2), rule, b, nil)
	}
	return a, b
}

// runUntilRetired drives Tick forward in RoundTime/4 increments until the
// auctioneer has no round in flight, or the step budget is exhausted.
func runUntilRetired(t *testing.T, a *Auctioneer, now time.Time, roundTime time.Duration, maxSteps int) time.Time {
	t.Helper()
	step := roundTime/4 + time.Millisecond
	for i := 0; i < maxSteps; i++ {
		require.NoError(t, a.Tick(context.Background(), now))
		if a.Round == nil && i > 0 {
			return now
		}
		now = now.Add(step)
	}
	t.Fatalf("round did not retire within %d steps", maxSteps)
	return now
}

func TestSingleFeasibleTaskIsAllocated(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	roundTime := 100 * time.Millisecond
	a, _ := wireFleet(t, ztp, []string{"robot_001"}, roundTime, false)

	tk := task.NewFromRequest("task-1", newRequest(ztp, time.Minute, 2*time.Hour))
	a.AddTask(tk)

	runUntilRetired(t, a, ztp, roundTime, 10)

	require.Len(t, a.Allocations, 1)
	require.Equal(t, "task-1", a.Allocations[0].TaskID)
	require.Equal(t, "robot_001", a.Allocations[0].RobotID)
	require.Equal(t, []string{"task-1"}, a.Timetables["robot_001"].GetTasks())
	require.Empty(t, a.TasksToAllocate)
}

func TestTwoRobotsTieBreakPrefersLowerRobotIndex(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	roundTime := 100 * time.Millisecond
	a, _ := wireFleet(t, ztp, []string{"robot_001", "robot_002"}, roundTime, false)

	// Both robots start empty, so both will produce identical bids; the
	// tie-break (lower robot index) must pick robot_001 deterministically.
	tk := task.NewFromRequest("task-1", newRequest(ztp, time.Minute, 2*time.Hour))
	a.AddTask(tk)

	runUntilRetired(t, a, ztp, roundTime, 10)

	require.Len(t, a.Allocations, 1)
	require.Equal(t, "robot_001", a.Allocations[0].RobotID)
}

func TestNoFeasibleInsertionYieldsNoAllocation(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	roundTime := 100 * time.Millisecond
	a, _ := wireFleet(t, ztp, []string{"robot_001"}, roundTime, false)

	tk := task.NewFromRequest("task-1", newRequest(ztp, 0, time.Second))
	tk.Constraints.InterTimepointConstraints[0] = task.InterTimepointConstraint{Name: "travel_time", Mean: 3600, Variance: 1}
	a.AddTask(tk)

	runUntilRetired(t, a, ztp, roundTime, 10)

	require.Empty(t, a.Allocations)
	require.Empty(t, a.Timetables["robot_001"].GetTasks())
}

func TestAlternativeTimeSlotEscalationWhenEnabled(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	roundTime := 100 * time.Millisecond
	a, _ := wireFleet(t, ztp, []string{"robot_001"}, roundTime, true)

	tk := task.NewFromRequest("task-1", newRequest(ztp, 0, time.Second))
	tk.Constraints.InterTimepointConstraints[0] = task.InterTimepointConstraint{Name: "travel_time", Mean: 3600, Variance: 1}
	a.AddTask(tk)

	// With AlternativeTimeslots on, the only robot's no-bid flips the task's
	// hard constraint to soft. The bidder never proposes an alternative start,
	// so the round still receives no finite bid and allocates nothing.
	runUntilRetired(t, a, ztp, roundTime, 10)

	require.Empty(t, a.Allocations)
	require.False(t, a.TasksToAllocate["task-1"].Constraints.Hard, "the universal no-bid must have flipped Hard to false")
}

func TestSequentialAllocationAcrossRounds(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	roundTime := 100 * time.Millisecond
	a, _ := wireFleet(t, ztp, []string{"robot_001"}, roundTime, false)

	tk1 := task.NewFromRequest("task-1", newRequest(ztp, time.Minute, time.Hour))
	a.AddTask(tk1)

	now := runUntilRetired(t, a, ztp, roundTime, 10)

	tk2 := task.NewFromRequest("task-2", newRequest(ztp, 2*time.Hour, 3*time.Hour))
	a.AddTask(tk2)

	runUntilRetired(t, a, now, roundTime, 10)

	require.Len(t, a.Allocations, 2)
	require.ElementsMatch(t, []string{"task-1", "task-2"}, []string{a.Allocations[0].TaskID, a.Allocations[1].TaskID})
	require.Len(t, a.Timetables["robot_001"].GetTasks(), 2)
}
