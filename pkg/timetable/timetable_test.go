package timetable

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrta-fleet/auction/pkg/task"
)

func sampleTask(id string, ztp time.Time, earliestOffset, latestOffset time.Duration) task.Task {
	req := task.TransportationRequest{
		PickupLocation:   "dock-a",
		DeliveryLocation: "dock-b",
		EarliestPickup:   ztp.Add(earliestOffset),
		LatestPickup:     ztp.Add(latestOffset),
		HardConstraints:  true,
	}
	tk := task.NewFromRequest(id, req)
	tk.Constraints.InterTimepointConstraints[0] = task.InterTimepointConstraint{Name: "travel_time", Mean: 30, Variance: 4}
	return tk
}

func TestAddTaskThenSolveProducesBounds(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := New("robot-1", ztp, 2)

	tk := sampleTask("task-1", ztp, time.Minute, 2*time.Hour)
	require.NoError(t, tt.AddTask(tk, 1))

	dg, err := tt.SolveSTP()
	require.NoError(t, err)
	require.NotNil(t, dg)

	lb, err := dg.GetTime("task-1", "start", true)
	require.NoError(t, err)
	require.GreaterOrEqual(t, lb, 0.0)
}

func TestRemoveAfterFailedInsertionRestoresSTN(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := New("robot-1", ztp, 2)

	// A pickup window that closes before the travel time's lower bound can
	// be met is infeasible.
	tk := sampleTask("task-1", ztp, 0, time.Second)
	tk.Constraints.InterTimepointConstraints[0] = task.InterTimepointConstraint{Name: "travel_time", Mean: 3600, Variance: 1}

	require.NoError(t, tt.AddTask(tk, 1))
	_, err := tt.SolveSTP()
	require.Error(t, err)

	require.NoError(t, tt.RemoveTask(1))
	require.Equal(t, 0, tt.STN.Len())
}

func TestCloneDoesNotShareSTN(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := New("robot-1", ztp, 2)
	tk := sampleTask("task-1", ztp, time.Minute, time.Hour)
	require.NoError(t, tt.AddTask(tk, 1))

	clone := tt.Clone()
	require.NoError(t, clone.RemoveTask(1))

	require.Equal(t, 1, tt.STN.Len())
	require.Equal(t, 0, clone.STN.Len())
	require.Nil(t, clone.DispatchableGraph)
}

func TestUnboundedLatestPickupTranslatesToFarFuture(t *testing.T) {
	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := New("robot-1", ztp, 2)

	tk := sampleTask("task-1", ztp, time.Minute, time.Minute)
	for i, tc := range tk.Constraints.TimepointConstraints {
		if tc.Name == "pickup" {
			tk.Constraints.TimepointConstraints[i].LatestTime = task.FarFutureTime
			tk.Constraints.TimepointConstraints[i].LatestUnbounded = true
		}
	}

	require.NoError(t, tt.AddTask(tk, 1))
	dg, err := tt.SolveSTP()
	require.NoError(t, err)

	ub, err := dg.GetTime("task-1", "start", false)
	require.NoError(t, err)
	require.True(t, math.IsInf(ub, 1))
}
