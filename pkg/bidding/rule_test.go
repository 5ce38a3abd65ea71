package bidding

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
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

func TestNewRejectsUnknownPolicy(t *testing.T) {
	_, err := New("not-a-policy", "completion_time")
	require.Error(t, err)

	_, err = New("srea", "not-a-policy")
	require.Error(t, err)
}

func TestComputeBidLeavesTimetableUnchanged(t *testing.T) {
	rule, err := New("srea", "completion_time")
	require.NoError(t, err)

	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := timetable.New("robot-1", ztp, 2)

	tk := sampleTask("task-1", ztp, time.Minute, 2*time.Hour)
	result, err := rule.ComputeBid(tt, tk, 1)
	require.NoError(t, err)
	require.NotNil(t, result)
	require.Zero(t, tt.STN.Len(), "the scratch timetable must be restored after a trial")

	require.Equal(t, []string{"task-1"}, result.Snapshot.STN.GetTasks())
}

func TestComputeBidReturnsErrorOnInfeasibleInsertion(t *testing.T) {
	rule, err := New("srea", "completion_time")
	require.NoError(t, err)

	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	tt := timetable.New("robot-1", ztp, 2)

	tk := sampleTask("task-1", ztp, 0, time.Second)
	tk.Constraints.InterTimepointConstraints[0] = task.InterTimepointConstraint{Name: "travel_time", Mean: 3600, Variance: 1}

	_, err = rule.ComputeBid(tt, tk, 1)
	require.Error(t, err)
	require.Zero(t, tt.STN.Len())
}

func TestMoreSlackYieldsLowerRiskMetric(t *testing.T) {
	rule, err := New("srea", "completion_time")
	require.NoError(t, err)

	ztp := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	tight := timetable.New("robot-tight", ztp, 2)
	tightTask := sampleTask("task-tight", ztp, time.Minute, 2*time.Minute)
	tightResult, err := rule.ComputeBid(tight, tightTask, 1)
	require.NoError(t, err)

	loose := timetable.New("robot-loose", ztp, 2)
	looseTask := sampleTask("task-loose", ztp, time.Minute, 3*time.Hour)
	looseResult, err := rule.ComputeBid(loose, looseTask, 1)
	require.NoError(t, err)

	require.Greater(t, tightResult.RiskMetric, looseResult.RiskMetric)
}
