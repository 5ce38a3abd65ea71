// Package bidder implements the per-robot Bidder of spec.md §4.4: on every
// TASK-ANNOUNCEMENT it tries each insertion position against its own
// timetable, publishes the single cheapest bid (or a no-bid) per announced
// task, and on winning an ALLOCATION adopts the timetable snapshot it
// already computed and publishes FINISH-ROUND.
package bidder

import (
	"context"
	"math"
	"time"

	"github.com/mrta-fleet/auction/pkg/bidding"
	"github.com/mrta-fleet/auction/pkg/bus"
	"github.com/mrta-fleet/auction/pkg/logging"
	"github.com/mrta-fleet/auction/pkg/messages"
	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

// Bidder owns one robot's timetable and bidding rule.
type Bidder struct {
	RobotID   string
	Timetable *timetable.Timetable
	Rule      *bidding.Rule
	Bus       bus.Bus
	Log       *logging.Logger

	// placed retains, per task id, the bid this robot last placed so that a
	// subsequent ALLOCATION naming this robot can adopt the exact snapshot
	// already computed rather than recomputing the insertion.
	placed map[string]messages.Bid
}

// New wires a Bidder to the bus and subscribes its handlers.
func New(robotID string, tt *timetable.Timetable, rule *bidding.Rule, b bus.Bus, log *logging.Logger) *Bidder {
	if log == nil {
		log = logging.Nop()
	}
	bd := &Bidder{
		RobotID:   robotID,
		Timetable: tt,
		Rule:      rule,
		Bus:       b,
		Log:       log,
		placed:    make(map[string]messages.Bid),
	}
	b.SubscribeTaskAnnouncement(bd.HandleTaskAnnouncement)
	b.SubscribeAllocation(bd.HandleAllocation)
	return bd
}

// decodeTask turns an announcement's wire TaskDict into a task.Task, mirror
// of RequestDict/ConstraintsDict's field-by-field assembly (spec.md §3/§6).
func decodeTask(td messages.TaskDict) task.Task {
	constraints := task.TemporalConstraints{
		Hard:         td.Constraints.Hard,
		OriginalHard: td.Constraints.Hard,
	}
	for _, tc := range td.Constraints.TimepointConstraints {
		constraints.TimepointConstraints = append(constraints.TimepointConstraints, task.TimepointConstraint{
			Name:            tc.Name,
			EarliestTime:    tc.EarliestTime,
			LatestTime:      tc.LatestTime,
			LatestUnbounded: !tc.LatestTime.Before(task.FarFutureTime),
		})
	}
	for _, itc := range td.Constraints.InterTimepointConstraints {
		constraints.InterTimepointConstraints = append(constraints.InterTimepointConstraints, task.InterTimepointConstraint{
			Name:     itc.Name,
			Mean:     itc.Mean,
			Variance: itc.Variance,
		})
	}

	return task.Task{
		ID: td.TaskID,
		Request: task.TransportationRequest{
			PickupLocation:   td.Request.PickupLocation,
			DeliveryLocation: td.Request.DeliveryLocation,
			EarliestPickup:   td.Request.EarliestPickup,
			LatestPickup:     td.Request.LatestPickup,
			HardConstraints:  td.Request.HardConstraints,
		},
		Constraints: constraints,
		Status:      task.StatusUnallocated,
	}
}

// HandleTaskAnnouncement implements the Bidder's reaction to a round
// opening: it first refreshes its timetable's zero_timepoint from the
// announcement (spec.md §4.4: "on TASK-ANNOUNCEMENT, set
// timetable.zero_timepoint := announcement.zero_timepoint"), then for every
// announced task tries every admissible insertion position against this
// robot's own timetable and publishes the cheapest bid found, or a no-bid
// if every position was infeasible.
//
// Position 1 is skipped when the timetable's first task is already
// Scheduled — a committed task cannot be displaced (spec.md §4.4 edge
// case).
func (b *Bidder) HandleTaskAnnouncement(ctx context.Context, ann messages.TaskAnnouncement) {
	b.Timetable.ZeroTimepoint = ann.ZeroTimepoint

	n := b.Timetable.STN.Len()
	startPos := 1
	if b.Timetable.Scheduled && n > 0 {
		startPos = 2
	}

	for taskID, td := range ann.Tasks {
		tk := decodeTask(td)

		var best *bidding.Result
		bestPos := 0
		for pos := startPos; pos <= n+1; pos++ {
			res, err := b.Rule.ComputeBid(b.Timetable, tk, pos)
			if err != nil {
				b.Log.Debug().Str("robot_id", b.RobotID).Str("task_id", taskID).Int("position", pos).Err(err).Msg("position infeasible")
				continue
			}
			if best == nil || res.RiskMetric < best.RiskMetric ||
				(res.RiskMetric == best.RiskMetric && res.TemporalMetric < best.TemporalMetric) {
				best = res
				bestPos = pos
			}
		}

		bid := messages.Bid{
			Header:          messages.NewHeader(messages.TypeBid, time.Now()),
			RobotID:         b.RobotID,
			RoundID:         ann.RoundID,
			TaskID:          taskID,
			HardConstraints: tk.Constraints.Hard,
		}
		if best == nil {
			bid.RiskMetric = math.Inf(1)
			bid.TemporalMetric = math.Inf(1)
			b.Log.Debug().Str("robot_id", b.RobotID).Str("task_id", taskID).Msg("no feasible insertion, no-bid")
		} else {
			bid.Position = bestPos
			bid.RiskMetric = best.RiskMetric
			bid.TemporalMetric = best.TemporalMetric
			bid.Timetable = best.Snapshot
		}

		b.placed[taskID] = bid
		if err := b.Bus.PublishBid(ctx, bid); err != nil {
			b.Log.Warn().Str("robot_id", b.RobotID).Str("task_id", taskID).Err(err).Msg("failed to publish bid")
		}
	}
}

// HandleAllocation implements the winning Bidder's reaction to its own
// ALLOCATION: adopt the exact timetable snapshot it computed for its
// placed bid, then publish FINISH-ROUND (spec.md §4.4).
func (b *Bidder) HandleAllocation(ctx context.Context, alloc messages.Allocation) {
	if alloc.RobotID != b.RobotID {
		return
	}

	bid, ok := b.placed[alloc.TaskID]
	if !ok || bid.Timetable == nil {
		b.Log.Warn().Str("robot_id", b.RobotID).Str("task_id", alloc.TaskID).Msg("allocation won with no retained bid snapshot")
		return
	}

	b.Timetable = bid.Timetable
	delete(b.placed, alloc.TaskID)

	if err := b.Bus.PublishFinishRound(ctx, messages.FinishRound{
		Header:  messages.NewHeader(messages.TypeFinishRound, time.Now()),
		RobotID: b.RobotID,
	}); err != nil {
		b.Log.Warn().Str("robot_id", b.RobotID).Err(err).Msg("failed to publish finish-round")
	}
}
