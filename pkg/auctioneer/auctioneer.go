// Package auctioneer implements the central orchestrator of spec.md §4.6:
// it owns the pending task queue, a mirror of every robot's timetable, and
// drives the round state machine via a periodic Tick.
package auctioneer

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/mrta-fleet/auction/pkg/bus"
	coreerrors "github.com/mrta-fleet/auction/pkg/errors"
	"github.com/mrta-fleet/auction/pkg/logging"
	"github.com/mrta-fleet/auction/pkg/messages"
	"github.com/mrta-fleet/auction/pkg/round"
	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

// Allocation is a completed, confirmed task assignment.
type Allocation struct {
	TaskID   string
	RobotID  string
	Position int
}

// PendingConfirmation records a task allocated only under relaxed
// (soft) temporal constraints, awaiting operator confirmation of the
// alternative start time (spec.md §4.6, §9 Open Question (c)).
type PendingConfirmation struct {
	TaskID           string
	RobotID          string
	AlternativeStart float64
}

// Auctioneer is the allocation core's orchestrator.
type Auctioneer struct {
	RobotIDs             []string
	Timetables           map[string]*timetable.Timetable // mirrored, keyed by robot id
	TasksToAllocate       map[string]task.Task
	ZeroTimepoint         time.Time
	RoundTime             time.Duration
	AlternativeTimeslots  bool
	KSigma                float64

	Bus bus.Bus
	Log *logging.Logger

	Round *round.Round

	Allocations          []Allocation
	WaitingForConfirmation []PendingConfirmation

	finishedRobots map[string]bool
}

// New builds an Auctioneer mirroring one empty Timetable per robot.
func New(robotIDs []string, ztp time.Time, roundTime time.Duration, alternativeTimeslots bool, kSigma float64, b bus.Bus, log *logging.Logger) *Auctioneer {
	if log == nil {
		log = logging.Nop()
	}
	tt := make(map[string]*timetable.Timetable, len(robotIDs))
	for _, id := range robotIDs {
		tt[id] = timetable.New(id, ztp, kSigma)
	}

	a := &Auctioneer{
		RobotIDs:             robotIDs,
		Timetables:           tt,
		TasksToAllocate:      make(map[string]task.Task),
		ZeroTimepoint:        ztp,
		RoundTime:            roundTime,
		AlternativeTimeslots: alternativeTimeslots,
		KSigma:               kSigma,
		Bus:                  b,
		Log:                  log,
		finishedRobots:       make(map[string]bool),
	}

	b.SubscribeBid(a.handleBid)
	b.SubscribeFinishRound(a.handleFinishRound)
	return a
}

// AddTask enqueues a transportation request for future announcement.
func (a *Auctioneer) AddTask(tk task.Task) {
	a.TasksToAllocate[tk.ID] = tk
}

// Tick drives the round state machine forward one step (spec.md §4.6):
//
//   - no round open and tasks pending: open a fresh round and announce it
//   - round open past its closure deadline: close it, elect a winner,
//     apply the allocation to the mirrored timetables, and broadcast it
//   - round finished (every winner has published FINISH-ROUND, or the
//     round allocated no task): retire the round so the next Tick can
//     open a new one
func (a *Auctioneer) Tick(ctx context.Context, now time.Time) error {
	if a.Round == nil {
		if len(a.TasksToAllocate) == 0 {
			return nil
		}
		return a.openRound(ctx, now)
	}

	if a.Round.Opened {
		if a.Round.TimeToClose(now) {
			return a.closeRound(ctx)
		}
		return nil
	}

	if !a.Round.Finished {
		return nil
	}

	a.Round = nil
	return nil
}

func (a *Auctioneer) openRound(ctx context.Context, now time.Time) error {
	r := round.New(a.TasksToAllocate, a.RoundTime, len(a.RobotIDs), a.AlternativeTimeslots)
	r.Start(now)
	a.Round = r
	a.finishedRobots = make(map[string]bool)

	tasks := make(map[string]messages.TaskDict, len(a.TasksToAllocate))
	for id, tk := range a.TasksToAllocate {
		tasks[id] = toTaskDict(tk)
	}

	ann := messages.TaskAnnouncement{
		Header:                 messages.NewHeader(messages.TypeTaskAnnouncement, now),
		RoundID:                r.ID,
		ZeroTimepoint:          a.ZeroTimepoint,
		EarliestAdmissibleTime: now,
		Tasks:                  tasks,
	}

	a.Log.Info().Str("round_id", r.ID).Int("n_tasks", len(tasks)).Msg("round opened")
	return a.Bus.PublishTaskAnnouncement(ctx, ann)
}

func (a *Auctioneer) closeRound(ctx context.Context) error {
	result, err := a.Round.GetResult()
	if err != nil {
		var ae *coreerrors.AllocationError
		if stderrors.As(err, &ae) && ae.Kind == coreerrors.KindAlternativeTimeSlot {
			a.WaitingForConfirmation = append(a.WaitingForConfirmation, PendingConfirmation{
				TaskID:           ae.TaskID,
				RobotID:          ae.RobotID,
				AlternativeStart: ae.AlternativeStart,
			})
			a.Log.Warn().Str("task_id", ae.TaskID).Str("robot_id", ae.RobotID).Float64("alternative_start", ae.AlternativeStart).
				Msg("task allocated at alternative time slot, awaiting confirmation")
			a.Round.Finish()
			return nil
		}
		if coreerrors.Is(err, coreerrors.KindNoAllocation) {
			a.Log.Warn().Str("round_id", a.Round.ID).Msg("round closed with no allocation")
			a.Round.Finish()
			return nil
		}
		return err
	}

	// update_timetable re-applies the same deterministic insertion the
	// winning Bidder already tried, rather than trusting the bid's
	// snapshot directly, so the mirror matches the robot's own timetable
	// by construction (spec.md §8 P3) rather than by copying.
	tt := a.Timetables[result.RobotID]
	if err := tt.AddTask(result.Task, result.Position); err != nil {
		return err
	}
	if _, err := tt.SolveSTP(); err != nil {
		_ = tt.RemoveTask(result.Position)
		return err
	}

	a.Allocations = append(a.Allocations, Allocation{
		TaskID:   result.Task.ID,
		RobotID:  result.RobotID,
		Position: result.Position,
	})

	a.Log.Info().Str("round_id", a.Round.ID).Str("task_id", result.Task.ID).Str("robot_id", result.RobotID).Msg("task allocated")

	return a.Bus.PublishAllocation(ctx, messages.Allocation{
		Header:  messages.NewHeader(messages.TypeAllocation, time.Now()),
		TaskID:  result.Task.ID,
		RobotID: result.RobotID,
	})
}

// toTaskDict converts a Task into its wire TaskDict, mirroring decodeTask's
// inverse in pkg/bidder.
func toTaskDict(tk task.Task) messages.TaskDict {
	td := messages.TaskDict{
		TaskID: tk.ID,
		Request: messages.RequestDict{
			PickupLocation:   tk.Request.PickupLocation,
			DeliveryLocation: tk.Request.DeliveryLocation,
			EarliestPickup:   tk.Request.EarliestPickup,
			LatestPickup:     tk.Request.LatestPickup,
			HardConstraints:  tk.Request.HardConstraints,
		},
		Constraints: messages.ConstraintsDict{
			Hard: tk.Constraints.Hard,
		},
	}
	for _, tc := range tk.Constraints.TimepointConstraints {
		latest := tc.LatestTime
		if tc.LatestUnbounded {
			latest = task.FarFutureTime
		}
		td.Constraints.TimepointConstraints = append(td.Constraints.TimepointConstraints, messages.TimepointConstraintDict{
			Name:         tc.Name,
			EarliestTime: tc.EarliestTime,
			LatestTime:   latest,
		})
	}
	for _, itc := range tk.Constraints.InterTimepointConstraints {
		td.Constraints.InterTimepointConstraints = append(td.Constraints.InterTimepointConstraints, messages.InterTimepointConstraintDict{
			Name:     itc.Name,
			Mean:     itc.Mean,
			Variance: itc.Variance,
		})
	}
	return td
}

// handleBid forwards a published bid into the currently open round.
func (a *Auctioneer) handleBid(ctx context.Context, bid messages.Bid) {
	if a.Round == nil {
		return
	}
	a.Round.ProcessBid(bid)
}

// handleFinishRound marks the current round Finished on the first
// FINISH-ROUND it receives (only the winning robot publishes one), matching
// the original source's round lifecycle where FINISH-ROUND from the winner
// is the terminal signal. The next Tick then retires the round.
func (a *Auctioneer) handleFinishRound(ctx context.Context, fr messages.FinishRound) {
	if a.Round == nil {
		return
	}
	a.finishedRobots[fr.RobotID] = true
	a.Round.Finish()
}
