// Package bidding implements the pluggable bidding rule of spec.md §4.3: a
// pure function of (timetable, task, position) returning a
// (risk_metric, temporal_metric) cost pair, composed from two independently
// named policies — robustness and temporal — looked up in small registries,
// in the style of the teacher's named-function dispatch (e.g.
// pkg/scheduler/load_balancer.go's algorithm-by-name selection) rather than
// a subclass hierarchy (design note §9).
//
// Open Question (a) of spec.md §9 is resolved here: every temporal metric
// is expressed in seconds, uniformly.
package bidding

import (
	"fmt"

	"github.com/mrta-fleet/auction/pkg/stn"
	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

// Result is the outcome of trialling one (task, position): the metrics and
// the post-insertion timetable snapshot the Bid will carry if it wins.
type Result struct {
	RiskMetric     float64
	TemporalMetric float64
	Snapshot       *timetable.Timetable
}

// RiskMetricFunc scores the robustness of a solved dispatchable graph at
// taskID's start timepoint. Lower is more robust.
type RiskMetricFunc func(dg *stn.DispatchableGraph, taskID string) float64

// TemporalMetricFunc scores the temporal cost of inserting taskID, given the
// dispatchable graphs before and after insertion. Lower is cheaper.
type TemporalMetricFunc func(before, after *stn.DispatchableGraph, taskID string) float64

var riskMetrics = map[string]RiskMetricFunc{
	"srea": slackRisk(1),
	"dsc":  slackRisk(0.5),
	"fpc":  slackRisk(2),
}

var temporalMetrics = map[string]TemporalMetricFunc{
	"completion_time": completionTimeMetric,
	"makespan":        makespanMetric,
	"idle_time":       idleTimeMetric,
}

// slackRisk builds a risk metric from dispatchable-graph slack at the
// task's start node: 1/(1+weight*slack). Higher slack (more scheduling
// room) yields a lower, more attractive risk score; weight lets the three
// named robustness policies differ in how aggressively they reward slack,
// standing in for the source's distinct stochastic-controllability solvers
// (srea/dsc/fpc), which are themselves outside this core's scope — the STN
// solver is an oracle here (spec.md §1).
func slackRisk(weight float64) RiskMetricFunc {
	return func(dg *stn.DispatchableGraph, taskID string) float64 {
		slack, err := dg.Slack(taskID)
		if err != nil {
			return task.FarFuture
		}
		if slack == stn.Far {
			return 0
		}
		return 1 / (1 + weight*slack)
	}
}

// completionTimeMetric is the marginal makespan added by the insertion, in
// seconds.
func completionTimeMetric(before, after *stn.DispatchableGraph, taskID string) float64 {
	return after.Makespan() - before.Makespan()
}

// makespanMetric is the absolute makespan after insertion, in seconds.
func makespanMetric(before, after *stn.DispatchableGraph, taskID string) float64 {
	return after.Makespan()
}

// idleTimeMetric is the gap between the robot's prior commitments finishing
// (before's makespan) and the inserted task's earliest feasible start: how
// long the robot would sit idle waiting for this task rather than starting
// it immediately.
func idleTimeMetric(before, after *stn.DispatchableGraph, taskID string) float64 {
	start, err := after.GetTime(taskID, "start", true)
	if err != nil {
		return task.FarFuture
	}
	idle := start - before.Makespan()
	if idle < 0 {
		return 0
	}
	return idle
}

// Rule is a bound (robustness, temporal) policy pair.
type Rule struct {
	Robustness string
	Temporal   string
}

// New validates the two policy names against the registries and returns a
// Rule, or an error naming the unknown policy.
func New(robustness, temporal string) (*Rule, error) {
	if _, ok := riskMetrics[robustness]; !ok {
		return nil, fmt.Errorf("unknown robustness policy %q", robustness)
	}
	if _, ok := temporalMetrics[temporal]; !ok {
		return nil, fmt.Errorf("unknown temporal policy %q", temporal)
	}
	return &Rule{Robustness: robustness, Temporal: temporal}, nil
}

// ComputeBid implements spec.md §4.3's four steps against tt, which is
// mutated and restored in place (insert, solve, snapshot, remove) so the
// caller's scratch timetable is unchanged on return — the "stateless
// trial" spec.md §4.4 requires of the Bidder's position loop.
//
// On infeasibility (InvalidPosition or NoSTPSolution) it returns a nil
// Result and the error; the caller treats any such error as "no bid for
// this position" and tries the next one.
func (r *Rule) ComputeBid(tt *timetable.Timetable, tk task.Task, position int) (*Result, error) {
	var before *stn.DispatchableGraph
	if tt.STN.Len() > 0 {
		var err error
		before, err = tt.STN.Clone().Solve()
		if err != nil {
			before = nil
		}
	}

	if err := tt.AddTask(tk, position); err != nil {
		return nil, err
	}

	after, err := tt.SolveSTP()
	if err != nil {
		_ = tt.RemoveTask(position)
		return nil, err
	}

	if before == nil {
		// No prior commitments: an empty graph, whose makespan is 0.
		before = &stn.DispatchableGraph{}
	}

	risk := riskMetrics[r.Robustness](after, tk.ID)
	temporal := temporalMetrics[r.Temporal](before, after, tk.ID)

	snapshot := tt.Clone()

	if err := tt.RemoveTask(position); err != nil {
		return nil, err
	}
	// Restore the scratch's dispatchable graph to its pre-trial state so a
	// subsequent failed trial on this timetable cannot accidentally read a
	// stale post-insertion graph.
	if tt.STN.Len() > 0 {
		if dg, solveErr := tt.STN.Solve(); solveErr == nil {
			tt.DispatchableGraph = dg
		}
	} else {
		tt.DispatchableGraph = nil
	}

	return &Result{
		RiskMetric:     risk,
		TemporalMetric: temporal,
		Snapshot:       snapshot,
	}, nil
}
