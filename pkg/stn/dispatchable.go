package stn

import "fmt"

// DispatchableGraph is the APSP-minimised (every edge tight) form of an
// STN, produced only by a successful Solve (spec.md §3, §4.1).
type DispatchableGraph struct {
	dist      *matrix
	names     []string // node index -> name ("ZTP", "nav_1", "start_1", ...)
	taskIndex []string // position (0-indexed) -> task id
}

// GetTime returns the earliest (or latest, if isLowerBound is false)
// feasible time of timepointName for taskID, in seconds from ZTP.
//
// The tightened distance from ZTP (node 0) to a node X is -dist[X][0] for
// the lower bound and dist[0][X] for the upper bound, since the
// dispatchable graph is APSP-tight: dist[0][X] is the minimal upper bound
// on X-ZTP and dist[X][0] is the minimal upper bound on ZTP-X (i.e. -lb).
func (g *DispatchableGraph) GetTime(taskID, timepointName string, isLowerBound bool) (float64, error) {
	idx, err := g.nodeIndex(taskID, timepointName)
	if err != nil {
		return 0, err
	}
	if isLowerBound {
		return -g.dist.get(idx, 0), nil
	}
	return g.dist.get(0, idx), nil
}

func (g *DispatchableGraph) nodeIndex(taskID, timepointName string) (int, error) {
	position := -1
	for i, id := range g.taskIndex {
		if id == taskID {
			position = i
			break
		}
	}
	if position < 0 {
		return 0, fmt.Errorf("task %s not found in dispatchable graph", taskID)
	}
	want := fmt.Sprintf("%s_%d", timepointName, position+1)
	for idx, name := range g.names {
		if name == want {
			return idx, nil
		}
	}
	return 0, fmt.Errorf("timepoint %s not found for task %s", timepointName, taskID)
}

// Makespan returns the tightened upper bound on the last task's finish
// time, or 0 if the graph has no tasks. Used by the "completion_time" and
// "makespan" temporal-metric policies (spec.md §4.3).
func (g *DispatchableGraph) Makespan() float64 {
	if len(g.taskIndex) == 0 {
		return 0
	}
	last := len(g.taskIndex) - 1
	t, err := g.GetTime(g.taskIndex[last], "finish", false)
	if err != nil {
		return 0
	}
	return t
}

// Slack returns the tightened [lower, upper] window width at the start
// node of taskID — upper-bound minus lower-bound — used as the basis for
// risk-metric policies (spec.md §4.3).
func (g *DispatchableGraph) Slack(taskID string) (float64, error) {
	lb, err := g.GetTime(taskID, "start", true)
	if err != nil {
		return 0, err
	}
	ub, err := g.GetTime(taskID, "start", false)
	if err != nil {
		return 0, err
	}
	if Far == ub {
		return Far, nil
	}
	return ub - lb, nil
}
