package property

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/mrta-fleet/auction/pkg/stn"
)

type insertOp struct {
	Earliest float64
	Width    float64
}

func (o insertOp) window(id string) stn.TaskWindow {
	return stn.TaskWindow{
		TaskID:         id,
		PickupEarliest: o.Earliest,
		PickupLatest:   o.Earliest + o.Width,
		TravelMean:     10,
		TravelVariance: 1,
		WorkMean:       20,
		WorkVariance:   1,
	}
}

func genInsertOps() gopter.Gen {
	return gen.SliceOfN(6, gen.Struct(reflect.TypeOf(insertOp{}), map[string]gopter.Gen{
		"Earliest": gen.Float64Range(0, 10000),
		"Width":    gen.Float64Range(200, 20000),
	}))
}

// TestSTNProperties checks invariants P4 (insert/remove is a round-trip) and
// P5 (positions stay contiguous 1..n) of spec.md §8.
func TestSTNProperties(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping property-based tests in short mode")
	}

	properties := gopter.NewProperties(nil)

	properties.Property("InsertRemoveRoundTrip", prop.ForAll(
		func(ops []insertOp) bool {
			return testInsertRemoveRoundTrip(ops)
		},
		genInsertOps(),
	))

	properties.Property("PositionsStayContiguous", prop.ForAll(
		func(ops []insertOp) bool {
			return testPositionsStayContiguous(ops)
		},
		genInsertOps(),
	))

	properties.TestingRun(t)
}

func testInsertRemoveRoundTrip(ops []insertOp) bool {
	s := stn.New(2)
	for i, op := range ops {
		before := s.GetTasks()
		if err := s.Insert(op.window(idFor(i)), i+1); err != nil {
			continue
		}
		if err := s.Remove(i + 1); err != nil {
			return false
		}
		after := s.GetTasks()
		if len(before) != len(after) {
			return false
		}
		for j := range before {
			if before[j] != after[j] {
				return false
			}
		}
	}
	return true
}

func testPositionsStayContiguous(ops []insertOp) bool {
	s := stn.New(2)
	n := 0
	for i, op := range ops {
		pos := (i % (n + 1)) + 1
		if err := s.Insert(op.window(idFor(i)), pos); err != nil {
			continue
		}
		n++
		if len(s.GetTasks()) != n {
			return false
		}
	}
	return true
}

func idFor(i int) string {
	return "t" + string(rune('a'+i))
}
