// Package messages defines the wire types exchanged over the pub/sub bus:
// TASK-ANNOUNCEMENT, BID, ALLOCATION and FINISH-ROUND, each wrapped in the
// header the spec mandates (type, metamodel, msgId, timestamp), grounded on
// the teacher's pkg/p2p/messaging.Message envelope.
package messages

import (
	"time"

	"github.com/google/uuid"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

// Type enumerates the four message types the bus carries for this core.
type Type string

const (
	TypeTaskAnnouncement Type = "TASK-ANNOUNCEMENT"
	TypeBid              Type = "BID"
	TypeAllocation       Type = "ALLOCATION"
	TypeFinishRound      Type = "FINISH-ROUND"
)

// Metamodel is the schema identifier carried on every header, matching the
// source's "ropod-msg-schema.json" convention.
const Metamodel = "mrta-msg-schema.json"

// Header is carried by every message on the bus.
type Header struct {
	Type      Type      `json:"type"`
	Metamodel string    `json:"metamodel"`
	MsgID     string    `json:"msgId"`
	Timestamp int64     `json:"timestamp"`
}

// NewHeader stamps a fresh header for the given type at now.
func NewHeader(t Type, now time.Time) Header {
	return Header{
		Type:      t,
		Metamodel: Metamodel,
		MsgID:     uuid.NewString(),
		Timestamp: now.UnixMilli(),
	}
}

// TaskAnnouncement is published by the Auctioneer to all bidders when a
// round opens.
type TaskAnnouncement struct {
	Header               Header             `json:"header"`
	RoundID               string             `json:"round_id"`
	ZeroTimepoint         time.Time          `json:"zero_timepoint"`
	EarliestAdmissibleTime time.Time         `json:"earliest_admissible_time"`
	Tasks                 map[string]TaskDict `json:"tasks"`
}

// TaskDict is the wire representation of a task carried in an announcement.
type TaskDict struct {
	TaskID      string            `json:"task_id"`
	Request     RequestDict       `json:"request"`
	Constraints ConstraintsDict   `json:"constraints"`
}

// RequestDict is the wire TransportationRequest.
type RequestDict struct {
	PickupLocation    string    `json:"pickup_location"`
	DeliveryLocation  string    `json:"delivery_location"`
	EarliestPickup    time.Time `json:"earliest_pickup_time"`
	LatestPickup      time.Time `json:"latest_pickup_time"`
	HardConstraints   bool      `json:"hard_constraints"`
}

// TimepointConstraintDict is the wire {name, earliest_time, latest_time}.
// Unbounded upper limits are encoded as the far-future sentinel.
type TimepointConstraintDict struct {
	Name         string    `json:"name"`
	EarliestTime time.Time `json:"earliest_time"`
	LatestTime   time.Time `json:"latest_time"`
}

// InterTimepointConstraintDict is the wire {name, mean, variance}.
type InterTimepointConstraintDict struct {
	Name     string  `json:"name"`
	Mean     float64 `json:"mean"`
	Variance float64 `json:"variance"`
}

// ConstraintsDict is the wire TemporalConstraints bundle.
type ConstraintsDict struct {
	Hard                      bool                          `json:"hard"`
	TimepointConstraints      []TimepointConstraintDict      `json:"timepoint_constraints"`
	InterTimepointConstraints []InterTimepointConstraintDict `json:"inter_timepoint_constraints"`
}

// Bid is published by a Bidder to the Auctioneer, peer-directed. Timetable
// points to the complete candidate timetable, a deep copy of the bidder's
// timetable taken after the trial insertion, so the bidder can commit it
// verbatim on winning without replaying the insertion. The pointer itself
// is shared: on an in-process bus the bidder and the receiving round hold
// the same *timetable.Timetable.
type Bid struct {
	Header               Header               `json:"header"`
	RobotID               string               `json:"robot_id"`
	RoundID               string               `json:"round_id"`
	TaskID                string               `json:"task_id"`
	Position              int                  `json:"position"`
	RiskMetric            float64              `json:"risk_metric"`
	TemporalMetric        float64              `json:"temporal_metric"`
	AlternativeStartTime  *float64             `json:"alternative_start_time,omitempty"`
	HardConstraints       bool                 `json:"hard_constraints"`
	Timetable             *timetable.Timetable `json:"timetable"`
}

// Allocation is broadcast by the Auctioneer to claim a winning bid.
type Allocation struct {
	Header  Header `json:"header"`
	TaskID  string `json:"task_id"`
	RobotID string `json:"robot_id"`
}

// FinishRound is published by the winning Bidder once it has committed its
// timetable.
type FinishRound struct {
	Header  Header `json:"header"`
	RobotID string `json:"robot_id"`
}
