// Package resourcemanager is the composition root that wires one
// Auctioneer and its fleet of Bidders onto a shared bus, mirroring the
// teacher's pkg/scheduler.Manager role of owning the allocation core's
// long-running components and driving its tick loop.
package resourcemanager

import (
	"context"
	"time"

	"github.com/mrta-fleet/auction/internal/config"
	"github.com/mrta-fleet/auction/pkg/auctioneer"
	"github.com/mrta-fleet/auction/pkg/bidder"
	"github.com/mrta-fleet/auction/pkg/bidding"
	"github.com/mrta-fleet/auction/pkg/bus"
	"github.com/mrta-fleet/auction/pkg/logging"
	"github.com/mrta-fleet/auction/pkg/task"
	"github.com/mrta-fleet/auction/pkg/timetable"
)

// Manager owns the Auctioneer, one Bidder per robot, and the bus that
// connects them.
type Manager struct {
	Bus        bus.Bus
	Auctioneer *auctioneer.Auctioneer
	Bidders    map[string]*bidder.Bidder
	Log        *logging.Logger

	tickInterval time.Duration
}

// New builds a Manager for the given robot ids, all sharing a single
// in-process Local bus, with one Bidder per robot and a central
// Auctioneer (spec.md §4.1's fleet topology).
func New(cfg *config.Config, robotIDs []string, ztp time.Time, log *logging.Logger) (*Manager, error) {
	if log == nil {
		log = logging.Nop()
	}

	rule, err := bidding.New(cfg.Bidding.Robustness, cfg.Bidding.Temporal)
	if err != nil {
		return nil, err
	}

	b := bus.NewLocal()
	auc := auctioneer.New(robotIDs, ztp, cfg.Round.RoundTime, cfg.Round.AlternativeTimeslots, cfg.STN.KSigma, b, log.With("component", "auctioneer"))

	bidders := make(map[string]*bidder.Bidder, len(robotIDs))
	for _, id := range robotIDs {
		tt := timetable.New(id, ztp, cfg.STN.KSigma)
		bidders[id] = bidder.New(id, tt, rule, b, log.With("robot_id", id))
	}

	return &Manager{
		Bus:          b,
		Auctioneer:   auc,
		Bidders:      bidders,
		Log:          log,
		tickInterval: cfg.Round.RoundTime,
	}, nil
}

// SubmitTask enqueues a transportation request for the next round.
func (m *Manager) SubmitTask(tk task.Task) {
	m.Auctioneer.AddTask(tk)
}

// Run drives the Auctioneer's Tick on a fixed interval until ctx is
// cancelled, the way the teacher's long-running services loop on a
// ticker until shutdown.
func (m *Manager) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if err := m.Auctioneer.Tick(ctx, now); err != nil {
				m.Log.Error().Err(err).Msg("tick failed")
			}
		}
	}
}
