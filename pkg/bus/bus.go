// Package bus defines the publish/subscribe transport boundary (spec.md §6:
// the bus itself is an external collaborator, only its interface to the
// core is specified here) plus an in-process implementation used for
// testing and for wiring an Auctioneer to its Bidders within one process.
//
// Shaped after the teacher's pkg/p2p/messaging.MessageRouter: topic-keyed
// handler registration and per-topic fan-out, trimmed to the single-process
// case since the network transport itself is out of scope for this core.
// There is no message queue and no config struct: Local delivers each
// message synchronously.
package bus

import (
	"context"
	"sync"

	"github.com/mrta-fleet/auction/pkg/messages"
)

// TaskAnnouncementHandler is invoked once per published TASK-ANNOUNCEMENT.
type TaskAnnouncementHandler func(ctx context.Context, msg messages.TaskAnnouncement)

// BidHandler is invoked once per published BID.
type BidHandler func(ctx context.Context, msg messages.Bid)

// AllocationHandler is invoked once per published ALLOCATION.
type AllocationHandler func(ctx context.Context, msg messages.Allocation)

// FinishRoundHandler is invoked once per published FINISH-ROUND.
type FinishRoundHandler func(ctx context.Context, msg messages.FinishRound)

// Bus is the publish/subscribe boundary the Auctioneer and Bidders talk to.
// Implementations may be in-process (Local, below) or a real transport.
type Bus interface {
	PublishTaskAnnouncement(ctx context.Context, msg messages.TaskAnnouncement) error
	PublishBid(ctx context.Context, msg messages.Bid) error
	PublishAllocation(ctx context.Context, msg messages.Allocation) error
	PublishFinishRound(ctx context.Context, msg messages.FinishRound) error

	SubscribeTaskAnnouncement(h TaskAnnouncementHandler)
	SubscribeBid(h BidHandler)
	SubscribeAllocation(h AllocationHandler)
	SubscribeFinishRound(h FinishRoundHandler)
}

// Local is an in-process Bus: every Publish synchronously fans out to every
// currently registered handler for that topic, on the caller's goroutine —
// matching the single-threaded cooperative model of spec.md §5 (Auctioneer
// and Bidder ticks/callbacks never run concurrently with each other in the
// reference deployment; Local makes that the literal behaviour for tests).
type Local struct {
	mu sync.RWMutex

	announcementHandlers []TaskAnnouncementHandler
	bidHandlers          []BidHandler
	allocationHandlers   []AllocationHandler
	finishRoundHandlers  []FinishRoundHandler
}

// NewLocal creates an empty in-process bus.
func NewLocal() *Local {
	return &Local{}
}

func (b *Local) PublishTaskAnnouncement(ctx context.Context, msg messages.TaskAnnouncement) error {
	b.mu.RLock()
	handlers := append([]TaskAnnouncementHandler(nil), b.announcementHandlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

func (b *Local) PublishBid(ctx context.Context, msg messages.Bid) error {
	b.mu.RLock()
	handlers := append([]BidHandler(nil), b.bidHandlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

func (b *Local) PublishAllocation(ctx context.Context, msg messages.Allocation) error {
	b.mu.RLock()
	handlers := append([]AllocationHandler(nil), b.allocationHandlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

func (b *Local) PublishFinishRound(ctx context.Context, msg messages.FinishRound) error {
	b.mu.RLock()
	handlers := append([]FinishRoundHandler(nil), b.finishRoundHandlers...)
	b.mu.RUnlock()
	for _, h := range handlers {
		h(ctx, msg)
	}
	return nil
}

func (b *Local) SubscribeTaskAnnouncement(h TaskAnnouncementHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.announcementHandlers = append(b.announcementHandlers, h)
}

func (b *Local) SubscribeBid(h BidHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bidHandlers = append(b.bidHandlers, h)
}

func (b *Local) SubscribeAllocation(h AllocationHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.allocationHandlers = append(b.allocationHandlers, h)
}

func (b *Local) SubscribeFinishRound(h FinishRoundHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.finishRoundHandlers = append(b.finishRoundHandlers, h)
}
