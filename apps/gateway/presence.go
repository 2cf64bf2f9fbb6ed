package main

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// set is the slice of redis the presence mirror needs; *redis.Client
// satisfies it.
type set interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

// viewerPresence mirrors room membership into Redis sets so the messaging
// service, a separate process, can tell whether a participant is actively
// viewing a conversation when deciding to bump their unread counter.
//
// A user may hold several connections into the same room; the local
// refcount keeps the Redis entry alive until the last one leaves.
type viewerPresence struct {
	rdb    set
	logger *zap.Logger

	mu     sync.Mutex
	counts map[string]map[string]int // roomID -> userID -> live connections
}

func newViewerPresence(rdb set, logger *zap.Logger) *viewerPresence {
	return &viewerPresence{
		rdb:    rdb,
		logger: logger,
		counts: make(map[string]map[string]int),
	}
}

func viewersKey(roomID string) string { return "room:" + roomID + ":viewers" }

func (p *viewerPresence) add(ctx context.Context, roomID, userID string) {
	p.mu.Lock()
	if p.counts[roomID] == nil {
		p.counts[roomID] = make(map[string]int)
	}
	p.counts[roomID][userID]++
	first := p.counts[roomID][userID] == 1
	p.mu.Unlock()

	if !first {
		return
	}
	if err := p.rdb.SAdd(ctx, viewersKey(roomID), userID).Err(); err != nil {
		p.logger.Warn("failed to set viewer presence",
			zap.String("room", roomID),
			zap.String("user", userID),
			zap.Error(err))
	}
}

func (p *viewerPresence) remove(ctx context.Context, roomID, userID string) {
	p.mu.Lock()
	users := p.counts[roomID]
	if users == nil || users[userID] == 0 {
		p.mu.Unlock()
		return
	}
	users[userID]--
	last := users[userID] == 0
	if last {
		delete(users, userID)
		if len(users) == 0 {
			delete(p.counts, roomID)
		}
	}
	p.mu.Unlock()

	if !last {
		return
	}
	if err := p.rdb.SRem(ctx, viewersKey(roomID), userID).Err(); err != nil {
		p.logger.Warn("failed to clear viewer presence",
			zap.String("room", roomID),
			zap.String("user", userID),
			zap.Error(err))
	}
}
