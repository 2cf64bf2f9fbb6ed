package main

import (
	"context"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/localmart/realtime/pkg/apperr"
)

type fakeSet struct {
	mu      sync.Mutex
	members map[string]map[string]bool
}

func newFakeSet() *fakeSet {
	return &fakeSet{members: make(map[string]map[string]bool)}
}

func (f *fakeSet) SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.members[key] == nil {
		f.members[key] = make(map[string]bool)
	}
	for _, m := range members {
		f.members[key][m.(string)] = true
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSet) SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range members {
		delete(f.members[key], m.(string))
	}
	return redis.NewIntResult(int64(len(members)), nil)
}

func (f *fakeSet) has(key, member string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.members[key][member]
}

func TestViewerPresenceRefcountsConnections(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeSet()
	p := newViewerPresence(rdb, zap.NewNop())

	// Two tabs of the same user join the same room.
	p.add(ctx, "dm:a:b", "b")
	p.add(ctx, "dm:a:b", "b")
	assert.True(t, rdb.has("room:dm:a:b:viewers", "b"))

	// First tab leaves; the user is still viewing.
	p.remove(ctx, "dm:a:b", "b")
	assert.True(t, rdb.has("room:dm:a:b:viewers", "b"))

	// Last tab leaves; presence clears.
	p.remove(ctx, "dm:a:b", "b")
	assert.False(t, rdb.has("room:dm:a:b:viewers", "b"))

	// Extra removes are harmless.
	p.remove(ctx, "dm:a:b", "b")
	assert.False(t, rdb.has("room:dm:a:b:viewers", "b"))
}

func TestRequireParticipant(t *testing.T) {
	assert.NoError(t, requireParticipant("dm:alice:bob", "alice"))

	err := requireParticipant("dm:alice:bob", "carol")
	assert.Equal(t, apperr.Forbidden, apperr.CodeOf(err))

	err = requireParticipant("not-a-room", "alice")
	assert.Equal(t, apperr.InvalidArgument, apperr.CodeOf(err))
}
