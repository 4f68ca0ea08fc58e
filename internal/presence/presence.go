// Package presence tracks which members currently hold a live
// subscription to each room, backed by redis sets with a TTL so crashed
// servers cannot leak phantom online members.
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyTTL = 120 * time.Second

// commands is the slice of the redis API the tracker uses; tests supply
// a fake.
type commands interface {
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// Tracker records online participants per room.
type Tracker struct {
	rdb commands
}

func NewTracker(rdb *redis.Client) *Tracker {
	return &Tracker{rdb: rdb}
}

func newTrackerWith(rdb commands) *Tracker {
	return &Tracker{rdb: rdb}
}

func roomKey(roomID int64) string {
	return fmt.Sprintf("presence:room:%d", roomID)
}

// Join marks the member online in the room.
func (t *Tracker) Join(ctx context.Context, roomID, memberID int64) error {
	key := roomKey(roomID)
	if err := t.rdb.SAdd(ctx, key, memberID).Err(); err != nil {
		return err
	}
	return t.rdb.Expire(ctx, key, keyTTL).Err()
}

// Leave marks the member offline in the room.
func (t *Tracker) Leave(ctx context.Context, roomID, memberID int64) error {
	return t.rdb.SRem(ctx, roomKey(roomID), memberID).Err()
}

// Refresh extends the room's presence key, called on the connection's
// ping cycle so live subscriptions outlast the TTL.
func (t *Tracker) Refresh(ctx context.Context, roomID int64) error {
	return t.rdb.Expire(ctx, roomKey(roomID), keyTTL).Err()
}

// Online returns the member ids currently live in the room.
func (t *Tracker) Online(ctx context.Context, roomID int64) ([]int64, error) {
	raw, err := t.rdb.SMembers(ctx, roomKey(roomID)).Result()
	if err != nil {
		return nil, err
	}

	members := make([]int64, 0, len(raw))
	for _, s := range raw {
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			continue
		}
		members = append(members, id)
	}
	return members, nil
}
