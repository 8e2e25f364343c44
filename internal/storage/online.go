package storage

import (
	"context"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// OnlineTracker mirrors presence into redis with a TTL so external observers
// (admin tooling, future nodes) can see who is connected. The authoritative
// presence map stays in process; this mirror is purely observational and all
// writes are best-effort.
type OnlineTracker struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewOnlineTracker creates a tracker. rdb may be nil, in which case every
// method is a no-op.
func NewOnlineTracker(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *OnlineTracker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &OnlineTracker{rdb: rdb, ttl: ttl, logger: logger}
}

func onlineKey(userID string) string {
	return fmt.Sprintf("user:%s:online", userID)
}

// SetOnline marks a user online until the TTL lapses.
func (t *OnlineTracker) SetOnline(userID string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := t.rdb.Set(ctx, onlineKey(userID), "1", t.ttl).Err(); err != nil {
		t.logger.Warn("failed to mirror online status",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// Refresh extends a user's online TTL. Called on websocket pongs.
func (t *OnlineTracker) Refresh(userID string) {
	t.SetOnline(userID)
}

// SetOffline clears a user's online flag.
func (t *OnlineTracker) SetOffline(userID string) {
	if t.rdb == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := t.rdb.Del(ctx, onlineKey(userID)).Err(); err != nil {
		t.logger.Warn("failed to clear online status",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

// IsOnline reports the mirrored flag.
func (t *OnlineTracker) IsOnline(ctx context.Context, userID string) (bool, error) {
	if t.rdb == nil {
		return false, nil
	}
	n, err := t.rdb.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check online status for user %s: %w", userID, err)
	}
	return n > 0, nil
}
