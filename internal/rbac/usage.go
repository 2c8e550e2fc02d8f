package rbac

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// UsageRecord captures the outcome of one permission check.
type UsageRecord struct {
	UserID     int64
	Permission string
	Granted    bool
	CheckedAt  time.Time
}

// UsageRecorder receives permission-check outcomes. The engine treats it as
// an external collaborator: failures are swallowed and checks never block on
// it.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, record UsageRecord) error
}

// RedisUsageRecorder appends usage records to a capped Redis stream that an
// external audit subsystem can consume.
type RedisUsageRecorder struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisUsageRecorder constructs a recorder writing to the named stream.
// maxLen caps the stream approximately; zero keeps it unbounded.
func NewRedisUsageRecorder(client *redis.Client, stream string, maxLen int64) *RedisUsageRecorder {
	return &RedisUsageRecorder{client: client, stream: stream, maxLen: maxLen}
}

// RecordUsage appends one record to the stream.
func (r *RedisUsageRecorder) RecordUsage(ctx context.Context, record UsageRecord) error {
	args := &redis.XAddArgs{
		Stream: r.stream,
		Values: map[string]interface{}{
			"user_id":    strconv.FormatInt(record.UserID, 10),
			"permission": record.Permission,
			"granted":    strconv.FormatBool(record.Granted),
			"checked_at": record.CheckedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if r.maxLen > 0 {
		args.MaxLen = r.maxLen
		args.Approx = true
	}
	return r.client.XAdd(ctx, args).Err()
}
