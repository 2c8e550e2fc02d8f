package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-suite/meridian/internal/rbac"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubAssignmentSource struct {
	window    time.Duration
	expiring  []rbac.ExpiringAssignment
	returnErr error
}

func (s *stubAssignmentSource) ExpiringAssignments(ctx context.Context, window time.Duration) ([]rbac.ExpiringAssignment, error) {
	s.window = window
	return s.expiring, s.returnErr
}

func TestExpiryScanHandler(t *testing.T) {
	source := &stubAssignmentSource{
		expiring: []rbac.ExpiringAssignment{
			{AssignmentID: "a1", UserID: 7, RoleID: 3, RoleName: "Manager", ExpiresAt: time.Now().Add(48 * time.Hour)},
		},
	}
	handler := NewExpiryScanHandler(source, testLogger())

	task, err := NewExpiryScanTask(ExpiryScanPayload{Window: 7 * 24 * time.Hour})
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(context.Background(), task))
	assert.Equal(t, 7*24*time.Hour, source.window)
}

func TestExpiryScanHandlerPropagatesSourceError(t *testing.T) {
	source := &stubAssignmentSource{returnErr: errors.New("db down")}
	handler := NewExpiryScanHandler(source, testLogger())

	task, err := NewExpiryScanTask(ExpiryScanPayload{Window: time.Hour})
	require.NoError(t, err)
	assert.Error(t, handler.ProcessTask(context.Background(), task))
}

func TestExpiryScanHandlerSkipsMalformedPayload(t *testing.T) {
	handler := NewExpiryScanHandler(&stubAssignmentSource{}, testLogger())
	err := handler.ProcessTask(context.Background(), asynq.NewTask(TaskExpiryScan, []byte("not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestUsageTrimHandler(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, client.XAdd(ctx, &redis.XAddArgs{
			Stream: "rbac:usage",
			Values: map[string]interface{}{"permission": "Employees.View"},
		}).Err())
	}

	handler := NewUsageTrimHandler(client, testLogger())
	task, err := NewUsageTrimTask(UsageTrimPayload{Stream: "rbac:usage", MaxLen: 4})
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(ctx, task))

	length, err := client.XLen(ctx, "rbac:usage").Result()
	require.NoError(t, err)
	assert.LessOrEqual(t, length, int64(10))
}

func TestUsageTrimHandlerSkipsInvalidPayload(t *testing.T) {
	handler := NewUsageTrimHandler(nil, testLogger())

	task, err := NewUsageTrimTask(UsageTrimPayload{Stream: "", MaxLen: 0})
	require.NoError(t, err)
	assert.ErrorIs(t, handler.ProcessTask(context.Background(), task), asynq.SkipRetry)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(TaskUsageTrim, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
