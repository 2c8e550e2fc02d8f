package rbac_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-suite/meridian/internal/rbac"
)

func TestRedisUsageRecorder(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	recorder := rbac.NewRedisUsageRecorder(client, "rbac:usage", 0)
	checked := time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC)
	ctx := context.Background()

	require.NoError(t, recorder.RecordUsage(ctx, rbac.UsageRecord{
		UserID:     42,
		Permission: "Employees.View",
		Granted:    true,
		CheckedAt:  checked,
	}))
	require.NoError(t, recorder.RecordUsage(ctx, rbac.UsageRecord{
		UserID:     42,
		Permission: "Settings.Manage",
		Granted:    false,
		CheckedAt:  checked,
	}))

	entries, err := client.XRange(ctx, "rbac:usage", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2)

	first := entries[0].Values
	assert.Equal(t, strconv.FormatInt(42, 10), first["user_id"])
	assert.Equal(t, "Employees.View", first["permission"])
	assert.Equal(t, "true", first["granted"])
	assert.Equal(t, checked.Format(time.RFC3339Nano), first["checked_at"])

	assert.Equal(t, "false", entries[1].Values["granted"])
}

func TestRedisUsageRecorderSurfacesErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	recorder := rbac.NewRedisUsageRecorder(client, "rbac:usage", 100)
	err := recorder.RecordUsage(context.Background(), rbac.UsageRecord{
		UserID:     1,
		Permission: "Employees.View",
		CheckedAt:  time.Now(),
	})
	assert.Error(t, err)
}
