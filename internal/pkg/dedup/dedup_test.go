package dedup

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryDeduper(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	d := newMemoryDeduper(time.Minute, func() time.Time { return now })

	dup, err := d.Seen(ctx, "1089250:COMPLETE")
	require.NoError(t, err)
	assert.False(t, dup)

	dup, _ = d.Seen(ctx, "1089250:COMPLETE")
	assert.True(t, dup)

	dup, _ = d.Seen(ctx, "1089250:PENDING")
	assert.False(t, dup)

	require.NoError(t, d.Forget(ctx, "1089250:COMPLETE"))
	dup, _ = d.Seen(ctx, "1089250:COMPLETE")
	assert.False(t, dup)

	now = now.Add(2 * time.Minute)
	dup, _ = d.Seen(ctx, "1089250:PENDING")
	assert.False(t, dup, "expired keys are processed again")
	assert.Len(t, d.seen, 1, "gc removes expired entries")
}

func TestNew_NoAddrUsesMemory(t *testing.T) {
	d, err := New("", "", 0, "pf:itn", 0)
	require.NoError(t, err)
	_, ok := d.(*memoryDeduper)
	assert.True(t, ok)
}

func TestNew_UnreachableRedisFallsBack(t *testing.T) {
	d, err := New("127.0.0.1:1", "", 0, "pf:itn", time.Minute)
	assert.Error(t, err)
	require.NotNil(t, d)
	_, ok := d.(*memoryDeduper)
	assert.True(t, ok)
}
