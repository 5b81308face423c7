package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForEach_RunsEveryItem(t *testing.T) {
	t.Parallel()
	var sum atomic.Int64

	err := ForEach(context.Background(), []int{1, 2, 3, 4}, 0, func(_ context.Context, n int) error {
		sum.Add(int64(n))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), sum.Load())
}

func TestForEach_Empty(t *testing.T) {
	t.Parallel()
	called := false
	err := ForEach(context.Background(), []string(nil), 2, func(context.Context, string) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.False(t, called)
}

func TestForEach_RespectsLimit(t *testing.T) {
	t.Parallel()
	var inFlight, peak atomic.Int32

	items := make([]int, 12)
	err := ForEach(context.Background(), items, 3, func(context.Context, int) error {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(3))
	assert.GreaterOrEqual(t, peak.Load(), int32(1))
}

func TestForEach_ErrorDoesNotStopOthers(t *testing.T) {
	t.Parallel()
	var done atomic.Int32
	boom := errors.New("boom")

	err := ForEach(context.Background(), []int{0, 1, 2, 3}, 1, func(_ context.Context, n int) error {
		done.Add(1)
		if n == 0 {
			return boom
		}
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), done.Load())
}
