package poll

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
)

func TestAwaitSucceedsAfterRetries(t *testing.T) {
	calls := 0
	err := Await(context.Background(), Options{Initial: 5 * time.Millisecond, Deadline: time.Second},
		func(ctx context.Context) (bool, error) {
			calls++
			return calls >= 3, nil
		})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestAwaitNeverSamplesFasterThanInitial(t *testing.T) {
	var stamps []time.Time
	err := Await(context.Background(), Options{Initial: 20 * time.Millisecond, Deadline: time.Second},
		func(ctx context.Context) (bool, error) {
			stamps = append(stamps, time.Now())
			return len(stamps) >= 4, nil
		})
	require.NoError(t, err)
	require.Len(t, stamps, 4)
	for i := 1; i < len(stamps); i++ {
		gap := stamps[i].Sub(stamps[i-1])
		assert.GreaterOrEqual(t, gap, 18*time.Millisecond, "gap %d too short", i)
	}
}

func TestAwaitBackoffGrows(t *testing.T) {
	var stamps []time.Time
	err := Await(context.Background(),
		Options{Initial: 10 * time.Millisecond, Multiplier: 3, Max: 40 * time.Millisecond, Deadline: 2 * time.Second},
		func(ctx context.Context) (bool, error) {
			stamps = append(stamps, time.Now())
			return len(stamps) >= 3, nil
		})
	require.NoError(t, err)
	require.Len(t, stamps, 3)
	// Second gap is Initial*Multiplier = 30ms.
	assert.GreaterOrEqual(t, stamps[2].Sub(stamps[1]), 27*time.Millisecond)
}

func TestAwaitDeadline(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Await(context.Background(),
		Options{Initial: 10 * time.Millisecond, Deadline: 60 * time.Millisecond, What: "test wait"},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, nil
		})
	require.Error(t, err)
	assert.True(t, ideerr.IsKind(err, ideerr.KindTimeout))
	assert.Contains(t, err.Error(), "test wait")
	assert.GreaterOrEqual(t, calls, 2)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestAwaitCondError(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Await(context.Background(), Options{Initial: 5 * time.Millisecond},
		func(ctx context.Context) (bool, error) {
			calls++
			return false, boom
		})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestAwaitContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err := Await(ctx, Options{Initial: 500 * time.Millisecond, Deadline: 10 * time.Second},
		func(ctx context.Context) (bool, error) {
			return false, nil
		})
	assert.ErrorIs(t, err, context.Canceled)
}
