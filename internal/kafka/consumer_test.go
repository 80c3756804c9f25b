package kafka

import (
	"context"
	"errors"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"testing"
	"time"
)

var fastBackoff = Backoff{Initial: time.Millisecond, Max: 4 * time.Millisecond}

func TestHandleWithRetryRetriesInPlaceUntilSuccess(t *testing.T) {
	var seen []int64
	calls := 0
	h := func(_ context.Context, m kafka.Message) error {
		calls++
		seen = append(seen, m.Offset)
		if calls < 4 {
			return errors.New("store unavailable")
		}
		return nil
	}

	err := handleWithRetry(context.Background(), h, kafka.Message{Partition: 2, Offset: 41}, fastBackoff, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	assert.Equal(t, []int64{41, 41, 41, 41}, seen)
}

func TestHandleWithRetryStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	h := func(context.Context, kafka.Message) error {
		calls++
		if calls == 2 {
			cancel()
		}
		return errors.New("store unavailable")
	}

	err := handleWithRetry(ctx, h, kafka.Message{}, Backoff{Initial: time.Hour, Max: time.Hour}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestLaneForKeepsPartitionOnOneWorker(t *testing.T) {
	assert.Equal(t, laneFor(5, 4), laneFor(5, 4))
	assert.Equal(t, 1, laneFor(5, 4))
	assert.Equal(t, 0, laneFor(0, 4))
	assert.Equal(t, 0, laneFor(7, 1))

	used := map[int]bool{}
	for p := 0; p < 8; p++ {
		l := laneFor(p, 4)
		assert.GreaterOrEqual(t, l, 0)
		assert.Less(t, l, 4)
		used[l] = true
	}
	assert.Len(t, used, 4)
}
