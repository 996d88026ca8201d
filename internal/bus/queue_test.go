package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

func TestPublishAndConsume(t *testing.T) {
	q := NewQueue(8)
	for seq := uint64(1); seq <= 3; seq++ {
		require.NoError(t, q.TryPublish(Event{
			Header:  schema.NewHeader(schema.EventFill, 1, seq, 0, 0),
			Payload: []byte{byte(seq)},
		}))
	}
	assert.Equal(t, 3, q.Depth())
	q.Close()

	var seqs []uint64
	q.Run(context.Background(), func(e Event) {
		seqs = append(seqs, e.Header.Seq)
	})
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestTryPublishFullQueue(t *testing.T) {
	q := NewQueue(1)
	require.NoError(t, q.TryPublish(Event{}))
	assert.ErrorIs(t, q.TryPublish(Event{}), ErrQueueFull)
}

func TestTryPublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	assert.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
}

func TestRunStopsOnContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	q.Run(ctx, func(Event) { t.Fatal("no events expected") })
}
