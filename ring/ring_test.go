package ring

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProduceConsumeRoundTrip(t *testing.T) {
	r := New(4, 16)

	frame := []byte("0123456789abcdef")
	dropped := r.Produce(frame)
	assert.False(t, dropped)

	out, ok := r.Consume()
	require.True(t, ok)
	assert.Equal(t, frame, out)
}

func TestProduceReturnsIndependentCopies(t *testing.T) {
	r := New(2, 4)

	frame := []byte{1, 2, 3, 4}
	r.Produce(frame)
	frame[0] = 0xFF // mutate caller's buffer after handoff

	out, ok := r.Consume()
	require.True(t, ok)
	assert.Equal(t, byte(1), out[0], "ring must copy on produce, not alias the caller's slice")
}

func TestProduceDropsWhenHeadSlotOccupied(t *testing.T) {
	r := New(1, 4)

	assert.False(t, r.Produce([]byte{1, 2, 3, 4}))
	assert.True(t, r.Produce([]byte{5, 6, 7, 8}), "second produce must drop, slot still unconsumed")
	assert.Equal(t, uint64(1), r.Drops())

	out, ok := r.Consume()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, out, "the surviving frame must be the first one written")
}

func TestConsumeBlocksUntilProduce(t *testing.T) {
	r := New(2, 4)

	done := make(chan []byte, 1)
	go func() {
		out, ok := r.Consume()
		require.True(t, ok)
		done <- out
	}()

	time.Sleep(20 * time.Millisecond) // give the consumer time to block
	r.Produce([]byte{9, 9, 9, 9})

	select {
	case out := <-done:
		assert.Equal(t, []byte{9, 9, 9, 9}, out)
	case <-time.After(time.Second):
		t.Fatal("consume did not wake after produce")
	}
}

func TestCloseUnblocksConsumer(t *testing.T) {
	r := New(2, 4)

	done := make(chan bool, 1)
	go func() {
		_, ok := r.Consume()
		done <- ok
	}()

	time.Sleep(20 * time.Millisecond)
	r.Close()

	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("consume did not wake after close")
	}
}

// TestCaptureOverrun exercises spec scenario S5: a producer running at
// roughly twice the consumer's drain rate against a small ring must see its
// drop counter climb, and no frame delivered to the consumer is ever
// corrupted or observed twice.
func TestCaptureOverrun(t *testing.T) {
	const capacity = 4
	r := New(capacity, 8)

	const produceCount = 400
	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for i := 0; i < produceCount; i++ {
			frame := make([]byte, 8)
			frame[0] = byte(i)
			frame[1] = byte(i >> 8)
			r.Produce(frame)
			time.Sleep(time.Millisecond)
		}
		r.Close()
	}()

	var lastSeen = -1
	for {
		out, ok := r.Consume()
		if !ok {
			break
		}
		seq := int(out[0]) | int(out[1])<<8
		assert.Greater(t, seq, lastSeen, "frames must be delivered in strictly increasing produce order")
		lastSeen = seq
		time.Sleep(2 * time.Millisecond) // drain slower than the producer
	}

	wg.Wait()
	assert.Greater(t, r.Drops(), uint64(0), "a consumer running slower than the producer must see drops")
}

func TestTryConsumeReturnsFalseWhenEmpty(t *testing.T) {
	r := New(2, 4)
	_, ok := r.TryConsume()
	assert.False(t, ok)
}

func TestTryConsumeReturnsFrameWhenReady(t *testing.T) {
	r := New(2, 4)
	r.Produce([]byte{1, 2, 3, 4})

	out, ok := r.TryConsume()
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3, 4}, out)

	_, ok = r.TryConsume()
	assert.False(t, ok, "slot must be marked unready after consumption")
}

func TestCapacityReportsSlotCount(t *testing.T) {
	r := New(7, 4)
	assert.Equal(t, 7, r.Capacity())
}

func TestNewPanicsOnInvalidArguments(t *testing.T) {
	assert.Panics(t, func() { New(0, 4) })
	assert.Panics(t, func() { New(4, 0) })
}
