package rendezvous

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyBeforeWait(t *testing.T) {
	r := New()
	r.Notify(1)

	v, ok := r.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)
}

func TestWaitTimesOut(t *testing.T) {
	r := New()
	start := time.Now()
	_, ok := r.Wait(20 * time.Millisecond)
	assert.False(t, ok)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestNotifiesCoalesceToLatest(t *testing.T) {
	r := New()
	r.Notify(0)
	r.Notify(1)

	v, ok := r.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, uint32(1), v)

	// Only one notification was pending.
	_, ok = r.Wait(10 * time.Millisecond)
	assert.False(t, ok)
}

func TestDeliveryToBlockedWaiter(t *testing.T) {
	r := New()
	got := make(chan uint32, 1)
	go func() {
		v, ok := r.Wait(5 * time.Second)
		if ok {
			got <- v
		}
	}()

	// Give the waiter a moment to block.
	time.Sleep(10 * time.Millisecond)
	r.Notify(1)

	select {
	case v := <-got:
		assert.Equal(t, uint32(1), v)
	case <-time.After(time.Second):
		t.Fatal("notification was lost")
	}
}

func TestReusableAfterDelivery(t *testing.T) {
	r := New()
	r.Notify(1)
	_, ok := r.Wait(time.Second)
	require.True(t, ok)

	r.Notify(0)
	v, ok := r.Wait(time.Second)
	require.True(t, ok)
	assert.Equal(t, uint32(0), v)
}
