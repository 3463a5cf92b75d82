package notify_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/core/notify"
)

func TestBus_EmitOrder(t *testing.T) {
	t.Parallel()
	bus := notify.New()

	var got []int
	for i := range 3 {
		bus.On("evt", func(context.Context, any) error {
			got = append(got, i)
			return nil
		})
	}

	bus.Emit(context.Background(), "evt", nil)
	assert.Equal(t, []int{0, 1, 2}, got)

	bus.Emit(context.Background(), "other", nil)
	assert.Equal(t, []int{0, 1, 2}, got)
}

func TestBus_Payload(t *testing.T) {
	t.Parallel()
	bus := notify.New()

	var end notify.RequestEnd
	bus.On(notify.EventRequestEnd, func(_ context.Context, p any) error {
		end = p.(notify.RequestEnd)
		return nil
	})

	bus.Emit(context.Background(), notify.EventRequestEnd, notify.RequestEnd{Duration: 42, Status: 200})
	assert.Equal(t, notify.RequestEnd{Duration: 42, Status: 200}, end)
}

func TestBus_Unregister(t *testing.T) {
	t.Parallel()
	bus := notify.New()

	calls := 0
	off := bus.On("evt", func(context.Context, any) error { calls++; return nil })
	keep := bus.On("evt", func(context.Context, any) error { return nil })
	defer keep()

	require.Equal(t, 2, bus.Len("evt"))
	off()
	off()
	assert.Equal(t, 1, bus.Len("evt"))

	bus.Emit(context.Background(), "evt", nil)
	assert.Zero(t, calls)
}

func TestBus_FailuresIsolated(t *testing.T) {
	t.Parallel()
	bus := notify.New()

	reached := false
	bus.On("evt", func(context.Context, any) error { panic("boom") })
	bus.On("evt", func(context.Context, any) error { return errors.New("failed") })
	bus.On("evt", func(context.Context, any) error { reached = true; return nil })

	assert.NotPanics(t, func() { bus.Emit(context.Background(), "evt", nil) })
	assert.True(t, reached)

	emitted, failed := bus.Stats()
	assert.Equal(t, int64(1), emitted)
	assert.Equal(t, int64(2), failed)
}

func TestBus_Concurrent(t *testing.T) {
	t.Parallel()
	bus := notify.New()

	var mu sync.Mutex
	count := 0
	bus.On("evt", func(context.Context, any) error {
		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			off := bus.On("evt", func(context.Context, any) error { return nil })
			bus.Emit(context.Background(), "evt", nil)
			off()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, count)
	assert.Equal(t, 1, bus.Len("evt"))
}
