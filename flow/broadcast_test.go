package flow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drain[T any](t *testing.T, ctx context.Context, sub *Subscription[T]) []T {
	t.Helper()
	var out []T
	for {
		v, ok, err := sub.Recv(ctx)
		require.NoError(t, err)
		if !ok {
			return out
		}
		out = append(out, v)
	}
}

func TestNewBroadcastInvalidDepth(t *testing.T) {
	_, err := NewBroadcast[int](0)
	assert.ErrorIs(t, err, ErrInvalidDepth)

	_, err = NewBroadcast[int](-3)
	assert.ErrorIs(t, err, ErrInvalidDepth)
}

func TestBroadcastDeliversInOrderToEverySubscriber(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[int](4)
	require.NoError(t, err)

	const subscribers = 3
	const total = 100

	subs := make([]*Subscription[int], subscribers)
	for i := range subs {
		subs[i], err = b.Subscribe()
		require.NoError(t, err)
	}
	assert.Equal(t, subscribers, b.Subscribers())

	results := make([][]int, subscribers)
	var wg sync.WaitGroup
	for i, sub := range subs {
		wg.Add(1)
		go func(i int, sub *Subscription[int]) {
			defer wg.Done()
			results[i] = drain(t, ctx, sub)
		}(i, sub)
	}

	for i := 0; i < total; i++ {
		require.NoError(t, b.Broadcast(ctx, i))
	}
	require.NoError(t, b.Close())
	wg.Wait()

	expected := make([]int, total)
	for i := range expected {
		expected[i] = i
	}
	for i := range results {
		assert.Equal(t, expected, results[i], "subscriber %d", i)
	}
	assert.Equal(t, uint64(total), b.Sent())
}

func TestBroadcastBackpressure(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[int](2)
	require.NoError(t, err)

	fast, err := b.Subscribe()
	require.NoError(t, err)
	slow, err := b.Subscribe()
	require.NoError(t, err)

	go func() {
		for {
			if _, ok, err := fast.Recv(ctx); err != nil || !ok {
				return
			}
		}
	}()

	sent := make(chan int, 10)
	go func() {
		for i := 0; i < 5; i++ {
			if err := b.Broadcast(ctx, i); err != nil {
				return
			}
			sent <- i
		}
	}()

	// the slow queue fills up and the producer stalls behind it
	require.Eventually(t, func() bool { return slow.Len() == slow.Cap() }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, sent, 2)
	assert.LessOrEqual(t, slow.Len(), 2)

	for i := 0; i < 5; i++ {
		v, ok, err := slow.Recv(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, i, v)
		assert.LessOrEqual(t, slow.Len(), slow.Cap())
	}
	require.Eventually(t, func() bool { return len(sent) == 5 }, time.Second, time.Millisecond)
	require.NoError(t, b.Close())
}

func TestBroadcastLateSubscriberMissesEarlierValues(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[string](8)
	require.NoError(t, err)

	early, err := b.Subscribe()
	require.NoError(t, err)
	require.NoError(t, b.Broadcast(ctx, "a"))

	late, err := b.Subscribe()
	require.NoError(t, err)
	require.NoError(t, b.Broadcast(ctx, "b"))
	require.NoError(t, b.Close())

	assert.Equal(t, []string{"a", "b"}, drain(t, ctx, early))
	assert.Equal(t, []string{"b"}, drain(t, ctx, late))
}

func TestBroadcastClose(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[int](1)
	require.NoError(t, err)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	assert.ErrorIs(t, b.Broadcast(ctx, 1), ErrBroadcastClosed)
	_, err = b.Subscribe()
	assert.ErrorIs(t, err, ErrBroadcastClosed)

	_, ok, err := sub.Recv(ctx)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestBroadcastWithoutSubscribers(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[int](1)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		require.NoError(t, b.Broadcast(ctx, i))
	}
	assert.Equal(t, uint64(10), b.Sent())
	require.NoError(t, b.Close())
}

func TestDetachedSubscriptionDoesNotStallProducer(t *testing.T) {
	ctx := context.Background()
	b, err := NewBroadcast[int](1)
	require.NoError(t, err)

	healthy, err := b.Subscribe()
	require.NoError(t, err)
	broken, err := b.Subscribe()
	require.NoError(t, err)

	done := make(chan []int)
	go func() {
		var got []int
		for {
			v, ok, err := healthy.Recv(ctx)
			if err != nil || !ok {
				done <- got
				return
			}
			got = append(got, v)
		}
	}()

	require.NoError(t, b.Broadcast(ctx, 0))
	// broken is now full; detaching must release the producer
	errCh := make(chan error, 1)
	go func() {
		for i := 1; i < 20; i++ {
			if err := b.Broadcast(ctx, i); err != nil {
				errCh <- err
				return
			}
		}
		errCh <- b.Close()
	}()

	time.Sleep(20 * time.Millisecond)
	broken.Detach()
	broken.Detach()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("producer stalled on a detached subscription")
	}

	got := <-done
	assert.Len(t, got, 20)
	assert.Equal(t, 1, b.Subscribers())

	_, ok, err := broken.Recv(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrSubscriptionDetached)
}

func TestBroadcastAbort(t *testing.T) {
	b, err := NewBroadcast[int](1)
	require.NoError(t, err)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, b.Broadcast(ctx, 1))

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	err = b.Broadcast(ctx, 2)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAborted)
	assert.True(t, errors.Is(err, context.Canceled))

	_, _, err = sub.Recv(ctx)
	if err != nil {
		assert.ErrorIs(t, err, ErrAborted)
	}
	require.NoError(t, b.Close())
}

func TestSubscriptionRecvAbort(t *testing.T) {
	b, err := NewBroadcast[int](1)
	require.NoError(t, err)
	sub, err := b.Subscribe()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := sub.Recv(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrAborted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
