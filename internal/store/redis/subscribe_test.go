package redis

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	msgs   chan *redis.Message
	fail   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeSub() *fakeSub {
	return &fakeSub{
		msgs:   make(chan *redis.Message, 4),
		fail:   make(chan error, 1),
		closed: make(chan struct{}),
	}
}

func (f *fakeSub) ReceiveMessage(ctx context.Context) (*redis.Message, error) {
	select {
	case m := <-f.msgs:
		return m, nil
	case err := <-f.fail:
		return nil, err
	case <-f.closed:
		return nil, redis.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSub) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

// scriptedSubscriber hands out results in order and counts calls.
type scriptedSubscriber struct {
	mu      sync.Mutex
	results []any // *fakeSub or error
	calls   int
}

func (s *scriptedSubscriber) subscribe(context.Context, string) (subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if len(s.results) == 0 {
		return nil, errors.New("no more scripted subscriptions")
	}
	next := s.results[0]
	s.results = s.results[1:]
	if err, ok := next.(error); ok {
		return nil, err
	}
	return next.(*fakeSub), nil
}

func (s *scriptedSubscriber) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func receive(t *testing.T, ch <-chan []byte) string {
	t.Helper()
	select {
	case b, ok := <-ch:
		require.True(t, ok, "channel closed early")
		return string(b)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return ""
	}
}

func TestSubscribe_ResubscribesAfterLoss(t *testing.T) {
	t.Parallel()

	first, second := newFakeSub(), newFakeSub()
	script := &scriptedSubscriber{results: []any{first, errors.New("connection refused"), second}}
	ps := &PubSub{retryDelay: 5 * time.Millisecond, subscribe: script.subscribe}

	out, cleanup, err := ps.Subscribe(t.Context(), "tenant:x")
	require.NoError(t, err)
	defer cleanup()

	first.msgs <- &redis.Message{Payload: "a"}
	assert.Equal(t, "a", receive(t, out))

	first.fail <- errors.New("EOF")
	second.msgs <- &redis.Message{Payload: "b"}
	assert.Equal(t, "b", receive(t, out))
	assert.Equal(t, 3, script.callCount())
}

func TestSubscribe_InitialFailure(t *testing.T) {
	t.Parallel()

	script := &scriptedSubscriber{results: []any{errors.New("down")}}
	ps := &PubSub{retryDelay: time.Millisecond, subscribe: script.subscribe}

	out, cleanup, err := ps.Subscribe(t.Context(), "tenant:x")
	require.Error(t, err)
	assert.Nil(t, out)
	assert.Nil(t, cleanup)
}

func TestSubscribe_CleanupStopsRetrying(t *testing.T) {
	t.Parallel()

	sub := newFakeSub()
	script := &scriptedSubscriber{results: []any{sub}}
	ps := &PubSub{retryDelay: time.Hour, subscribe: script.subscribe}

	out, cleanup, err := ps.Subscribe(t.Context(), "couriers:x")
	require.NoError(t, err)

	cleanup()

	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output channel not closed")
	}
	assert.Equal(t, 1, script.callCount())
}

func TestSubscribe_ContextCancelClosesOutput(t *testing.T) {
	t.Parallel()

	sub := newFakeSub()
	script := &scriptedSubscriber{results: []any{sub}}
	ps := &PubSub{retryDelay: time.Millisecond, subscribe: script.subscribe}

	ctx, cancel := context.WithCancel(t.Context())
	out, cleanup, err := ps.Subscribe(ctx, "tenant:x")
	require.NoError(t, err)
	defer cleanup()

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("output channel not closed")
	}
}

func TestWithRetryDelay(t *testing.T) {
	t.Parallel()

	ps := newPubSub(redis.NewClient(&redis.Options{Addr: "localhost:0"}), WithRetryDelay(-time.Second))
	assert.Equal(t, DefaultRetryDelay, ps.retryDelay)

	ps = newPubSub(redis.NewClient(&redis.Options{Addr: "localhost:0"}), WithRetryDelay(time.Second))
	assert.Equal(t, time.Second, ps.retryDelay)
}
