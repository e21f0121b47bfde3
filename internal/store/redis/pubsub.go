package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/shopdesk/internal/domain"
)

// DefaultRetryDelay is how long a subscriber waits before resubscribing after
// losing its Redis subscription.
const DefaultRetryDelay = 3 * time.Second

// subscription is the part of *redis.PubSub the fan-out loop uses.
type subscription interface {
	ReceiveMessage(ctx context.Context) (*redis.Message, error)
	Close() error
}

type PubSub struct {
	client     *redis.Client
	retryDelay time.Duration
	subscribe  func(ctx context.Context, channel string) (subscription, error)
}

type Option func(*PubSub)

// WithRetryDelay overrides DefaultRetryDelay. Non-positive values are ignored.
func WithRetryDelay(d time.Duration) Option {
	return func(ps *PubSub) {
		if d > 0 {
			ps.retryDelay = d
		}
	}
}

func New(ctx context.Context, addr, password string, db int, opts ...Option) (*PubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis.New: ping: %w", err)
	}

	return newPubSub(client, opts...), nil
}

func newPubSub(client *redis.Client, opts ...Option) *PubSub {
	ps := &PubSub{client: client, retryDelay: DefaultRetryDelay}
	ps.subscribe = func(ctx context.Context, channel string) (subscription, error) {
		sub := ps.client.Subscribe(ctx, channel)
		// Wait for subscription confirmation.
		if _, err := sub.Receive(ctx); err != nil {
			_ = sub.Close()
			return nil, err
		}
		return sub, nil
	}
	for _, opt := range opts {
		opt(ps)
	}
	return ps
}

// Client exposes the underlying client for the position cache.
func (ps *PubSub) Client() *redis.Client {
	return ps.client
}

func (ps *PubSub) Ping(ctx context.Context) error {
	if err := ps.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Ping: %w", err)
	}
	return nil
}

func (ps *PubSub) Close() error {
	if err := ps.client.Close(); err != nil {
		return fmt.Errorf("redis.PubSub.Close: %w", err)
	}
	return nil
}

func (ps *PubSub) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ps.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis.PubSub.Publish: %w", err)
	}
	return nil
}

// PublishChange announces an entity change on the tenant channel.
func (ps *PubSub) PublishChange(ctx context.Context, tenantID uuid.UUID, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishChange: marshal: %w", err)
	}
	if err := ps.Publish(ctx, TenantChannel(tenantID), payload); err != nil {
		return fmt.Errorf("redis.PubSub.PublishChange: %w", err)
	}
	return nil
}

// PublishLocation announces a courier position on the tenant courier channel.
func (ps *PubSub) PublishLocation(ctx context.Context, tenantID uuid.UUID, loc domain.CourierLocation) error {
	payload, err := json.Marshal(loc)
	if err != nil {
		return fmt.Errorf("redis.PubSub.PublishLocation: marshal: %w", err)
	}
	if err := ps.Publish(ctx, CourierChannel(tenantID), payload); err != nil {
		return fmt.Errorf("redis.PubSub.PublishLocation: %w", err)
	}
	return nil
}

// Subscribe streams channel payloads until ctx is done. The first subscription
// must succeed; after that a lost subscription is retried every retry delay
// until ctx is cancelled. Messages published while disconnected are lost.
func (ps *PubSub) Subscribe(ctx context.Context, channel string) (<-chan []byte, func(), error) {
	sub, err := ps.subscribe(ctx, channel)
	if err != nil {
		return nil, nil, fmt.Errorf("redis.PubSub.Subscribe: receive confirmation: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []byte, 64)

	// current is closed by cleanup so a blocked receive returns.
	var mu sync.Mutex
	current := sub
	swap := func(next subscription) bool {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			if next != nil {
				_ = next.Close()
			}
			return false
		}
		current = next
		return true
	}

	go func() {
		defer close(out)
		for {
			err := pump(ctx, sub, out)
			_ = sub.Close()
			if ctx.Err() != nil {
				return
			}
			log.Warn().Err(err).Str("channel", channel).Dur("retry_in", ps.retryDelay).Msg("redis subscription lost")

			sub = nil
			for sub == nil {
				select {
				case <-ctx.Done():
					return
				case <-time.After(ps.retryDelay):
				}
				next, err := ps.subscribe(ctx, channel)
				if err != nil {
					if ctx.Err() != nil {
						return
					}
					log.Warn().Err(err).Str("channel", channel).Msg("redis resubscribe failed")
					continue
				}
				if !swap(next) {
					return
				}
				sub = next
			}
			log.Info().Str("channel", channel).Msg("redis subscription restored")
		}
	}()

	cleanup := func() {
		mu.Lock()
		cancel()
		cur := current
		mu.Unlock()
		_ = cur.Close()
	}

	return out, cleanup, nil
}

// pump forwards messages until the subscription errors or ctx is done.
func pump(ctx context.Context, sub subscription, out chan<- []byte) error {
	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		select {
		case out <- []byte(msg.Payload):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// TenantChannel returns the Redis channel name for tenant-wide change events.
func TenantChannel(tenantID uuid.UUID) string {
	return "tenant:" + tenantID.String()
}

// CourierChannel returns the Redis channel name for a tenant's courier positions.
func CourierChannel(tenantID uuid.UUID) string {
	return "couriers:" + tenantID.String()
}
