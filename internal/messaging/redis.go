package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"decision-maker/internal/logger"
)

const (
	// HashKey holds the last record published on every outbound channel.
	HashKey      = "decision-maker"
	faultSetKey  = "decision-maker:fault"
	faultStream  = "events:faults"
	faultChannel = "decision-maker"
	faultGroup   = "decision-maker"
)

var ErrNotConnected = errors.New("redis client is not connected")

type RedisClient struct {
	client  *redis.Client
	inputs  *Inputs
	logger  *logger.Logger
	retries uint64
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu     sync.Mutex
	pubsub *redis.PubSub
	bound  map[string]bool
}

func NewRedisClient(addr string, db int, retries uint64, inputs *Inputs, l *logger.Logger) *RedisClient {
	ctx, cancel := context.WithCancel(context.Background())
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   db,
		}),
		inputs:  inputs,
		logger:  l.WithTag("Redis"),
		retries: retries,
		ctx:     ctx,
		cancel:  cancel,
		bound:   make(map[string]bool),
	}
}

// Connect pings Redis with exponential backoff and opens the pub/sub
// connection used for inbound bindings.
func (r *RedisClient) Connect() error {
	r.logger.Infof("Attempting to connect to Redis at %s", r.client.Options().Addr)

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), r.retries), r.ctx)
	ping := func() error {
		return r.client.Ping(r.ctx).Err()
	}
	notify := func(err error, next time.Duration) {
		r.logger.Warnf("Redis connection failed: %v (retrying in %s)", err, next)
	}
	if err := backoff.RetryNotify(ping, b, notify); err != nil {
		return fmt.Errorf("Redis connection failed: %w", err)
	}
	r.logger.Infof("Successfully connected to Redis")

	r.mu.Lock()
	r.pubsub = r.client.Subscribe(r.ctx)
	r.mu.Unlock()
	return nil
}

// Rebind subscribes to add and unsubscribes from remove. Channels already
// in the requested state are skipped.
func (r *RedisClient) Rebind(ctx context.Context, add, remove []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pubsub == nil {
		return ErrNotConnected
	}

	var drop, take []string
	for _, ch := range remove {
		if r.bound[ch] {
			drop = append(drop, ch)
		}
	}
	for _, ch := range add {
		if !r.bound[ch] {
			take = append(take, ch)
		}
	}

	if len(drop) > 0 {
		if err := r.pubsub.Unsubscribe(ctx, drop...); err != nil {
			return fmt.Errorf("failed to unsubscribe %v: %w", drop, err)
		}
		for _, ch := range drop {
			delete(r.bound, ch)
		}
	}
	if len(take) > 0 {
		if err := r.pubsub.Subscribe(ctx, take...); err != nil {
			return fmt.Errorf("failed to subscribe %v: %w", take, err)
		}
		for _, ch := range take {
			r.bound[ch] = true
		}
	}

	r.logger.Infof("Inbound channels: %v", r.boundLocked())
	return nil
}

// Bound returns the currently subscribed channels, sorted.
func (r *RedisClient) Bound() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.boundLocked()
}

func (r *RedisClient) boundLocked() []string {
	out := make([]string, 0, len(r.bound))
	for ch := range r.bound {
		out = append(out, ch)
	}
	sort.Strings(out)
	return out
}

// Listen delivers inbound messages to the input cells until ctx is done or
// the client is closed. A lost connection is returned as an error.
func (r *RedisClient) Listen(ctx context.Context) error {
	r.mu.Lock()
	pubsub := r.pubsub
	r.mu.Unlock()
	if pubsub == nil {
		return ErrNotConnected
	}

	r.wg.Add(1)
	defer r.wg.Done()

	r.logger.Infof("Starting Redis message listener")
	channel := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			r.logger.Infof("Context cancelled, exiting listener")
			return nil
		case <-r.ctx.Done():
			r.logger.Infof("Client closed, exiting listener")
			return nil
		case msg, ok := <-channel:
			if !ok || msg == nil {
				return errors.New("Redis connection lost")
			}
			r.dispatch(msg.Channel, msg.Payload)
		}
	}
}

func (r *RedisClient) dispatch(channel, payload string) {
	r.logger.Debugf("Received Redis message: channel=%s payload=%s", channel, payload)

	if err := r.inputs.Decode(channel, []byte(payload)); err != nil {
		if errors.Is(err, ErrUnknownChannel) {
			r.logger.Debugf("Ignoring message on %s", channel)
			return
		}
		r.logger.Warnf("Dropping message: %v", err)
	}
}

// publishHashSet atomically updates a hash field and publishes a notification
func (r *RedisClient) publishHashSet(ctx context.Context, hash, field string, value interface{}, channel, payload string) error {
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, hash, field, value)
	pipe.Publish(ctx, channel, payload)
	_, err := pipe.Exec(ctx)
	return err
}

// PublishRecord stores v as JSON under HashKey/channel and publishes it on
// channel.
func (r *RedisClient) PublishRecord(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s record: %w", channel, err)
	}
	if err := r.publishHashSet(ctx, HashKey, channel, data, channel, string(data)); err != nil {
		return fmt.Errorf("failed to publish %s: %w", channel, err)
	}
	return nil
}

// PublishText is PublishRecord for plain-text payloads.
func (r *RedisClient) PublishText(ctx context.Context, channel, text string) error {
	if err := r.publishHashSet(ctx, HashKey, channel, text, channel, text); err != nil {
		return fmt.Errorf("failed to publish %s: %w", channel, err)
	}
	return nil
}

// ReportFault reports a fault as present
func (r *RedisClient) ReportFault(ctx context.Context, code int, description string) error {
	r.logger.Infof("Reporting fault present: code=%d, description=%s", code, description)

	pipe := r.client.Pipeline()
	pipe.SAdd(ctx, faultSetKey, code)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: faultStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"group":       faultGroup,
			"code":        code,
			"description": description,
			"ts":          time.Now().Unix(),
		},
	})
	pipe.Publish(ctx, faultChannel, "fault")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to report fault %d: %w", code, err)
	}
	return nil
}

// ClearFault reports a fault as absent. The stream entry carries the
// negated code.
func (r *RedisClient) ClearFault(ctx context.Context, code int) error {
	r.logger.Infof("Reporting fault absent: code=%d", code)

	pipe := r.client.Pipeline()
	pipe.SRem(ctx, faultSetKey, code)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: faultStream,
		MaxLen: 1000,
		Values: map[string]interface{}{
			"group": faultGroup,
			"code":  -code,
		},
	})
	pipe.Publish(ctx, faultChannel, "fault")

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear fault %d: %w", code, err)
	}
	return nil
}

func (r *RedisClient) Close() error {
	r.logger.Infof("Closing Redis client")
	r.cancel()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Infof("All Redis goroutines finished")
	case <-time.After(5 * time.Second):
		r.logger.Infof("Timeout waiting for Redis goroutines to finish")
	}

	r.mu.Lock()
	if r.pubsub != nil {
		if err := r.pubsub.Close(); err != nil {
			r.logger.Debugf("Error closing pub/sub: %v", err)
		}
	}
	r.mu.Unlock()

	return r.client.Close()
}
