package status

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultNamespace = "medreport:status"

// RedisTracker keeps states in Redis so that any replica can answer a poll.
// Every transition is also published on <namespace>:events.
type RedisTracker struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// RedisTrackerConfig holds tracker configuration
type RedisTrackerConfig struct {
	RedisURL  string
	Namespace string
	TTL       time.Duration
}

// NewRedisTracker connects to Redis and verifies the connection.
func NewRedisTracker(ctx context.Context, cfg *RedisTrackerConfig) (*RedisTracker, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisTracker(client, cfg), nil
}

func newRedisTracker(client *redis.Client, cfg *RedisTrackerConfig) *RedisTracker {
	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	return &RedisTracker{client: client, namespace: ns, ttl: cfg.TTL}
}

// Record stores the state under <namespace>:<requestID> with the configured TTL
// and publishes a transition event.
func (r *RedisTracker) Record(ctx context.Context, requestID string, state State, detail string) error {
	entry := Entry{
		RequestID: requestID,
		State:     state,
		Detail:    detail,
		UpdatedAt: time.Now().UTC(),
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key(requestID), data, r.ttl)
	if state.Terminal() {
		pipe.HIncrBy(ctx, r.namespace+":counts", string(state), 1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store status for %s: %w", requestID, err)
	}

	event := map[string]interface{}{
		"event":     fmt.Sprintf("request:%s", state),
		"requestId": requestID,
		"timestamp": entry.UpdatedAt.Format(time.RFC3339),
	}
	eventData, _ := json.Marshal(event)
	if err := r.client.Publish(ctx, r.namespace+":events", eventData).Err(); err != nil {
		return fmt.Errorf("failed to publish status event: %w", err)
	}
	return nil
}

// Lookup returns the latest state for requestID.
func (r *RedisTracker) Lookup(ctx context.Context, requestID string) (*Entry, error) {
	data, err := r.client.Get(ctx, r.key(requestID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for %s: %w", requestID, err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to decode status for %s: %w", requestID, err)
	}
	return &entry, nil
}

// Stats returns terminal state counters.
func (r *RedisTracker) Stats(ctx context.Context) (map[string]int64, error) {
	stats := map[string]int64{
		string(StateCompleted): 0,
		string(StateFailed):    0,
	}
	counts, err := r.client.HGetAll(ctx, r.namespace+":counts").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read status counters: %w", err)
	}
	for k, v := range counts {
		var n int64
		if _, err := fmt.Sscan(v, &n); err == nil {
			stats[k] = n
		}
	}
	return stats, nil
}

// Subscribe streams transition events until ctx is done. It returns once the
// subscription is confirmed by the server.
func (r *RedisTracker) Subscribe(ctx context.Context) (<-chan string, func() error, error) {
	sub := r.client.Subscribe(ctx, r.namespace+":events")
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, nil, fmt.Errorf("failed to subscribe to status events: %w", err)
	}

	out := make(chan string)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- msg.Payload:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, sub.Close, nil
}

// Close releases the Redis connection.
func (r *RedisTracker) Close() error {
	return r.client.Close()
}

func (r *RedisTracker) key(requestID string) string {
	return r.namespace + ":" + requestID
}
