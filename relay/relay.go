// Package relay mirrors job lifecycle traffic into Redis so dashboards
// and sibling processes can observe a running netreaper session.
//
// Every mirrored entry is a JSON envelope carrying the originating
// process identity and emit time alongside the job event or result.
// Entries land in two places: a bounded Redis list that retains the
// most recent history for late joiners, and a pub/sub channel for live
// observers. The relay is strictly an observer; jobs run the same with
// or without it, and a dead Redis never blocks the job pipeline.
package relay

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/netreaper/sdk/job"
)

// Defaults applied to Options fields left unset.
const (
	DefaultURL           = "redis://localhost:6379"
	DefaultEventList     = "netreaper:events"
	DefaultResultList    = "netreaper:results"
	DefaultEventChannel  = "netreaper:events:live"
	DefaultResultChannel = "netreaper:results:live"
	DefaultMaxListLength = 1000
)

// defaultBufferSize is the capacity of the Attach forwarding queue.
const defaultBufferSize = 256

// EventEnvelope is the serialized form of one mirrored job event.
type EventEnvelope struct {
	// Source identifies the process that emitted the entry.
	Source string `json:"source"`

	// EmittedAt is when the entry was handed to the relay, in UTC.
	EmittedAt time.Time `json:"emitted_at"`

	Event job.Event `json:"event"`
}

// ResultEnvelope is the serialized form of one mirrored job result.
type ResultEnvelope struct {
	Source    string     `json:"source"`
	EmittedAt time.Time  `json:"emitted_at"`
	Result    job.Result `json:"result"`
}

// Options configures the Redis connection and key layout.
type Options struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379")
	URL string

	// TLS configuration for secure connections
	TLS *tls.Config

	// ConnectTimeout is the maximum time to wait for connection establishment
	ConnectTimeout time.Duration

	// ReadTimeout is the maximum time to wait for read operations
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait for write operations
	WriteTimeout time.Duration

	// Source identifies this process in mirrored envelopes.
	// Defaults to a random UUID.
	Source string

	// EventList and ResultList are the Redis lists retaining recent
	// entries, newest first.
	EventList  string
	ResultList string

	// EventChannel and ResultChannel are the pub/sub channels live
	// entries are published on.
	EventChannel  string
	ResultChannel string

	// MaxListLength bounds the retained lists. Zero applies
	// DefaultMaxListLength; negative disables trimming.
	MaxListLength int64

	// BufferSize is the capacity of the Attach forwarding queue.
	BufferSize int

	// Logger receives relay diagnostics. Defaults to slog.Default().
	Logger *slog.Logger
}

// Relay mirrors job events and results to Redis.
type Relay struct {
	client *redis.Client
	opts   Options
	logger *slog.Logger

	queue chan outbound
	done  chan struct{}
	wg    sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	forwarding bool
	detaches   []func()
}

// outbound is one entry waiting for the forwarder. Exactly one field
// is set.
type outbound struct {
	event  *EventEnvelope
	result *ResultEnvelope
}

// New connects to Redis and returns a relay.
func New(opts Options) (*Relay, error) {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 30 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Source == "" {
		opts.Source = uuid.NewString()
	}
	if opts.EventList == "" {
		opts.EventList = DefaultEventList
	}
	if opts.ResultList == "" {
		opts.ResultList = DefaultResultList
	}
	if opts.EventChannel == "" {
		opts.EventChannel = DefaultEventChannel
	}
	if opts.ResultChannel == "" {
		opts.ResultChannel = DefaultResultChannel
	}
	if opts.MaxListLength == 0 {
		opts.MaxListLength = DefaultMaxListLength
	}
	if opts.BufferSize <= 0 {
		opts.BufferSize = defaultBufferSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout
	redisOpts.ReadTimeout = opts.ReadTimeout
	redisOpts.WriteTimeout = opts.WriteTimeout

	client := redis.NewClient(redisOpts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), opts.ConnectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Relay{
		client: client,
		opts:   opts,
		logger: opts.Logger.With(slog.String("component", "relay")),
		queue:  make(chan outbound, opts.BufferSize),
		done:   make(chan struct{}),
	}, nil
}

// Source returns the identity stamped into mirrored envelopes.
func (r *Relay) Source() string {
	return r.opts.Source
}

// PublishEvent mirrors one job event synchronously: the envelope is
// pushed onto the event list, the list is trimmed to its bound, and
// the envelope is published on the live channel.
func (r *Relay) PublishEvent(ctx context.Context, event job.Event) error {
	return r.publishEvent(ctx, r.envelope(event))
}

// PublishResult mirrors one job result synchronously, like
// PublishEvent.
func (r *Relay) PublishResult(ctx context.Context, result job.Result) error {
	return r.publishResult(ctx, r.envelopeResult(result))
}

func (r *Relay) envelope(event job.Event) EventEnvelope {
	return EventEnvelope{Source: r.opts.Source, EmittedAt: time.Now().UTC(), Event: event}
}

func (r *Relay) envelopeResult(result job.Result) ResultEnvelope {
	return ResultEnvelope{Source: r.opts.Source, EmittedAt: time.Now().UTC(), Result: result}
}

func (r *Relay) publishEvent(ctx context.Context, env EventEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	return r.mirror(ctx, r.opts.EventList, r.opts.EventChannel, data)
}

func (r *Relay) publishResult(ctx context.Context, env ResultEnvelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}
	return r.mirror(ctx, r.opts.ResultList, r.opts.ResultChannel, data)
}

// mirror lands one serialized envelope in the retained list and on the
// live channel.
func (r *Relay) mirror(ctx context.Context, list, channel string, data []byte) error {
	if err := r.client.LPush(ctx, list, data).Err(); err != nil {
		return fmt.Errorf("failed to push to list %s: %w", list, err)
	}
	if r.opts.MaxListLength > 0 {
		if err := r.client.LTrim(ctx, list, 0, r.opts.MaxListLength-1).Err(); err != nil {
			return fmt.Errorf("failed to trim list %s: %w", list, err)
		}
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to channel %s: %w", channel, err)
	}
	return nil
}

// Attach subscribes the relay to a job manager and mirrors everything
// it emits. Manager handlers must not block, so entries are queued on
// an internal buffer and written to Redis by a background forwarder;
// when the buffer is full the entry is dropped and a warning logged.
//
// The returned function detaches the relay from the manager. Close
// detaches any remaining attachments.
func (r *Relay) Attach(m *job.Manager) (detach func()) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return func() {}
	}
	if !r.forwarding {
		r.forwarding = true
		r.wg.Add(1)
		go r.forward()
	}
	r.mu.Unlock()

	offEvent := m.OnEvent(func(event job.Event) {
		env := r.envelope(event)
		r.enqueue(outbound{event: &env})
	})
	offResult := m.OnResult(func(result job.Result) {
		env := r.envelopeResult(result)
		r.enqueue(outbound{result: &env})
	})

	detach = func() {
		offEvent()
		offResult()
	}
	r.mu.Lock()
	r.detaches = append(r.detaches, detach)
	r.mu.Unlock()
	return detach
}

func (r *Relay) enqueue(out outbound) {
	select {
	case r.queue <- out:
	default:
		r.logger.Warn("relay buffer full, dropping entry")
	}
}

// forward drains the queue until Close.
func (r *Relay) forward() {
	defer r.wg.Done()
	for {
		select {
		case <-r.done:
			return
		case out := <-r.queue:
			ctx, cancel := context.WithTimeout(context.Background(), r.opts.WriteTimeout)
			var err error
			switch {
			case out.event != nil:
				err = r.publishEvent(ctx, *out.event)
			case out.result != nil:
				err = r.publishResult(ctx, *out.result)
			}
			cancel()
			if err != nil {
				r.logger.Warn("relay publish failed", "error", err)
			}
		}
	}
}

// SubscribeEvents subscribes to the live event channel. The returned
// channel receives envelopes until the context is cancelled.
func (r *Relay) SubscribeEvents(ctx context.Context) (<-chan EventEnvelope, error) {
	pubsub := r.client.Subscribe(ctx, r.opts.EventChannel)

	// Wait for subscription confirmation
	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", r.opts.EventChannel, err)
	}

	out := make(chan EventEnvelope)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env EventEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("relay event payload malformed", "error", err)
					continue
				}

				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// SubscribeResults subscribes to the live result channel, like
// SubscribeEvents.
func (r *Relay) SubscribeResults(ctx context.Context) (<-chan ResultEnvelope, error) {
	pubsub := r.client.Subscribe(ctx, r.opts.ResultChannel)

	if _, err := pubsub.Receive(ctx); err != nil {
		return nil, fmt.Errorf("failed to subscribe to channel %s: %w", r.opts.ResultChannel, err)
	}

	out := make(chan ResultEnvelope)
	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var env ResultEnvelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					r.logger.Warn("relay result payload malformed", "error", err)
					continue
				}

				select {
				case out <- env:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// RecentEvents returns up to limit retained event envelopes, newest
// first. A non-positive limit returns the whole retained list.
func (r *Relay) RecentEvents(ctx context.Context, limit int64) ([]EventEnvelope, error) {
	raw, err := r.client.LRange(ctx, r.opts.EventList, 0, rangeStop(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", r.opts.EventList, err)
	}

	envs := make([]EventEnvelope, 0, len(raw))
	for _, payload := range raw {
		var env EventEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			r.logger.Warn("relay event payload malformed", "error", err)
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// RecentResults returns up to limit retained result envelopes, newest
// first, like RecentEvents.
func (r *Relay) RecentResults(ctx context.Context, limit int64) ([]ResultEnvelope, error) {
	raw, err := r.client.LRange(ctx, r.opts.ResultList, 0, rangeStop(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read list %s: %w", r.opts.ResultList, err)
	}

	envs := make([]ResultEnvelope, 0, len(raw))
	for _, payload := range raw {
		var env ResultEnvelope
		if err := json.Unmarshal([]byte(payload), &env); err != nil {
			r.logger.Warn("relay result payload malformed", "error", err)
			continue
		}
		envs = append(envs, env)
	}
	return envs, nil
}

// rangeStop converts a caller limit into an LRANGE stop index, where
// -1 addresses the tail of the list.
func rangeStop(limit int64) int64 {
	if limit <= 0 {
		return -1
	}
	return limit - 1
}

// Close detaches from any attached managers, stops the forwarder, and
// closes the Redis connection. Entries still queued when Close is
// called are discarded.
func (r *Relay) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	detaches := r.detaches
	r.detaches = nil
	r.mu.Unlock()

	for _, detach := range detaches {
		detach()
	}
	close(r.done)
	r.wg.Wait()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis connection: %w", err)
	}
	return nil
}
