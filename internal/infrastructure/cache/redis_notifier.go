package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultCloseTimeout = 5 * time.Second

// RedisConfig holds Redis connection settings for the notifier
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisChangeNotifier implements ChangeNotifier using Redis Pub/Sub
type RedisChangeNotifier struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	channel    string
	logger     *zap.Logger
	cancelFn   context.CancelFunc
	doneCh     chan struct{}
	doneOnce   sync.Once
	mu         sync.Mutex
	isRunning  bool
}

// RedisChangeNotifierOption is a functional option for configuring the notifier
type RedisChangeNotifierOption func(*RedisChangeNotifier)

// WithChannel sets the Pub/Sub channel name
func WithChannel(channel string) RedisChangeNotifierOption {
	return func(n *RedisChangeNotifier) {
		if channel != "" {
			n.channel = channel
		}
	}
}

// WithNotifierLogger sets the logger for the notifier
func WithNotifierLogger(logger *zap.Logger) RedisChangeNotifierOption {
	return func(n *RedisChangeNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewRedisChangeNotifier connects to Redis and creates a notifier owning the client
func NewRedisChangeNotifier(cfg RedisConfig, opts ...RedisChangeNotifierOption) (*RedisChangeNotifier, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	n := newRedisChangeNotifier(client, opts...)
	n.ownsClient = true
	return n, nil
}

// NewRedisChangeNotifierWithClient creates a notifier with an existing Redis client.
// The caller retains ownership of the client.
func NewRedisChangeNotifierWithClient(client *redis.Client, opts ...RedisChangeNotifierOption) *RedisChangeNotifier {
	return newRedisChangeNotifier(client, opts...)
}

func newRedisChangeNotifier(client *redis.Client, opts ...RedisChangeNotifierOption) *RedisChangeNotifier {
	n := &RedisChangeNotifier{
		client:  client,
		channel: DefaultChangeChannel,
		logger:  zap.NewNop(),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Publish sends a change notification to all subscribers
func (n *RedisChangeNotifier) Publish(ctx context.Context, msg ChangeMessage) error {
	if msg.Timestamp == 0 {
		msg.Timestamp = time.Now().UnixNano()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal change message: %w", err)
	}

	if err := n.client.Publish(ctx, n.channel, data).Err(); err != nil {
		n.logger.Error("Failed to publish change message",
			zap.String("channel", n.channel),
			zap.Error(err))
		return fmt.Errorf("failed to publish change message: %w", err)
	}

	n.logger.Debug("Published change message",
		zap.String("tenant_id", msg.TenantID.String()),
		zap.String("entity", msg.Entity),
		zap.String("channel", n.channel))
	return nil
}

// Subscribe listens for change notifications until ctx is done or Close is called.
// It blocks, so run it in a goroutine.
func (n *RedisChangeNotifier) Subscribe(ctx context.Context, callback func(msg ChangeMessage)) error {
	n.mu.Lock()
	if n.isRunning {
		n.mu.Unlock()
		return fmt.Errorf("subscription already running")
	}
	n.isRunning = true
	subCtx, cancel := context.WithCancel(ctx)
	n.cancelFn = cancel
	n.mu.Unlock()

	stop := func() {
		n.mu.Lock()
		n.isRunning = false
		n.mu.Unlock()
		n.markDone()
	}

	pubsub := n.client.Subscribe(subCtx, n.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(subCtx); err != nil {
		stop()
		return fmt.Errorf("failed to subscribe to channel: %w", err)
	}

	n.logger.Info("Subscribed to data change channel", zap.String("channel", n.channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-subCtx.Done():
			n.logger.Info("Data change subscription stopped")
			stop()
			return subCtx.Err()
		case msg, ok := <-ch:
			if !ok {
				n.logger.Warn("Data change channel closed")
				stop()
				return nil
			}

			var change ChangeMessage
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				n.logger.Error("Failed to unmarshal change message",
					zap.String("payload", msg.Payload),
					zap.Error(err))
				continue
			}

			go func(m ChangeMessage) {
				defer func() {
					if r := recover(); r != nil {
						n.logger.Error("Panic in change callback", zap.Any("panic", r))
					}
				}()
				callback(m)
			}(change)
		}
	}
}

func (n *RedisChangeNotifier) markDone() {
	n.doneOnce.Do(func() {
		close(n.doneCh)
	})
}

// Close stops the subscription and releases the client if owned
func (n *RedisChangeNotifier) Close() error {
	n.mu.Lock()
	cancelFn := n.cancelFn
	n.mu.Unlock()

	if cancelFn != nil {
		cancelFn()
		select {
		case <-n.doneCh:
		case <-time.After(defaultCloseTimeout):
			n.logger.Warn("Timeout waiting for subscription to stop")
		}
	}

	if n.ownsClient {
		return n.client.Close()
	}
	return nil
}

var _ ChangeNotifier = (*RedisChangeNotifier)(nil)
