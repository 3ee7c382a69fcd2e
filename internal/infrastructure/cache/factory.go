package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/tidyops/backend/internal/infrastructure/config"
)

// NotifierFactory creates change notifiers based on configuration
type NotifierFactory struct {
	redisConfig           config.RedisConfig
	channel               string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// NotifierFactoryOption is a functional option for configuring the factory
type NotifierFactoryOption func(*NotifierFactory)

// WithFactoryLogger sets the logger for the factory and the notifiers it creates
func WithFactoryLogger(logger *zap.Logger) NotifierFactoryOption {
	return func(f *NotifierFactory) {
		f.logger = logger
	}
}

// WithFactoryChannel sets the Pub/Sub channel for Redis notifiers
func WithFactoryChannel(channel string) NotifierFactoryOption {
	return func(f *NotifierFactory) {
		f.channel = channel
	}
}

// WithInMemoryFallback controls whether to fall back to an in-process notifier
// when Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) NotifierFactoryOption {
	return func(f *NotifierFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewNotifierFactory creates a new factory
func NewNotifierFactory(cfg config.RedisConfig, opts ...NotifierFactoryOption) *NotifierFactory {
	f := &NotifierFactory{
		redisConfig:           cfg,
		channel:               DefaultChangeChannel,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisNotifier creates a Redis Pub/Sub notifier
func (f *NotifierFactory) CreateRedisNotifier() (ChangeNotifier, error) {
	n, err := NewRedisChangeNotifier(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, WithChannel(f.channel), WithNotifierLogger(f.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis change notifier: %w", err)
	}
	return n, nil
}

// CreateLocalNotifier creates an in-process notifier.
// Changes are not shared across process instances.
func (f *NotifierFactory) CreateLocalNotifier() ChangeNotifier {
	return NewLocalChangeNotifier(f.logger)
}

// CreateNotifier tries Redis first and falls back to the local notifier when allowed
func (f *NotifierFactory) CreateNotifier() (ChangeNotifier, error) {
	n, err := f.CreateRedisNotifier()
	if err == nil {
		f.logger.Info("using Redis change notifier", zap.String("channel", f.channel))
		return n, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("Redis required for change notifications but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-process change notifier. "+
		"Other instances will not see this instance's writes until their TTL expires.",
		zap.Error(err),
	)
	return f.CreateLocalNotifier(), nil
}
