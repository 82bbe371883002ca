package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/avast/retry-go/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/xela07ax/retention-registry/internal/domain/ports"
)

// RedisPublisher шлет уведомления в Redis Pub/Sub.
type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.rdb.Publish(ctx, channel, payload).Err()
}

// NopPublisher используется, когда Redis выключен.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, []byte) error { return nil }

// ReliablePublisher оборачивает доставку в Circuit Breaker и ограниченные повторы.
// Если Redis лежит, предохранитель открывается и мутации не ждут таймаутов.
type ReliablePublisher struct {
	next     ports.ChangePublisher
	cb       *gobreaker.CircuitBreaker
	attempts uint
	timeout  time.Duration
	failures prometheus.Counter
	logger   *zap.Logger
}

func NewReliablePublisher(next ports.ChangePublisher, cfg NotifyConfig, reg prometheus.Registerer, logger *zap.Logger) *ReliablePublisher {
	// Null Object Pattern - если рег не передан, используем локальный
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	logger = logger.Named("publisher")

	threshold := cfg.CBFailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	attempts := cfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "change-publisher",
		MaxRequests: cfg.CBMaxRequests,
		Interval:    cfg.CBInterval,
		Timeout:     cfg.CBTimeout, // Время, через которое CB попробует "закрыться"
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &ReliablePublisher{
		next:     next,
		cb:       cb,
		attempts: attempts,
		timeout:  cfg.Timeout,
		failures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "retention_publisher_failures_total",
			Help: "Total number of change notifications that could not be delivered.",
		}),
		logger: logger,
	}
}

func (p *ReliablePublisher) Publish(ctx context.Context, channel string, payload []byte) error {
	_, err := p.cb.Execute(func() (interface{}, error) {
		r := retry.New(
			retry.Context(ctx),
			retry.Attempts(p.attempts),
			retry.Delay(50*time.Millisecond),
			retry.DelayType(retry.BackOffDelay),
		)

		return nil, r.Do(func() error {
			callCtx := ctx
			if p.timeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(ctx, p.timeout)
				defer cancel()
			}
			return p.next.Publish(callCtx, channel, payload)
		})
	})
	if err != nil {
		p.failures.Inc()
		return fmt.Errorf("publish to %s: %w", channel, err)
	}
	return nil
}
