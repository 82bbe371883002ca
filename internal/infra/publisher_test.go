package infra

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyPublisher struct {
	calls    atomic.Int32
	failures int32 // первые N вызовов падают
	channel  string
	payload  []byte
}

func (p *flakyPublisher) Publish(_ context.Context, channel string, payload []byte) error {
	n := p.calls.Add(1)
	if n <= p.failures {
		return errors.New("redis: connection refused")
	}
	p.channel = channel
	p.payload = payload
	return nil
}

func TestReliablePublisher_RetriesTransientFailure(t *testing.T) {
	next := &flakyPublisher{failures: 2}
	p := NewReliablePublisher(next, NotifyConfig{RetryAttempts: 3, Timeout: time.Second}, nil, zap.NewNop())

	err := p.Publish(context.Background(), RedisChanModelChanges, []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, int32(3), next.calls.Load())
	assert.Equal(t, RedisChanModelChanges, next.channel)
}

func TestReliablePublisher_CountsFailuresAndOpensBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	next := &flakyPublisher{failures: 1000}
	p := NewReliablePublisher(next, NotifyConfig{
		RetryAttempts:      1,
		CBFailureThreshold: 2,
		CBTimeout:          time.Minute,
	}, reg, zap.NewNop())

	ctx := context.Background()
	require.Error(t, p.Publish(ctx, RedisChanPolicyChanges, nil))
	require.Error(t, p.Publish(ctx, RedisChanPolicyChanges, nil))

	err := p.Publish(ctx, RedisChanPolicyChanges, nil)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, int32(2), next.calls.Load())
	assert.Equal(t, float64(3), testutil.ToFloat64(p.failures))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), "any", nil))
}
