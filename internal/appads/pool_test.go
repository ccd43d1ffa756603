package appads

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsSubmittedTask(t *testing.T) {
	p := NewPool(Config{MinWorkers: 1, MaxWorkers: 2, TaskTimeout: time.Second}, nil, nil)
	defer p.Shutdown()

	future := p.Submit(func(ctx context.Context) (interface{}, error) {
		return 42, nil
	}, PriorityNormal)

	v, err := future.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, v)
}

func TestPoolHigherPriorityRunsFirst(t *testing.T) {
	p := NewPool(Config{MinWorkers: 1, MaxWorkers: 1, TaskTimeout: time.Second}, nil, nil)
	defer p.Shutdown()

	var order []int
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	block := make(chan struct{})
	// Occupy the single worker so subsequent submits queue up in priority order.
	p.Submit(func(ctx context.Context) (interface{}, error) {
		<-block
		return nil, nil
	}, PriorityNormal)

	done := make(chan struct{}, 3)
	record := func(n int) {
		<-mu
		order = append(order, n)
		mu <- struct{}{}
		done <- struct{}{}
	}

	p.Submit(func(ctx context.Context) (interface{}, error) { record(1); return nil, nil }, PriorityLow)
	p.Submit(func(ctx context.Context) (interface{}, error) { record(2); return nil, nil }, PriorityCritical)
	p.Submit(func(ctx context.Context) (interface{}, error) { record(3); return nil, nil }, PriorityHigh)

	close(block)
	for i := 0; i < 3; i++ {
		<-done
	}

	require.Len(t, order, 3)
	assert.Equal(t, 2, order[0])
	assert.Equal(t, 3, order[1])
	assert.Equal(t, 1, order[2])
}

func TestPoolTaskTimeout(t *testing.T) {
	p := NewPool(Config{MinWorkers: 1, MaxWorkers: 1, TaskTimeout: 20 * time.Millisecond}, nil, nil)
	defer p.Shutdown()

	future := p.Submit(func(ctx context.Context) (interface{}, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}, PriorityNormal)

	_, err := future.Wait(context.Background())
	assert.Error(t, err)
}

func TestPoolScalesUpUnderLoad(t *testing.T) {
	p := NewPool(Config{MinWorkers: 1, MaxWorkers: 4, TaskTimeout: time.Second}, nil, nil)
	defer p.Shutdown()

	var running int32
	block := make(chan struct{})
	for i := 0; i < 4; i++ {
		p.Submit(func(ctx context.Context) (interface{}, error) {
			atomic.AddInt32(&running, 1)
			<-block
			return nil, nil
		}, PriorityNormal)
	}

	time.Sleep(100 * time.Millisecond)
	close(block)

	stats := p.Stats()
	assert.GreaterOrEqual(t, stats.ActiveWorkers, 1)
}
