package ratelimit

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/devx/appads-extractor/internal/models"
)

func TestAcquireReturnsInitialRate(t *testing.T) {
	l := New(1, 20, nil, nil, nil)
	rate, err := l.Acquire(context.Background(), models.StoreGooglePlay)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rate)
}

func TestReportSuccessRaisesRateAfterStreak(t *testing.T) {
	l := New(1, 20, nil, nil, nil)
	for i := 0; i < successStreakForIncrease; i++ {
		l.ReportSuccess(models.StoreGooglePlay)
	}
	st := l.stateFor(models.StoreGooglePlay)
	st.mu.Lock()
	rate := st.currentRate
	st.mu.Unlock()
	assert.InDelta(t, 10.1, rate, 1e-9)
}

func TestReportErrorBacksOffMonotonically(t *testing.T) {
	l := New(1, 20, nil, nil, nil)
	prev := l.stateFor(models.StoreAmazon)
	prev.mu.Lock()
	initial := prev.currentRate
	prev.mu.Unlock()

	l.ReportError(models.StoreAmazon, 503)
	st := l.stateFor(models.StoreAmazon)
	st.mu.Lock()
	after1 := st.currentRate
	st.mu.Unlock()
	assert.Less(t, after1, initial)

	l.ReportError(models.StoreAmazon, 503)
	st.mu.Lock()
	after2 := st.currentRate
	st.mu.Unlock()
	assert.LessOrEqual(t, after2, after1)
}

func TestAcquireSerializesConcurrentCallsForSameKind(t *testing.T) {
	l := New(1, 20, nil, nil, nil)
	const n = 5

	var mu sync.Mutex
	var fireTimes []time.Time
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := l.Acquire(context.Background(), models.StoreGooglePlay)
			require.NoError(t, err)
			mu.Lock()
			fireTimes = append(fireTimes, time.Now())
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(fireTimes, func(i, j int) bool { return fireTimes[i].Before(fireTimes[j]) })

	st := l.stateFor(models.StoreGooglePlay)
	st.mu.Lock()
	rate := st.currentRate
	st.mu.Unlock()
	interval := time.Duration(float64(time.Second) / rate)

	for i := 1; i < len(fireTimes); i++ {
		gap := fireTimes[i].Sub(fireTimes[i-1])
		assert.GreaterOrEqualf(t, gap, interval/2, "slot %d fired too close to slot %d, pacing burst detected", i, i-1)
	}
}

func TestRateNeverGoesBelowMin(t *testing.T) {
	l := New(1, 20, nil, nil, nil)
	for i := 0; i < 20; i++ {
		l.ReportError(models.StoreSamsung, 429)
	}
	st := l.stateFor(models.StoreSamsung)
	st.mu.Lock()
	rate := st.currentRate
	st.mu.Unlock()
	assert.GreaterOrEqual(t, rate, 1.0)
}
