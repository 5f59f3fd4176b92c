package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockWorker struct {
	*BaseWorker
	runCount int32
	jitter   time.Duration
	runFunc  func(ctx context.Context) error
}

func newMockWorker(name string, interval time.Duration, enabled bool) *mockWorker {
	return &mockWorker{
		BaseWorker: NewBaseWorker(name, interval, enabled),
	}
}

func (m *mockWorker) Run(ctx context.Context) error {
	atomic.AddInt32(&m.runCount, 1)
	if m.runFunc != nil {
		return m.runFunc(ctx)
	}
	return nil
}

func (m *mockWorker) Jitter() time.Duration {
	return m.jitter
}

func (m *mockWorker) GetRunCount() int {
	return int(atomic.LoadInt32(&m.runCount))
}

func TestScheduler_StartStop(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("poll_test", 100*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	assert.True(t, scheduler.IsRunning())

	time.Sleep(250 * time.Millisecond)

	require.NoError(t, scheduler.Stop())
	assert.False(t, scheduler.IsRunning())

	// Immediate run plus at least two ticks.
	assert.GreaterOrEqual(t, worker.GetRunCount(), 2)
}

func TestScheduler_DisabledWorkerNeverRuns(t *testing.T) {
	scheduler := NewScheduler()

	worker := newMockWorker("disabled", 10*time.Millisecond, false)
	scheduler.RegisterWorker(worker)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	assert.Zero(t, worker.GetRunCount())
}

func TestScheduler_SurvivesPanickingWorker(t *testing.T) {
	scheduler := NewScheduler()

	panicky := newMockWorker("panicky", 50*time.Millisecond, true)
	panicky.runFunc = func(ctx context.Context) error {
		panic("boom")
	}
	healthy := newMockWorker("healthy", 50*time.Millisecond, true)

	scheduler.RegisterWorker(panicky)
	scheduler.RegisterWorker(healthy)

	require.NoError(t, scheduler.Start(context.Background()))
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, scheduler.Stop())

	// The panicking worker keeps getting rescheduled and the healthy one
	// is unaffected.
	assert.GreaterOrEqual(t, panicky.GetRunCount(), 2)
	assert.GreaterOrEqual(t, healthy.GetRunCount(), 2)
}

func TestScheduler_DoubleStartFails(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("w", time.Second, true))

	require.NoError(t, scheduler.Start(context.Background()))
	assert.Error(t, scheduler.Start(context.Background()))
	require.NoError(t, scheduler.Stop())
}

func TestScheduler_RegisterAfterStartIsIgnored(t *testing.T) {
	scheduler := NewScheduler()
	scheduler.RegisterWorker(newMockWorker("first", time.Second, true))

	require.NoError(t, scheduler.Start(context.Background()))
	defer scheduler.Stop()

	scheduler.RegisterWorker(newMockWorker("late", time.Second, true))
	assert.Len(t, scheduler.GetWorkers(), 1)
}

func TestScheduler_ContextCancellationStopsWorkers(t *testing.T) {
	scheduler := NewScheduler()
	worker := newMockWorker("ctx_worker", 50*time.Millisecond, true)
	scheduler.RegisterWorker(worker)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, scheduler.Start(ctx))

	time.Sleep(120 * time.Millisecond)
	cancel()
	time.Sleep(120 * time.Millisecond)

	countAfterCancel := worker.GetRunCount()
	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, countAfterCancel, worker.GetRunCount())

	require.NoError(t, scheduler.Stop())
}

func TestNextDelay_JitterBounds(t *testing.T) {
	interval := 100 * time.Millisecond
	jitter := 50 * time.Millisecond

	for i := 0; i < 100; i++ {
		d := nextDelay(interval, jitter)
		assert.GreaterOrEqual(t, d, interval)
		assert.Less(t, d, interval+jitter)
	}

	assert.Equal(t, interval, nextDelay(interval, 0))
}

func TestBaseWorker_HealthTracking(t *testing.T) {
	w := NewBaseWorker("health", time.Second, true)

	w.RecordRun()
	w.RecordError(assert.AnError)
	w.RecordRun()

	h := w.Health()
	assert.Equal(t, int64(3), h.RunCount)
	assert.Equal(t, int64(1), h.ErrorCount)
	assert.NoError(t, h.LastError)
	assert.True(t, h.Enabled)
}
