package status

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/healthtrack-api/internal/model"
	"github.com/jwalitptl/healthtrack-api/internal/repository"
	"github.com/jwalitptl/healthtrack-api/internal/repository/memory"
	apperrors "github.com/jwalitptl/healthtrack-api/pkg/errors"
	"github.com/jwalitptl/healthtrack-api/pkg/logger"
	"github.com/jwalitptl/healthtrack-api/pkg/metrics"
	"github.com/jwalitptl/healthtrack-api/pkg/vitals"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type changeRecorder struct {
	mu      sync.Mutex
	changes []model.PatientStatusChange
}

func (r *changeRecorder) OnStatusChange(_ context.Context, c model.PatientStatusChange) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

type fixture struct {
	store   *memory.Store
	clock   *clock
	changes *changeRecorder
	metrics *metrics.Metrics
	svc     *Service
	patient uuid.UUID
}

func setup(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.NewStore(),
		clock:   &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		changes: &changeRecorder{},
		metrics: metrics.NewMetrics("test", prometheus.NewRegistry()),
	}
	f.svc = NewService(f.store.Patients(), f.store.Readings(), time.Second, logger.Nop(), f.metrics,
		WithClock(f.clock.Now), WithListeners(f.changes))

	p := &model.Patient{Base: model.Base{ID: uuid.New()}, Name: "Jane Doe"}
	require.NoError(t, f.store.Patients().Create(context.Background(), p))
	f.patient = p.ID
	return f
}

func (f *fixture) addReading(t *testing.T, critical bool, age time.Duration) *model.Reading {
	t.Helper()
	r := &model.Reading{
		ID:         uuid.New(),
		PatientID:  f.patient,
		TestType:   vitals.TestTypeHeartRate,
		Value:      "130",
		IsCritical: critical,
		RecordedAt: f.clock.Now().Add(-age),
	}
	require.NoError(t, f.store.Readings().CreateBatch(context.Background(), []*model.Reading{r}))
	return r
}

func (f *fixture) isCritical(t *testing.T) bool {
	t.Helper()
	p, err := f.store.Patients().Get(context.Background(), f.patient)
	require.NoError(t, err)
	return p.IsCritical
}

func TestReconcile_CriticalInsideWindow(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, 23*time.Hour)

	changed, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, f.isCritical(t))
}

func TestReconcile_CriticalOutsideWindow(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, 25*time.Hour)

	changed, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.False(t, f.isCritical(t))
}

func TestReconcile_WindowBoundaryIsInclusive(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, Window)

	_, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.True(t, f.isCritical(t))
}

func TestReconcile_ClearsByTimeAlone(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, 23*time.Hour)

	_, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	require.True(t, f.isCritical(t))

	f.clock.Advance(2 * time.Hour)

	changed, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.False(t, f.isCritical(t))
}

func TestReconcile_StableReadingDoesNotClearRecentCritical(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, time.Hour)
	_, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)

	f.addReading(t, false, 0)
	changed, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.True(t, f.isCritical(t))
}

func TestReconcile_IgnoresSoftDeletedReadings(t *testing.T) {
	f := setup(t)
	r := f.addReading(t, true, time.Hour)
	_, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)

	_, err = f.store.Readings().SoftDelete(context.Background(), r.ID)
	require.NoError(t, err)

	_, err = f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	assert.False(t, f.isCritical(t))
}

func TestReconcile_IsIdempotent(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, time.Hour)

	first, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	second, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)

	assert.True(t, first)
	assert.False(t, second)
	assert.True(t, f.isCritical(t))
	assert.Len(t, f.changes.changes, 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Reconciles.WithLabelValues("unchanged")))
}

func TestReconcile_NotifiesListenersOnTransition(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, time.Hour)

	_, err := f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)
	f.clock.Advance(24 * time.Hour)
	_, err = f.svc.Reconcile(context.Background(), f.patient)
	require.NoError(t, err)

	require.Len(t, f.changes.changes, 2)
	assert.Equal(t, f.patient, f.changes.changes[0].PatientID)
	assert.True(t, f.changes.changes[0].IsCritical)
	assert.False(t, f.changes.changes[1].IsCritical)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StatusTransitions.WithLabelValues("critical")))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.StatusTransitions.WithLabelValues("stable")))
}

func TestReconcile_ConcurrentCallsConverge(t *testing.T) {
	f := setup(t)
	f.addReading(t, true, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.svc.ReconcileAsync(context.Background(), f.patient)
		}()
	}
	wg.Wait()

	assert.True(t, f.isCritical(t))
	assert.Len(t, f.changes.changes, 1)
}

type failingReadings struct {
	repository.ReadingRepository
	err   error
	panic bool
}

func (r failingReadings) HasCriticalSince(ctx context.Context, id uuid.UUID, since time.Time) (bool, error) {
	if r.panic {
		panic("boom")
	}
	return false, r.err
}

func TestReconcile_QueryFailureIsAggregationError(t *testing.T) {
	f := setup(t)
	svc := NewService(f.store.Patients(), failingReadings{err: errors.New("db down")}, time.Second, logger.Nop(), f.metrics)

	_, err := svc.Reconcile(context.Background(), f.patient)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.ErrAggregation))
	assert.False(t, f.isCritical(t))
}

func TestReconcileAsync_SwallowsFailures(t *testing.T) {
	f := setup(t)
	svc := NewService(f.store.Patients(), failingReadings{err: errors.New("db down")}, time.Second, logger.Nop(), f.metrics)
	assert.NotPanics(t, func() { svc.ReconcileAsync(context.Background(), f.patient) })

	svc = NewService(f.store.Patients(), failingReadings{panic: true}, time.Second, logger.Nop(), f.metrics)
	assert.NotPanics(t, func() { svc.ReconcileAsync(context.Background(), f.patient) })

	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Reconciles.WithLabelValues("error")))
}

func TestReconcile_UnknownPatientIsNoop(t *testing.T) {
	f := setup(t)

	changed, err := f.svc.Reconcile(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, changed)
}
