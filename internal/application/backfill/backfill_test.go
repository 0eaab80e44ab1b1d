package backfill_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c3-joao/windturbine-backend/internal/application/backfill"
	"github.com/c3-joao/windturbine-backend/internal/application/generator"
	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infrastructure/repository/memory"
)

type recordingWriter struct {
	mu       sync.Mutex
	readings []domain.Reading
	failOnce bool
}

func (w *recordingWriter) CreateReadings(_ context.Context, readings []domain.Reading) ([]domain.Reading, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failOnce {
		w.failOnce = false
		return nil, errors.New("temporary failure")
	}
	w.readings = append(w.readings, readings...)
	return readings, nil
}

var fleet = []domain.Turbine{
	{ID: "T1", Name: "North", RatedCapacityKW: 2000, Active: true},
	{ID: "T2", Name: "South", RatedCapacityKW: 1500, Active: true},
}

func newGenerator() *generator.Generator {
	return generator.New(generator.Config{Location: time.UTC, Source: generator.SeededSource(7)})
}

func TestProducerEmitsBatchesForEveryStep(t *testing.T) {
	t.Parallel()

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	producer := backfill.NewProducer(backfill.Config{
		Turbines:  fleet,
		From:      from,
		To:        from.Add(2 * time.Hour),
		BatchSize: 4,
	}, newGenerator(), nil)

	out := make(chan backfill.Batch)
	go producer.Run(context.Background(), out)

	var sizes []int
	var readings []domain.Reading
	for batch := range out {
		assert.NotEmpty(t, batch.ID)
		sizes = append(sizes, len(batch.Readings))
		readings = append(readings, batch.Readings...)
	}

	assert.Equal(t, []int{4, 2}, sizes)
	require.Len(t, readings, 6)
	assert.Equal(t, from, readings[0].Timestamp)
	assert.Equal(t, from.Add(2*time.Hour), readings[5].Timestamp)
	for _, r := range readings {
		assert.False(t, r.IsOutlier)
	}
}

func TestProducerStopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	producer := backfill.NewProducer(backfill.Config{
		Turbines:  fleet,
		From:      from,
		To:        from.Add(24 * time.Hour),
		BatchSize: 1,
	}, newGenerator(), nil)

	out := make(chan backfill.Batch)
	done := make(chan struct{})
	go func() {
		producer.Run(ctx, out)
		close(done)
	}()

	<-out
	cancel()
	waitForDone(t, done)
}

func TestPoolPersistsBatchesAndCountsFailures(t *testing.T) {
	t.Parallel()

	writer := &recordingWriter{failOnce: true}
	pool := backfill.NewPool(2, writer, nil)

	batches := make(chan backfill.Batch, 3)
	batches <- backfill.Batch{ID: "b1", Readings: []domain.Reading{{TurbineID: "T1"}, {TurbineID: "T2"}}}
	batches <- backfill.Batch{ID: "b2", Readings: []domain.Reading{{TurbineID: "T1"}, {TurbineID: "T2"}}}
	batches <- backfill.Batch{ID: "b3", Readings: []domain.Reading{{TurbineID: "T1"}}}
	close(batches)

	stats := pool.Run(context.Background(), batches)

	assert.Equal(t, int64(3), stats.Batches)
	assert.Equal(t, stats.Saved+stats.Failed, int64(5))
	assert.Positive(t, stats.Failed)
	assert.Len(t, writer.readings, int(stats.Saved))
}

func TestPoolStopsOnContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	pool := backfill.NewPool(1, &recordingWriter{}, nil)

	batches := make(chan backfill.Batch)
	done := make(chan struct{})
	go func() {
		pool.Run(ctx, batches)
		close(done)
	}()

	cancel()
	waitForDone(t, done)
}

func TestBackfillIntoMemoryRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := memory.New()
	for _, turbine := range fleet {
		_, err := repo.CreateTurbine(ctx, turbine)
		require.NoError(t, err)
	}

	from := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	producer := backfill.NewProducer(backfill.Config{
		Turbines:      fleet,
		From:          from,
		To:            from.Add(23 * time.Hour),
		BatchSize:     10,
		OutlierChance: 5,
	}, newGenerator(), nil)

	batches := make(chan backfill.Batch)
	go producer.Run(ctx, batches)
	stats := backfill.NewPool(3, repo, nil).Run(ctx, batches)

	assert.Equal(t, int64(48), stats.Saved)
	assert.Zero(t, stats.Failed)

	_, total, err := repo.ListReadings(ctx, domain.ReadingFilter{})
	require.NoError(t, err)
	assert.Equal(t, 48, total)
}

func waitForDone(t *testing.T, done <-chan struct{}) {
	t.Helper()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("did not stop in time")
	}
}
