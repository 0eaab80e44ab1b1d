package backfill

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/c3-joao/windturbine-backend/internal/domain"
	"github.com/c3-joao/windturbine-backend/internal/infra"
)

// Writer stores reading batches.
type Writer interface {
	CreateReadings(ctx context.Context, readings []domain.Reading) ([]domain.Reading, error)
}

// Stats summarises a pool run.
type Stats struct {
	Batches int64
	Saved   int64
	Failed  int64
}

// Pool consumes batches and stores their readings using the writer.
type Pool struct {
	repo        Writer
	workerCount int
	logger      Logger

	batches atomic.Int64
	saved   atomic.Int64
	failed  atomic.Int64
}

// NewPool creates a pool with the provided writer and worker count.
func NewPool(workerCount int, repo Writer, logger Logger) *Pool {
	if workerCount < 0 {
		workerCount = 0
	}
	return &Pool{repo: repo, workerCount: workerCount, logger: logger}
}

// Run starts the workers and blocks until the context is cancelled or the
// batches channel is closed.
func (p *Pool) Run(ctx context.Context, batches <-chan Batch) Stats {
	if p.workerCount == 0 {
		p.drainUntilClosed(ctx, batches)
		return p.stats()
	}

	var wg sync.WaitGroup
	wg.Add(p.workerCount)
	for i := 0; i < p.workerCount; i++ {
		go func() {
			defer wg.Done()
			infra.WorkerStarted()
			defer infra.WorkerFinished()
			p.workerLoop(ctx, batches)
		}()
	}
	wg.Wait()
	return p.stats()
}

func (p *Pool) workerLoop(ctx context.Context, batches <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			p.log(ctx, "worker: context cancelled: %v", ctx.Err())
			return
		case batch, ok := <-batches:
			if !ok {
				return
			}
			p.processBatch(ctx, batch)
		}
	}
}

func (p *Pool) processBatch(ctx context.Context, batch Batch) {
	p.batches.Add(1)
	saved, err := p.repo.CreateReadings(ctx, batch.Readings)
	if err != nil {
		p.failed.Add(int64(len(batch.Readings)))
		p.log(ctx, "worker: failed to store batch=%s size=%d: %v", batch.ID, len(batch.Readings), err)
		return
	}
	p.saved.Add(int64(len(saved)))
}

func (p *Pool) drainUntilClosed(ctx context.Context, batches <-chan Batch) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-batches:
			if !ok {
				return
			}
		}
	}
}

func (p *Pool) stats() Stats {
	return Stats{Batches: p.batches.Load(), Saved: p.saved.Load(), Failed: p.failed.Load()}
}

func (p *Pool) log(ctx context.Context, format string, v ...any) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(ctx, format, v...)
}
