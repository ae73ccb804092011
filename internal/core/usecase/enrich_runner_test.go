package usecase

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type blockingEnricher struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
	ctxErr  atomic.Value
}

func (b *blockingEnricher) EnrichBatch(ctx context.Context, _ int) (int, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	<-b.release
	if err := ctx.Err(); err != nil {
		b.ctxErr.Store(err)
	}
	return 1, nil
}

func TestBackgroundRunnerSkipsOverlappingTriggers(t *testing.T) {
	enricher := &blockingEnricher{started: make(chan struct{}, 1), release: make(chan struct{})}
	runner := NewBackgroundEnrichmentRunner(enricher, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	if err := runner.TriggerEnrichment(ctx, 10); err != nil {
		t.Fatalf("TriggerEnrichment() error = %v", err)
	}
	<-enricher.started
	cancel()

	if err := runner.TriggerEnrichment(context.Background(), 10); err != nil {
		t.Fatalf("second TriggerEnrichment() error = %v", err)
	}

	close(enricher.release)
	runner.Wait()

	if got := enricher.calls.Load(); got != 1 {
		t.Fatalf("expected 1 batch, got %d", got)
	}
	if v := enricher.ctxErr.Load(); v != nil {
		t.Fatalf("batch context cancelled with caller: %v", v)
	}
}

func TestBackgroundRunnerAcceptsTriggerAfterCompletion(t *testing.T) {
	enricher := &blockingEnricher{started: make(chan struct{}, 2), release: make(chan struct{})}
	close(enricher.release)
	runner := NewBackgroundEnrichmentRunner(enricher, time.Minute, nil)

	_ = runner.TriggerEnrichment(context.Background(), 5)
	runner.Wait()
	_ = runner.TriggerEnrichment(context.Background(), 5)
	runner.Wait()

	if got := enricher.calls.Load(); got != 2 {
		t.Fatalf("expected 2 batches, got %d", got)
	}
}
