package idempotency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/storage/memory"
)

func TestCleanupWorker_DeleteExpiredInBatches(t *testing.T) {
	t.Parallel()

	repo := memory.NewIdempotencyRepository(time.Hour)
	past := time.Now().UTC().Add(-time.Minute)
	for i := 0; i < 5; i++ {
		if _, err := repo.CreateProcessing(fmt.Sprintf("k-%d", i), "hash", past); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := repo.CreateProcessing("live", "hash", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(2)).DeleteExpired(context.Background(), time.Now().UTC())
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 5 {
		t.Fatalf("expected 5 deleted, got %d", deleted)
	}
	if _, err := repo.Get("live"); err != nil {
		t.Fatalf("live key must survive cleanup: %v", err)
	}
}

func TestCleanupWorker_DeleteExpiredError(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{errs: []error{errors.New("boom")}}

	deleted, err := NewCleanupWorker(repo, WithBatchSize(10)).DeleteExpired(context.Background(), time.Now().UTC())
	if err == nil {
		t.Fatal("expected DeleteExpired error")
	}
	if deleted != 0 {
		t.Fatalf("expected 0 deleted, got %d", deleted)
	}
}

func TestCleanupWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := &stubCleanupRepo{}
	worker := NewCleanupWorker(repo, WithInterval(5*time.Millisecond), WithBatchSize(10))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop on context cancel")
	}
	if repo.calls() == 0 {
		t.Fatal("expected at least one cleanup run")
	}
}

// stubCleanupRepo отдаёт ошибки DeleteExpired по очереди.
type stubCleanupRepo struct {
	domain.IdempotencyRepository

	mu    sync.Mutex
	errs  []error
	count int
}

func (s *stubCleanupRepo) DeleteExpired(time.Time, int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return 0, err
	}
	return 0, nil
}

func (s *stubCleanupRepo) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
