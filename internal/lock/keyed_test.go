package lock

import (
	"sync"
	"testing"
	"time"
)

func TestKeyed_SerializesSameKey(t *testing.T) {
	k := NewKeyed()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		counter int
		maxSeen int
		inside  int
	)

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := k.Lock(1)
			defer unlock()

			mu.Lock()
			inside++
			if inside > maxSeen {
				maxSeen = inside
			}
			mu.Unlock()

			counter++

			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Fatalf("counter = %d, want 50", counter)
	}
	if maxSeen != 1 {
		t.Fatalf("expected exclusive access, saw %d holders", maxSeen)
	}
	if k.Len() != 0 {
		t.Fatalf("expected no retained locks, got %d", k.Len())
	}
}

func TestKeyed_LockAllOppositeOrderNoDeadlock(t *testing.T) {
	k := NewKeyed()
	done := make(chan struct{})

	go func() {
		var wg sync.WaitGroup
		for i := 0; i < 100; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				unlock := k.LockAll(1, 2, 3)
				unlock()
			}()
			go func() {
				defer wg.Done()
				unlock := k.LockAll(3, 2, 1, 2)
				unlock()
			}()
		}
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("LockAll deadlocked")
	}
}

func TestKeyed_DifferentKeysIndependent(t *testing.T) {
	k := NewKeyed()

	unlock1 := k.Lock(1)
	defer unlock1()

	acquired := make(chan struct{})
	go func() {
		unlock2 := k.Lock(2)
		unlock2()
		close(acquired)
	}()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("lock on another key must not block")
	}
}

func TestKeyed_UnlockIsIdempotent(t *testing.T) {
	k := NewKeyed()
	unlock := k.LockAll(5, 6)
	unlock()
	unlock()

	if k.Len() != 0 {
		t.Fatalf("expected no retained locks, got %d", k.Len())
	}
}

func TestUniqueSorted(t *testing.T) {
	got := uniqueSorted([]int64{3, 1, 3, 2, 1})
	want := []int64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
