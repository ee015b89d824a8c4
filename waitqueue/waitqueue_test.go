package waitqueue

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestFIFOOrder(t *testing.T) {
	q := New[int]()
	for i := 0; i < 5; i++ {
		q.Push(i)
	}
	if q.Empty() || q.Size() != 5 {
		t.Fatalf("size = %d, empty = %v after 5 pushes", q.Size(), q.Empty())
	}
	for i := 0; i < 5; i++ {
		v, ok := q.FrontAndPop()
		if !ok || v != i {
			t.Fatalf("pop %d: got %d ok=%v", i, v, ok)
		}
	}
	if !q.Empty() {
		t.Fatal("queue not empty after draining")
	}
}

func TestFrontAndPopEmpty(t *testing.T) {
	q := New[string]()
	v, ok := q.FrontAndPop()
	if ok || v != "" {
		t.Fatalf("pop on empty queue: got %q ok=%v", v, ok)
	}
}

func TestWaitForSizeBlocksUntilNthPush(t *testing.T) {
	q := New[int]()
	const n = 3

	got := make(chan int, 1)
	go func() { got <- q.WaitForSize(n) }()

	for i := 0; i < n-1; i++ {
		q.Push(i)
		select {
		case size := <-got:
			t.Fatalf("WaitForSize returned %d after only %d pushes", size, i+1)
		case <-time.After(50 * time.Millisecond):
		}
	}

	q.Push(n - 1)
	select {
	case size := <-got:
		if size < n {
			t.Fatalf("observed size %d, want >= %d", size, n)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForSize did not wake on the n-th push")
	}
}

func TestWaitForSizeAlreadySatisfied(t *testing.T) {
	q := New[int]()
	q.Push(1)
	q.Push(2)

	got := make(chan int, 1)
	go func() { got <- q.WaitForSize(2) }()

	select {
	case size := <-got:
		if size < 2 {
			t.Fatalf("observed size %d, want >= 2", size)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForSize blocked although the queue already held n items")
	}
}

func TestPushWakesExactlyOneWaiter(t *testing.T) {
	q := New[int]()

	results := make(chan int, 2)
	for i := 0; i < 2; i++ {
		go func() { results <- q.WaitForSize(1) }()
	}
	// Give both waiters time to park; a waiter arriving after the push
	// would legitimately return straight away on the satisfied size.
	time.Sleep(200 * time.Millisecond)

	q.Push(1)
	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("no waiter woke on push")
	}
	select {
	case <-results:
		t.Fatal("second waiter woke without a second push")
	case <-time.After(100 * time.Millisecond):
	}

	q.Push(2)
	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("second waiter did not wake on the second push")
	}
}

func TestConcurrentFrontAndPop(t *testing.T) {
	q := New[int]()
	const total = 20000
	for i := 0; i < total; i++ {
		q.Push(i)
	}

	var taken int64
	seen := make([]atomic.Bool, total)
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok := q.FrontAndPop()
				if !ok {
					if atomic.LoadInt64(&taken) >= total {
						return
					}
					runtime.Gosched()
					continue
				}
				if seen[v].Swap(true) {
					t.Errorf("element %d taken twice", v)
					return
				}
				atomic.AddInt64(&taken, 1)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatalf("consumers stalled: took %d/%d", atomic.LoadInt64(&taken), total)
	}

	if got := atomic.LoadInt64(&taken); got != total {
		t.Fatalf("lost elements: took %d of %d", got, total)
	}
	if !q.Empty() {
		t.Fatalf("queue not empty after concurrent drain, %d left", q.Size())
	}
}

func TestProducerConsumerHandoff(t *testing.T) {
	q := New[int]()
	const total = 5000
	var sum int64

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		drained := 0
		for drained < total {
			q.WaitForSize(1)
			for {
				v, ok := q.FrontAndPop()
				if !ok {
					break
				}
				atomic.AddInt64(&sum, int64(v))
				drained++
			}
		}
	}()

	var want int64
	for i := 1; i <= total; i++ {
		q.Push(i)
		want += int64(i)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("consumer did not drain the queue")
	}
	if got := atomic.LoadInt64(&sum); got != want {
		t.Fatalf("checksum mismatch: got %d, want %d", got, want)
	}
}
