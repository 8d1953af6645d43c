package queue

import (
	"sync"
	"testing"
)

func TestPushPopOrder(t *testing.T) {
	q := New[int](4, 0)
	for i := 0; i < 100; i++ {
		if !q.Push(i) {
			t.Fatalf("push %d rejected", i)
		}
	}
	for i := 0; i < 100; i++ {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("pop %d reported closed", i)
		}
		if got != i {
			t.Fatalf("pop returned %d, want %d", got, i)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue not empty, len=%d", q.Len())
	}
}

func TestGrowPreservesOrderAcrossWrap(t *testing.T) {
	q := New[int](4, 0)
	// Force head to wrap before a resize.
	for i := 0; i < 3; i++ {
		q.Push(i)
	}
	q.Pop()
	q.Pop()
	for i := 3; i < 40; i++ {
		q.Push(i)
	}
	want := 2
	for {
		got, ok := q.TryPop()
		if !ok {
			break
		}
		if got != want {
			t.Fatalf("pop returned %d, want %d", got, want)
		}
		want++
	}
	if want != 40 {
		t.Fatalf("drained up to %d, want 40", want)
	}
	if s := q.Stats(); s.Resizes == 0 {
		t.Fatal("expected at least one resize")
	}
}

func TestCloseDrainsRemainder(t *testing.T) {
	q := New[string](2, 0)
	q.Push("a")
	q.Push("b")
	q.Close()

	if q.Push("c") {
		t.Fatal("push accepted after close")
	}
	if got, ok := q.Pop(); !ok || got != "a" {
		t.Fatalf("pop = %q ok=%v, want a", got, ok)
	}
	if got, ok := q.Pop(); !ok || got != "b" {
		t.Fatalf("pop = %q ok=%v, want b", got, ok)
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("pop succeeded on closed empty queue")
	}
	// Close twice is fine.
	q.Close()
}

func TestCloseWakesBlockedConsumer(t *testing.T) {
	q := New[int](1, 0)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, ok := q.Pop(); ok {
			t.Error("pop on closed queue reported ok")
		}
	}()
	q.Close()
	<-done
}

func TestConcurrentProducerConsumer(t *testing.T) {
	const total = 10000
	q := New[int](8, 0)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < total; i++ {
			q.Push(i)
		}
		q.Close()
	}()

	next := 0
	for {
		got, ok := q.Pop()
		if !ok {
			break
		}
		if got != next {
			t.Fatalf("out of order: got %d, want %d", got, next)
		}
		next++
	}
	wg.Wait()
	if next != total {
		t.Fatalf("consumed %d, want %d", next, total)
	}
	if s := q.Stats(); s.Pushed != total || s.Popped != total {
		t.Fatalf("stats pushed=%d popped=%d", s.Pushed, s.Popped)
	}
}
