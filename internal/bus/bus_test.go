package bus_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayanero/mimik/internal/bus"
)

func TestPublishBeforeSubscribeIsRetained(t *testing.T) {
	t.Parallel()
	b := bus.New()

	b.Publish("t", "first")
	b.Publish("t", "second")

	q := b.Subscribe("t")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ev, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.Payload != "first" {
		t.Errorf("got %v, want first", ev.Payload)
	}
}

func TestFIFOWithinTopic(t *testing.T) {
	t.Parallel()
	b := bus.New()
	q := b.Subscribe("t")

	const n = 100
	for i := 0; i < n; i++ {
		b.Publish("t", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i := 0; i < n; i++ {
		ev, err := q.Receive(ctx)
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if ev.Payload != i {
			t.Fatalf("out of order: got %v at position %d", ev.Payload, i)
		}
	}
}

func TestCompetingConsumersShareOneQueue(t *testing.T) {
	t.Parallel()
	b := bus.New()

	// Two independent Subscribe calls must return the same queue: every
	// event is delivered exactly once across both consumers.
	q1 := b.Subscribe("t")
	q2 := b.Subscribe("t")
	if q1 != q2 {
		t.Fatal("expected repeated Subscribe to return the same queue handle")
	}

	const n = 50
	for i := 0; i < n; i++ {
		b.Publish("t", i)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var (
		mu   sync.Mutex
		seen = make(map[any]bool)
		wg   sync.WaitGroup
	)
	for _, q := range []*bus.Queue{q1, q2} {
		wg.Add(1)
		go func(q *bus.Queue) {
			defer wg.Done()
			for {
				ev, err := q.Receive(ctx)
				if err != nil {
					return
				}
				mu.Lock()
				if seen[ev.Payload] {
					t.Errorf("event %v delivered twice", ev.Payload)
				}
				seen[ev.Payload] = true
				done := len(seen) == n
				mu.Unlock()
				if done {
					cancel()
					return
				}
			}
		}(q)
	}
	wg.Wait()

	if len(seen) != n {
		t.Errorf("delivered %d distinct events, want %d", len(seen), n)
	}
}

func TestReceiveUnblocksOnCancel(t *testing.T) {
	t.Parallel()
	b := bus.New()
	q := b.Subscribe("t")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := q.Receive(ctx)
		errCh <- err
	}()

	cancel()
	select {
	case err := <-errCh:
		if err != context.Canceled {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Receive did not unblock on cancellation")
	}
}

func TestReceiveWakesOnLatePublish(t *testing.T) {
	t.Parallel()
	b := bus.New()
	q := b.Subscribe("t")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	got := make(chan bus.Event, 1)
	go func() {
		ev, err := q.Receive(ctx)
		if err == nil {
			got <- ev
		}
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish("t", "late")

	select {
	case ev := <-got:
		if ev.Payload != "late" {
			t.Errorf("got %v, want late", ev.Payload)
		}
	case <-ctx.Done():
		t.Fatal("blocked receiver never woke for a late publish")
	}
}
