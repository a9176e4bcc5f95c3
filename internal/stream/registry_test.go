package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestPublishSubscribeOrdering(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	reg.Register("u1")

	for i := 0; i < 5; i++ {
		reg.Publish("u1", Event{Kind: KindProgress, CurrentStep: i})
	}

	sub := reg.Subscribe("u1")
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		ev, ok, err := sub.Next(ctx, time.Second)
		if err != nil || !ok {
			t.Fatalf("Next(%d): ok=%v err=%v", i, ok, err)
		}
		if ev.CurrentStep != i {
			t.Fatalf("out of order: want step %d, got %d", i, ev.CurrentStep)
		}
	}
}

func TestNextWakesOnPublish(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	reg.Register("u1")
	sub := reg.Subscribe("u1")

	go func() {
		time.Sleep(20 * time.Millisecond)
		reg.Publish("u1", Event{Kind: KindComplete})
	}()

	ev, ok, err := sub.Next(context.Background(), 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if ev.Kind != KindComplete {
		t.Fatalf("want %s, got %s", KindComplete, ev.Kind)
	}
}

func TestNextTimesOutForHeartbeat(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	sub := reg.Subscribe("u1")

	_, ok, err := sub.Next(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if ok {
		t.Fatal("expected empty result after idle wait")
	}
}

func TestNextHonorsContextCancellation(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	sub := reg.Subscribe("u1")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, _, err := sub.Next(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
}

func TestPublishAfterRemoveIsDroppedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	reg := NewRegistry(log.New(&buf, "", 0))
	reg.Register("u1")
	reg.Remove("u1")

	reg.Publish("u1", Event{Kind: KindProgress})

	if !strings.Contains(buf.String(), "evicted session u1") {
		t.Fatalf("expected drop log, got %q", buf.String())
	}
	if reg.Len() != 0 {
		t.Fatalf("expected no queues, got %d", reg.Len())
	}
}

func TestRemoveUnblocksSubscriber(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	reg.Register("u1")
	sub := reg.Subscribe("u1")

	go func() {
		time.Sleep(10 * time.Millisecond)
		reg.Remove("u1")
	}()

	_, _, err := sub.Next(context.Background(), time.Minute)
	if !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("want ErrQueueClosed, got %v", err)
	}
}

func TestConcurrentPublishersPreserveTotalCount(t *testing.T) {
	reg := NewRegistry(log.New(&bytes.Buffer{}, "", 0))
	reg.Register("u1")
	sub := reg.Subscribe("u1")

	const publishers, perPublisher = 8, 25
	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perPublisher; i++ {
				reg.Publish("u1", Event{Kind: KindProgress, Note: fmt.Sprintf("%d/%d", p, i)})
			}
		}(p)
	}
	wg.Wait()

	var got int
	for {
		_, ok, err := sub.Next(context.Background(), 10*time.Millisecond)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if !ok {
			break
		}
		got++
	}
	if got != publishers*perPublisher {
		t.Fatalf("want %d events, got %d", publishers*perPublisher, got)
	}
}
