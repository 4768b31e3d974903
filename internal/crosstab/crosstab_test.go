package crosstab

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
)

func waitSignal(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change notification")
	}
	return ""
}

func expectSilence(t *testing.T, ch <-chan string) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected notification %q", v)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubNotifiesOnlySiblings(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a, b := hub.Open(), hub.Open()

	gotA := make(chan string, 4)
	gotB := make(chan string, 4)
	stopA, err := a.Watch(ctx, "k", func(v string) { gotA <- v })
	if err != nil {
		t.Fatalf("watch a: %v", err)
	}
	defer stopA()
	stopB, err := b.Watch(ctx, "k", func(v string) { gotB <- v })
	if err != nil {
		t.Fatalf("watch b: %v", err)
	}
	defer stopB()

	if err := a.Write(ctx, "k", "1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v := waitSignal(t, gotB); v != "1" {
		t.Fatalf("expected 1, got %q", v)
	}
	expectSilence(t, gotA)

	// same value is not a change
	if err := b.Write(ctx, "k", "1"); err != nil {
		t.Fatalf("write: %v", err)
	}
	expectSilence(t, gotA)

	if v, ok := hub.Value("k"); !ok || v != "1" {
		t.Fatalf("unexpected stored value %q", v)
	}
}

func TestHubStopDetachesWatcher(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	a, b := hub.Open(), hub.Open()
	got := make(chan string, 1)
	stop, _ := b.Watch(ctx, "k", func(v string) { got <- v })
	stop()
	stop()
	_ = a.Write(ctx, "k", "x")
	expectSilence(t, got)
}

func TestBroadcasterRoundTrip(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	key := MarkerKey("sess")
	writer := NewBroadcaster(hub.Open(), key, nil)
	reader := NewBroadcaster(hub.Open(), key, nil)

	fired := make(chan string, 4)
	stop := reader.Listen(ctx, func() { fired <- "x" })
	defer stop()

	writer.Broadcast(ctx)
	waitSignal(t, fired)
	writer.Broadcast(ctx)
	waitSignal(t, fired)
}

func TestBroadcasterStampsStrictlyIncrease(t *testing.T) {
	hub := NewHub()
	b := NewBroadcaster(hub.Open(), "k", nil)
	fixed := time.UnixMilli(1000)
	b.now = func() time.Time { return fixed }

	b.Broadcast(context.Background())
	first, _ := hub.Value("k")
	b.Broadcast(context.Background())
	second, _ := hub.Value("k")

	f, _ := strconv.ParseInt(first, 10, 64)
	s, _ := strconv.ParseInt(second, 10, 64)
	if s <= f {
		t.Fatalf("expected increasing stamps, got %d then %d", f, s)
	}
}

func TestBroadcasterDegradesWhenUnavailable(t *testing.T) {
	ctx := context.Background()
	hub := NewHub()
	hub.SetUnavailable(true)
	b := NewBroadcaster(hub.Open(), "k", nil)

	stop := b.Listen(ctx, func() { t.Fatalf("listener must not fire") })
	if stop == nil {
		t.Fatalf("stop must be non-nil")
	}
	stop()
	b.Broadcast(ctx)
	if _, ok := hub.Value("k"); ok {
		t.Fatalf("unavailable hub must not store values")
	}

	var nilB *Broadcaster
	nilB.Broadcast(ctx)
	nilB.Listen(ctx, func() {})()
}

func TestRedisChannel(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()

	a := NewRedis(client, nil)
	b := NewRedis(client, nil)
	key := MarkerKey("redis-test-" + strconv.FormatInt(time.Now().UnixNano(), 10))

	gotA := make(chan string, 2)
	gotB := make(chan string, 2)
	stopA, err := a.Watch(ctx, key, func(v string) { gotA <- v })
	if err != nil {
		t.Fatalf("watch a: %v", err)
	}
	defer stopA()
	stopB, err := b.Watch(ctx, key, func(v string) { gotB <- v })
	if err != nil {
		t.Fatalf("watch b: %v", err)
	}
	defer stopB()

	if err := a.Write(ctx, key, "42"); err != nil {
		t.Fatalf("write: %v", err)
	}
	if v := waitSignal(t, gotB); v != "42" {
		t.Fatalf("expected 42, got %q", v)
	}
	expectSilence(t, gotA)

	stored, err := client.Get(ctx, key).Result()
	if err != nil || stored != "42" {
		t.Fatalf("expected stored marker, got %q %v", stored, err)
	}
}
