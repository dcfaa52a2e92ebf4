package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

// testClient connects to OPTIPRICE_TEST_REDIS_ADDR or skips the test.
func testClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("OPTIPRICE_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("OPTIPRICE_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c, err := New(ctx, ClientConfig{Addr: addr, Prefix: "optiprice-test:" + uuid.NewString() + ":"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPayloadBytes(t *testing.T) {
	if b, ok := payloadBytes("abc"); !ok || string(b) != "abc" {
		t.Errorf("string payload = %q, %v", b, ok)
	}
	if b, ok := payloadBytes([]byte("xyz")); !ok || string(b) != "xyz" {
		t.Errorf("bytes payload = %q, %v", b, ok)
	}
	if _, ok := payloadBytes(42); ok {
		t.Error("int payload accepted")
	}
}

func TestProductCache(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	cache := NewProductCache(c, time.Minute)

	if _, err := cache.Get(ctx, "p-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("miss err = %v", err)
	}
	suggested := 110.0
	if err := cache.Set(ctx, domain.Product{ID: "p-001", Name: "Floor chair", Price: 100, SuggestedPrice: &suggested}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := cache.Get(ctx, "p-001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Floor chair" || got.SuggestedPrice == nil || *got.SuggestedPrice != 110 {
		t.Errorf("got %+v", got)
	}
	if err := cache.Invalidate(ctx, "p-001"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, err := cache.Get(ctx, "p-001"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("after invalidate err = %v", err)
	}
}

func TestLockManager(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	locks := NewLockManager(c)

	unlock, err := locks.Acquire(ctx, "product:p-001", time.Minute)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := locks.Acquire(ctx, "product:p-001", time.Minute); !errors.Is(err, domain.ErrLockHeld) {
		t.Errorf("second acquire err = %v, want ErrLockHeld", err)
	}
	unlock()
	unlock()

	again, err := locks.Acquire(ctx, "product:p-001", time.Minute)
	if err != nil {
		t.Fatalf("Acquire after unlock: %v", err)
	}
	again()
}

func TestRateLimiter(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()
	rl := NewRateLimiter(c)

	for i := range 3 {
		ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: allowed=%v err=%v", i, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, "client-a", 3, time.Minute)
	if err != nil || ok {
		t.Errorf("fourth request allowed=%v err=%v", ok, err)
	}
	ok, _ = rl.Allow(ctx, "client-b", 3, time.Minute)
	if !ok {
		t.Error("separate key throttled")
	}
}

func TestSignalBus(t *testing.T) {
	c := testClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	bus := NewSignalBus(c)

	sub, err := bus.Subscribe(ctx, domain.ChannelDiscovery)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := bus.Publish(ctx, domain.ChannelDiscovery, []byte(`{"event":"log"}`)); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case msg := <-sub:
		if string(msg) != `{"event":"log"}` {
			t.Errorf("payload = %s", msg)
		}
	case <-ctx.Done():
		t.Fatal("no message received")
	}

	if err := bus.StreamAppend(ctx, "sessions", []byte("one")); err != nil {
		t.Fatalf("StreamAppend: %v", err)
	}
	msgs, err := bus.StreamRead(ctx, "sessions", "0", 10)
	if err != nil {
		t.Fatalf("StreamRead: %v", err)
	}
	if len(msgs) != 1 || string(msgs[0].Payload) != "one" {
		t.Errorf("messages = %+v", msgs)
	}

	for _, p := range []string{"two", "three"} {
		if err := bus.StreamAppend(ctx, "sessions", []byte(p)); err != nil {
			t.Fatalf("StreamAppend: %v", err)
		}
	}
	latest, err := bus.StreamReadLatest(ctx, "sessions", 2)
	if err != nil {
		t.Fatalf("StreamReadLatest: %v", err)
	}
	if len(latest) != 2 || string(latest[0].Payload) != "two" || string(latest[1].Payload) != "three" {
		t.Errorf("latest = %+v", latest)
	}
}
