package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/optiprice/internal/domain"
)

type chanBus struct {
	mu   sync.Mutex
	subs map[string]chan []byte
}

func newChanBus() *chanBus { return &chanBus{subs: make(map[string]chan []byte)} }

func (b *chanBus) ch(channel string) chan []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	c, ok := b.subs[channel]
	if !ok {
		c = make(chan []byte, 16)
		b.subs[channel] = c
	}
	return c
}

func (b *chanBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.ch(channel) <- payload
	return nil
}

func (b *chanBus) Subscribe(_ context.Context, channel string) (<-chan []byte, error) {
	return b.ch(channel), nil
}

func (b *chanBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *chanBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *chanBus) StreamReadLatest(context.Context, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func readFrame(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return env
}

func TestHubRelaysBusMessages(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, Config{
		Mode:         "server",
		Connectivity: func() domain.ConnectivityState { return domain.ConnectivityConnected },
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	hello := readFrame(t, conn)
	if hello.Channel != "status" || !strings.Contains(string(hello.Data), `"connected"`) {
		t.Fatalf("hello = %s %s", hello.Channel, hello.Data)
	}

	bus.Publish(ctx, domain.ChannelDiscovery, []byte(`{"event":"log","text":"hi"}`))
	got := readFrame(t, conn)
	if got.Channel != domain.ChannelDiscovery || !strings.Contains(string(got.Data), `"hi"`) {
		t.Errorf("frame = %s %s", got.Channel, got.Data)
	}

	bus.Publish(ctx, domain.ChannelProducts, []byte("not json"))
	got = readFrame(t, conn)
	if got.Channel != domain.ChannelProducts || string(got.Data) != `"not json"` {
		t.Errorf("frame = %s %s", got.Channel, got.Data)
	}
}

func TestHubUnsubscribe(t *testing.T) {
	bus := newChanBus()
	hub := NewHub(bus, Config{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readFrame(t, conn)

	if err := conn.WriteJSON(subscribeMsg{Action: "unsubscribe", Channels: []string{domain.ChannelProducts}}); err != nil {
		t.Fatal(err)
	}
	// Give the read pump time to apply the change.
	time.Sleep(50 * time.Millisecond)

	bus.Publish(ctx, domain.ChannelProducts, []byte(`{"event":"applied"}`))
	bus.Publish(ctx, domain.ChannelConnectivity, []byte(`{"event":"connectivity"}`))
	if got := readFrame(t, conn); got.Channel != domain.ChannelConnectivity {
		t.Errorf("received %q after unsubscribing", got.Channel)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})
	req := httptest.NewRequest("GET", "/ws", nil)
	if !check(req) {
		t.Error("request without Origin rejected")
	}
	req.Header.Set("Origin", "http://evil.example")
	if check(req) {
		t.Error("foreign origin accepted")
	}
}
