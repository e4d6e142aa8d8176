package gridsocket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// backend is a minimal simulation backend: it answers every call and pushes a
// trend broadcast before each reply.
type backend struct {
	accepts atomic.Int32

	// dropFirst closes the first connection right after accepting it.
	dropFirst bool
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	if n := b.accepts.Add(1); n == 1 && b.dropFirst {
		conn.Close(websocket.StatusGoingAway, "restarting")
		return
	}

	ctx := r.Context()
	for {
		var msg map[string]any
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return
		}
		id, _ := msg["requestId"].(string)
		if id == "" {
			continue
		}

		if err := wsjson.Write(ctx, conn, map[string]any{
			"socketType": "trend",
			"action":     ActionData,
			"data":       `{"load":[3.5,4.1]}`,
		}); err != nil {
			return
		}

		reply := map[string]any{"requestId": id, "action": "ok", "data": msg}
		if msg["chartName"] == "missing" {
			reply = map[string]any{"requestId": id, "action": ActionError, "data": "no such chart"}
		}
		if err := wsjson.Write(ctx, conn, reply); err != nil {
			return
		}
	}
}

func startBackend(t *testing.T, b *backend) string {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocket_CallAndEvent(t *testing.T) {
	url := startBackend(t, &backend{})

	client := New(url, WithBaseDelay(10*time.Millisecond), WithCallTimeout(2*time.Second))
	t.Cleanup(func() { client.Close() })

	events := make(chan Event, 4)
	client.RegisterHandler("trend", HandlerFunc(func(ev Event) { events <- ev }))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := client.Call(ctx, map[string]any{"action": "getData", "chartName": "power"})
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if !strings.Contains(string(data), `"chartName":"power"`) {
		t.Errorf("data = %s, want echoed request", data)
	}

	ev := waitForEvent(t, events)
	var trend struct {
		Load []float64 `json:"load"`
	}
	if err := ev.Decode(&trend); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(trend.Load) != 2 {
		t.Errorf("load = %v, want 2 samples", trend.Load)
	}

	_, err = client.Call(ctx, map[string]any{"action": "getData", "chartName": "missing"})
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.Message != "no such chart" {
		t.Errorf("error = %v, want server error", err)
	}
	if client.Session() == "" {
		t.Error("Session() is empty while connected")
	}
}

func TestWebSocket_Reconnect(t *testing.T) {
	b := &backend{dropFirst: true}
	url := startBackend(t, b)

	client := New(url, WithBaseDelay(10*time.Millisecond), WithCallTimeout(2*time.Second))
	t.Cleanup(func() { client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The first connection is dropped by the server, so an early call may fail
	// with a connection or send error before the reconnect.
	var err error
	for i := 0; i < 3; i++ {
		if _, err = client.Call(ctx, map[string]any{"action": "getData"}); err == nil {
			break
		}
	}
	if err != nil {
		t.Fatalf("Call error: %v", err)
	}
	if n := b.accepts.Load(); n < 2 {
		t.Errorf("accepts = %d, want at least 2", n)
	}
}

func TestDial_UnsupportedScheme(t *testing.T) {
	for _, url := range []string{"http://localhost:9998", "tcp://localhost:9998", "localhost"} {
		_, err := Dial(context.Background(), url, nil)
		if !errors.Is(err, ErrTransportUnsupported) {
			t.Errorf("Dial(%s) error = %v, want ErrTransportUnsupported", url, err)
		}
	}
}

func TestClient_UnsupportedURL(t *testing.T) {
	client := New("http://localhost:9998", WithBaseDelay(time.Millisecond))
	t.Cleanup(func() { client.Close() })

	client.Connect()
	time.Sleep(20 * time.Millisecond)

	if client.State() != StateDisconnected {
		t.Errorf("State() = %s, want disconnected", client.State())
	}
}
