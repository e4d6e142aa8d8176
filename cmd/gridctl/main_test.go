package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestParseMessage(t *testing.T) {
	msg, err := parseMessage(`{"action":"getData","chartName":"power"}`)
	require.NoError(t, err)
	assert.Equal(t, "getData", msg["action"])

	_, err = parseMessage(`[1,2]`)
	assert.Error(t, err)

	_, err = parseMessage(`null`)
	assert.Error(t, err)
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gridctl.log")

	logger, closer, err := newLogger(io.Discard, "debug", path)
	require.NoError(t, err)
	logger.Debug("connected", "session", "abc")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"connected"`)
	assert.Contains(t, string(data), `"session":"abc"`)
}

func TestNewLogger_Console(t *testing.T) {
	logger, closer, err := newLogger(io.Discard, "warn", "")
	require.NoError(t, err)
	assert.NotNil(t, logger)
	assert.NoError(t, closer.Close())
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, _, err := newLogger(io.Discard, "loud", "")
	assert.Error(t, err)
}

func TestModesList(t *testing.T) {
	out, err := runCmd(t, "modes", "list")
	require.NoError(t, err)

	for _, id := range []string{"island_running", "island_to_grid", "grid_running", "planned_islanding", "unplanned_islanding"} {
		assert.Contains(t, out, id)
	}
	assert.Contains(t, out, "/data/MG_Islanded_Mode_json/")
}

func TestModesShow(t *testing.T) {
	out, err := runCmd(t, "modes", "show", "planned_islanding")
	require.NoError(t, err)
	assert.Contains(t, out, "folder: /data/MG_GridToIsland_Mode_json/")

	out, err = runCmd(t, "modes", "show", "nope")
	assert.Error(t, err)
	assert.Contains(t, out, "island_running")
}

// echoBackend greets each connection with a trend themeChange broadcast,
// then replies to every call with the request itself.
func echoBackend(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		broadcast := map[string]any{"socketType": "trend", "action": "themeChange", "theme": "dark"}
		if err := wsjson.Write(r.Context(), conn, broadcast); err != nil {
			return
		}

		for {
			var msg map[string]any
			if err := wsjson.Read(r.Context(), conn, &msg); err != nil {
				return
			}
			reply := map[string]any{"requestId": msg["requestId"], "action": "ok", "data": msg}
			if err := wsjson.Write(r.Context(), conn, reply); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestCallCmd(t *testing.T) {
	url := echoBackend(t)

	out, err := runCmd(t,
		"--url", url,
		"--timeout", "2s",
		"--base-delay", "10ms",
		"call", "--mode", "grid_running", `{"action":"getData","chartName":"soc"}`,
	)
	require.NoError(t, err)
	assert.Contains(t, out, `"chartName": "soc"`)
	assert.Contains(t, out, `"folder": "/data/MG_GridConnected_Mode_json/"`)
	assert.Contains(t, out, `"requestId": "req-0"`)
}

func TestCallCmd_UnknownMode(t *testing.T) {
	_, err := runCmd(t, "call", "--mode", "bogus", `{"action":"getData"}`)
	assert.ErrorContains(t, err, "unknown mode")
}

func TestCallCmd_BadMessage(t *testing.T) {
	_, err := runCmd(t, "call", `not json`)
	assert.ErrorContains(t, err, "JSON object")
}

// syncBuffer is a bytes.Buffer safe for a writer and a concurrent reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCmd(t *testing.T) {
	url := echoBackend(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out syncBuffer
	root := newRootCmd()
	root.SetArgs([]string{"--url", url, "--base-delay", "10ms", "watch", "trend", "map"})
	root.SetOut(&out)
	root.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "trend\tthemeChange\t")
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
	assert.Contains(t, out.String(), `"theme":"dark"`)
}
