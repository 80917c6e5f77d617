package socket_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/assessly-ai/assessly/pkg/media"
	"github.com/assessly-ai/assessly/pkg/media/socket"
	"github.com/coder/websocket"
)

// ── Helpers ───────────────────────────────────────────────────────────────────

// startMediaServer runs Accept inside an httptest server and hands the
// resulting Conn (or error) to the test over channels.
func startMediaServer(t *testing.T) (*httptest.Server, <-chan *socket.Conn, <-chan error) {
	t.Helper()
	conns := make(chan *socket.Conn, 1)
	errs := make(chan error, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := socket.Accept(w, r, nil)
		if err != nil {
			errs <- err
			return
		}
		conns <- c
	}))
	t.Cleanup(srv.Close)
	return srv, conns, errs
}

// dialClient connects a fake browser client to the server.
func dialClient(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "test done") })
	return ws
}

func clientSend(t *testing.T, ws *websocket.Conn, v any) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, _ := json.Marshal(v)
	if err := ws.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("client write: %v", err)
	}
}

func clientRecv(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := ws.Read(ctx)
	if err != nil {
		t.Fatalf("client read: %v", err)
	}
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("client unmarshal: %v", err)
	}
	return msg
}

func sendHello(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	clientSend(t, ws, map[string]any{"type": "hello"})
}

func waitConn(t *testing.T, conns <-chan *socket.Conn) *socket.Conn {
	t.Helper()
	select {
	case c := <-conns:
		t.Cleanup(func() { c.Close() })
		return c
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for accepted connection")
		return nil
	}
}

// ── Accept / hello exchange ────────────────────────────────────────────────────

func TestAccept_HelloOK(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)

	c := waitConn(t, conns)
	if c.Err() != nil {
		t.Errorf("Err() = %v; want nil", c.Err())
	}
}

func TestAccept_PermissionDenied(t *testing.T) {
	t.Parallel()

	srv, _, errs := startMediaServer(t)
	ws := dialClient(t, srv)
	clientSend(t, ws, map[string]any{"type": "hello", "error": "permission-denied"})

	select {
	case err := <-errs:
		if !errors.Is(err, media.ErrPermissionDenied) {
			t.Errorf("error = %v; want media.ErrPermissionDenied", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for accept error")
	}
}

func TestAccept_NoDevice(t *testing.T) {
	t.Parallel()

	srv, _, errs := startMediaServer(t)
	ws := dialClient(t, srv)
	clientSend(t, ws, map[string]any{"type": "hello", "error": "no-device"})

	select {
	case err := <-errs:
		if !errors.Is(err, media.ErrNoDevice) {
			t.Errorf("error = %v; want media.ErrNoDevice", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for accept error")
	}
}

func TestAccept_MalformedHello(t *testing.T) {
	t.Parallel()

	srv, _, errs := startMediaServer(t)
	ws := dialClient(t, srv)
	clientSend(t, ws, map[string]any{"type": "audio", "data": "AAAA"})

	select {
	case err := <-errs:
		if err == nil {
			t.Error("expected error for non-hello first message")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for accept error")
	}
}

// ── Media routing ──────────────────────────────────────────────────────────────

func TestAudio_RoutesCaptureChunks(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	want := []byte{0x01, 0x02, 0x03, 0x04}
	clientSend(t, ws, map[string]any{
		"type": "audio",
		"data": base64.StdEncoding.EncodeToString(want),
	})

	select {
	case got, ok := <-c.Audio():
		if !ok {
			t.Fatal("audio channel closed unexpectedly")
		}
		if string(got) != string(want) {
			t.Errorf("audio chunk = %v; want %v", got, want)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio chunk")
	}
}

func TestSnapshots_RoutesVideoFrames(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	frame := []byte{0xFF, 0xD8, 0xFF}
	clientSend(t, ws, map[string]any{
		"type": "video",
		"data": base64.StdEncoding.EncodeToString(frame),
	})

	select {
	case got, ok := <-c.Snapshots():
		if !ok {
			t.Fatal("snapshots channel closed unexpectedly")
		}
		if string(got) != string(frame) {
			t.Errorf("snapshot = %v; want %v", got, frame)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for snapshot")
	}
}

func TestMalformedBase64_Dropped(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	clientSend(t, ws, map[string]any{"type": "audio", "data": "not***base64"})

	good := []byte{0x05, 0x06}
	clientSend(t, ws, map[string]any{
		"type": "audio",
		"data": base64.StdEncoding.EncodeToString(good),
	})

	// The malformed chunk is dropped; the next good chunk still arrives.
	select {
	case got := <-c.Audio():
		if string(got) != string(good) {
			t.Errorf("audio chunk = %v; want %v", got, good)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for audio chunk after malformed frame")
	}
}

// ── Playback and meter ─────────────────────────────────────────────────────────

func TestPlayback_SendsAudioToClient(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	chunk := []byte{0x0A, 0x0B, 0x0C, 0x0D}
	if err := c.Playback(chunk); err != nil {
		t.Fatalf("Playback: %v", err)
	}

	msg := clientRecv(t, ws)
	if msg["type"] != "audio" {
		t.Errorf("type = %v; want audio", msg["type"])
	}
	got, err := base64.StdEncoding.DecodeString(msg["data"].(string))
	if err != nil {
		t.Fatalf("base64 decode: %v", err)
	}
	if string(got) != string(chunk) {
		t.Errorf("playback chunk = %v; want %v", got, chunk)
	}
}

func TestMeter_SendsLevelToClient(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	if err := c.Meter(0.5); err != nil {
		t.Fatalf("Meter: %v", err)
	}

	msg := clientRecv(t, ws)
	if msg["type"] != "meter" {
		t.Errorf("type = %v; want meter", msg["type"])
	}
	if level := msg["level"].(float64); level != 0.5 {
		t.Errorf("level = %v; want 0.5", level)
	}
}

// ── Lifecycle ──────────────────────────────────────────────────────────────────

func TestStop_ClosesMediaChannels(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	clientSend(t, ws, map[string]any{"type": "stop"})

	deadline := time.After(3 * time.Second)
	for {
		select {
		case _, open := <-c.Audio():
			if !open {
				if c.Err() != nil {
					t.Errorf("Err() = %v; want nil after clean stop", c.Err())
				}
				return
			}
		case <-deadline:
			t.Fatal("timeout waiting for audio channel to close after stop")
		}
	}
}

func TestClose_Idempotent(t *testing.T) {
	t.Parallel()

	srv, conns, _ := startMediaServer(t)
	ws := dialClient(t, srv)
	sendHello(t, ws)
	c := waitConn(t, conns)

	if err := c.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	if err := c.Playback([]byte{1, 2}); err == nil {
		t.Error("Playback after Close should return an error")
	}
}
