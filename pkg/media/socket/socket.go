// Package socket implements media.Source over a browser WebSocket connection.
//
// The browser client captures microphone PCM and camera snapshots and streams
// them to the gateway as JSON messages; the gateway streams paced playback
// audio and level-meter updates back on the same connection. The first client
// message must be a hello reporting device readiness — a hello carrying an
// error code aborts the accept and surfaces the failure to the caller.
//
// Wire format (all text frames, JSON):
//
//	client → server:  {"type":"hello","error":""}
//	                  {"type":"audio","data":"<base64 16 kHz s16le mono PCM>"}
//	                  {"type":"video","data":"<base64 JPEG>"}
//	                  {"type":"stop"}
//	server → client:  {"type":"audio","data":"<base64 24 kHz s16le mono PCM>"}
//	                  {"type":"meter","level":0.42}
package socket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/assessly-ai/assessly/pkg/media"
	"github.com/assessly-ai/assessly/pkg/pcm"
	"github.com/coder/websocket"
)

// Compile-time assertion that Conn satisfies media.Source.
var _ media.Source = (*Conn)(nil)

const (
	helloTimeout = 10 * time.Second

	audioBuffer    = 64
	snapshotBuffer = 4
)

// Client hello error codes.
const (
	helloErrPermissionDenied = "permission-denied"
	helloErrNoDevice         = "no-device"
)

// message is the JSON envelope for every frame in both directions.
type message struct {
	Type  string  `json:"type"`
	Data  string  `json:"data,omitempty"`  // base64 payload for audio/video
	Level float64 `json:"level,omitempty"` // meter level
	Error string  `json:"error,omitempty"` // hello error code
}

// AcceptOptions configures Accept.
type AcceptOptions struct {
	// OriginPatterns is passed through to the WebSocket accept handshake.
	OriginPatterns []string
}

// Accept upgrades an HTTP request to a media WebSocket and performs the hello
// exchange. It returns a Conn ready to deliver media, or an error if the
// upgrade fails or the client reports a device failure
// (media.ErrPermissionDenied, media.ErrNoDevice).
func Accept(w http.ResponseWriter, r *http.Request, opts *AcceptOptions) (*Conn, error) {
	var acceptOpts websocket.AcceptOptions
	if opts != nil {
		acceptOpts.OriginPatterns = opts.OriginPatterns
	}

	ws, err := websocket.Accept(w, r, &acceptOpts)
	if err != nil {
		return nil, fmt.Errorf("socket: accept: %w", err)
	}

	helloCtx, cancel := context.WithTimeout(r.Context(), helloTimeout)
	defer cancel()

	// Rejections use CloseNow: a full close handshake would block on a
	// client that is not reading.
	_, data, err := ws.Read(helloCtx)
	if err != nil {
		ws.CloseNow()
		return nil, fmt.Errorf("socket: read hello: %w", err)
	}

	var hello message
	if err := json.Unmarshal(data, &hello); err != nil || hello.Type != "hello" {
		ws.CloseNow()
		return nil, fmt.Errorf("socket: malformed hello")
	}

	switch hello.Error {
	case "":
		// Devices ready.
	case helloErrPermissionDenied:
		ws.CloseNow()
		return nil, media.ErrPermissionDenied
	case helloErrNoDevice:
		ws.CloseNow()
		return nil, media.ErrNoDevice
	default:
		ws.CloseNow()
		return nil, fmt.Errorf("socket: client device error: %s", hello.Error)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c := &Conn{
		ws:        ws,
		audio:     make(chan []byte, audioBuffer),
		snapshots: make(chan []byte, snapshotBuffer),
		ctx:       connCtx,
		cancel:    connCancel,
	}

	go c.receiveLoop()

	return c, nil
}

// Conn is a media.Source backed by a browser WebSocket connection.
type Conn struct {
	ws        *websocket.Conn
	audio     chan []byte
	snapshots chan []byte

	mu      sync.Mutex
	writeMu sync.Mutex
	errVal  error
	closed  bool

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// receiveLoop reads client frames and routes them onto the media channels.
// It owns the audio and snapshot channels: it closes both when it exits.
func (c *Conn) receiveLoop() {
	defer c.closeChannels()

	for {
		_, data, err := c.ws.Read(c.ctx)
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.setErr(err)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			continue // skip malformed frames
		}

		switch msg.Type {
		case "audio":
			chunk, err := pcm.DecodeBase64(msg.Data)
			if err != nil || len(chunk) == 0 {
				continue
			}
			select {
			case c.audio <- chunk:
			case <-c.ctx.Done():
				return
			}

		case "video":
			frame, err := pcm.DecodeBase64(msg.Data)
			if err != nil || len(frame) == 0 {
				continue
			}
			// Snapshots are low-rate; drop when the consumer lags rather
			// than stall the audio path behind them.
			select {
			case c.snapshots <- frame:
			default:
			}

		case "stop":
			return
		}
	}
}

func (c *Conn) writeJSON(msg message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("socket: marshal: %w", err)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.Write(c.ctx, websocket.MessageText, data)
}

func (c *Conn) setErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.errVal == nil {
		c.errVal = err
	}
}

func (c *Conn) closeChannels() {
	c.closeOnce.Do(func() {
		close(c.audio)
		close(c.snapshots)
	})
}

// ── media.Source methods ──────────────────────────────────────────────────────

// Audio returns the channel delivering the candidate's capture chunks.
func (c *Conn) Audio() <-chan []byte { return c.audio }

// Snapshots returns the channel delivering the candidate's camera frames.
func (c *Conn) Snapshots() <-chan []byte { return c.snapshots }

// Playback forwards a chunk of model speech to the client.
func (c *Conn) Playback(chunk []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("socket: connection closed")
	}
	c.mu.Unlock()

	return c.writeJSON(message{Type: "audio", Data: pcm.EncodeBase64(chunk)})
}

// Meter reports the candidate's input level to the client's volume indicator.
func (c *Conn) Meter(level float64) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("socket: connection closed")
	}
	c.mu.Unlock()

	return c.writeJSON(message{Type: "meter", Level: level})
}

// Err returns the first non-nil error that caused the media channels to close.
func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errVal
}

// Close tears down the connection. Idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.ws.Close(websocket.StatusNormalClosure, "session ended")
	return nil
}
