package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"locked-study/server/internal/net/proto"
	"locked-study/server/internal/state"
	"locked-study/server/internal/telemetry"
	"locked-study/server/internal/world"
)

var ErrClosed = errors.New("client closed")

type Options struct {
	Codec    proto.Codec
	Resolver *world.Resolver
	Logger   telemetry.Logger
	// FrameBuffer sizes the Frames channel. Frames beyond it are dropped
	// after reconciliation.
	FrameBuffer int
}

// Client is a websocket connection to one room seat. Every inbound frame is
// merged into the Reconciler before it is offered on Frames.
type Client struct {
	conn   *websocket.Conn
	codec  proto.Codec
	rec    *Reconciler
	logger telemetry.Logger

	writeMu sync.Mutex
	seq     atomic.Uint64

	frames    chan proto.ServerFrame
	done      chan struct{}
	closeOnce sync.Once
	err       atomic.Value
}

// SocketURL builds the /ws URL for a server base URL such as
// http://localhost:8080.
func SocketURL(baseURL, roomID, playerID string, codec proto.Codec) (string, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch parsed.Scheme {
	case "https", "wss":
		parsed.Scheme = "wss"
	default:
		parsed.Scheme = "ws"
	}
	parsed.Path = "/ws"
	query := url.Values{}
	query.Set("room", roomID)
	query.Set("id", playerID)
	if codec != nil {
		query.Set("codec", codec.Name())
	}
	parsed.RawQuery = query.Encode()
	return parsed.String(), nil
}

// Dial connects playerID to roomID and starts the read loop.
func Dial(ctx context.Context, baseURL, roomID, playerID string, opts Options) (*Client, error) {
	codec := opts.Codec
	if codec == nil {
		codec = proto.JSON
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}
	buffer := opts.FrameBuffer
	if buffer <= 0 {
		buffer = 256
	}
	target, err := SocketURL(baseURL, roomID, playerID, codec)
	if err != nil {
		return nil, err
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", target, err)
	}

	c := &Client{
		conn:   conn,
		codec:  codec,
		rec:    NewReconciler(playerID, opts.Resolver),
		logger: logger,
		frames: make(chan proto.ServerFrame, buffer),
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) Reconciler() *Reconciler { return c.rec }

// Frames delivers reconciled frames in arrival order. It is closed when the
// connection ends.
func (c *Client) Frames() <-chan proto.ServerFrame { return c.frames }

func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the read loop stopped.
func (c *Client) Err() error {
	if err, ok := c.err.Load().(error); ok {
		return err
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.frames)
	defer c.shutdown()
	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			c.err.Store(err)
			return
		}
		frame, err := proto.DecodeServerFrame(c.codec, payload)
		if err != nil {
			c.logger.Printf("[client] discarding undecodable frame: %v", err)
			continue
		}
		if err := c.rec.Apply(frame); err != nil {
			c.logger.Printf("[client] failed to reconcile %s: %v", frame.Type, err)
		}
		select {
		case c.frames <- frame:
		default:
		}
	}
}

// Send assigns the next command sequence to msg and writes it. Heartbeats
// carry no sequence.
func (c *Client) Send(msg proto.ClientMessage) (uint64, error) {
	select {
	case <-c.done:
		return 0, ErrClosed
	default:
	}
	var seq uint64
	if msg.Type != proto.TypeHeartbeat && msg.Seq == nil {
		seq = c.seq.Add(1)
		msg.Seq = &seq
	} else if msg.Seq != nil {
		seq = *msg.Seq
	}
	data, err := proto.EncodeClientMessage(c.codec, msg)
	if err != nil {
		return 0, err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
		return 0, err
	}
	return seq, nil
}

// Move predicts a move locally and sends it upstream.
func (c *Client) Move(proposed state.Vec2) (world.MoveResult, uint64, error) {
	result, msg := c.rec.PredictMove(proposed)
	seq, err := c.Send(msg)
	return result, seq, err
}

// Hold predicts dt seconds along a held direction and sends the input.
func (c *Client) Hold(dx, dy, dt float64) (world.MoveResult, uint64, error) {
	result, msg := c.rec.PredictStep(dx, dy, dt)
	seq, err := c.Send(msg)
	return result, seq, err
}

// Heartbeat sends the client clock for RTT measurement.
func (c *Client) Heartbeat(now time.Time) error {
	_, err := c.Send(proto.ClientMessage{Type: proto.TypeHeartbeat, SentAt: now.UnixMilli()})
	return err
}

// Close sends a normal closure and tears the connection down.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	c.shutdown()
	return nil
}

func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
