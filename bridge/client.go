// Package bridge implements the RPC connection to the headless editor:
// newline-delimited JSON frames over a unix socket, with request and
// response correlation by ID and an ordered event stream per
// subscriber.
package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nvimbridge/nvim-ide-mcp/ideerr"
	"github.com/nvimbridge/nvim-ide-mcp/log"
	"github.com/nvimbridge/nvim-ide-mcp/workspace"
)

// ConnectionState reports the lifecycle phase of a Client.
type ConnectionState int32

const (
	// StateConnected means both pumps are running.
	StateConnected ConnectionState = iota
	// StateDisconnected means the peer dropped the connection.
	StateDisconnected
	// StateClosed means Close was called locally.
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Config tunes a Client. The zero value is usable; nil fields fall
// back to defaults.
type Config struct {
	// ConnectTimeout bounds Dial.
	ConnectTimeout time.Duration
	// RequestTimeout bounds each Call unless the context is stricter.
	RequestTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
	// OutgoingBuffer sizes the write queue.
	OutgoingBuffer int

	// Resolver canonicalizes Path arguments. Nil disables
	// canonicalization.
	Resolver *workspace.Resolver
	Logger   log.Logger
}

// DefaultConfig returns the timeouts used when none are configured.
func DefaultConfig() *Config {
	return &Config{
		ConnectTimeout: 10 * time.Second,
		RequestTimeout: 30 * time.Second,
		WriteTimeout:   10 * time.Second,
		OutgoingBuffer: 256,
	}
}

func (c *Config) normalized() *Config {
	out := DefaultConfig()
	if c == nil {
		out.Logger = log.Nop()
		return out
	}
	if c.ConnectTimeout > 0 {
		out.ConnectTimeout = c.ConnectTimeout
	}
	if c.RequestTimeout > 0 {
		out.RequestTimeout = c.RequestTimeout
	}
	if c.WriteTimeout > 0 {
		out.WriteTimeout = c.WriteTimeout
	}
	if c.OutgoingBuffer > 0 {
		out.OutgoingBuffer = c.OutgoingBuffer
	}
	out.Resolver = c.Resolver
	out.Logger = c.Logger
	if out.Logger == nil {
		out.Logger = log.Nop()
	}
	return out
}

type callResult struct {
	msg *Message
	err error
}

type call struct {
	respCh chan callResult
}

// Client multiplexes calls and event subscriptions over one
// connection. A single reader goroutine routes incoming frames and a
// single writer goroutine owns the write side, so callers never touch
// the connection directly.
type Client struct {
	cfg *Config
	log log.Logger

	conn     net.Conn
	state    atomic.Int32
	outgoing chan *Message
	stopCh   chan struct{}

	mu      sync.Mutex
	pending map[string]*call
	subs    []*Subscription

	closeOnce sync.Once
	closeErr  error
}

// Dial connects to the editor socket and returns a running Client.
func Dial(ctx context.Context, network, addr string, cfg *Config) (*Client, error) {
	cfg = cfg.normalized()
	d := net.Dialer{Timeout: cfg.ConnectTimeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s %s: %w", network, addr, err)
	}
	return newClient(conn, cfg), nil
}

// NewClient wraps an established connection. Used by Dial and by
// tests that drive the client over an in-memory pipe.
func NewClient(conn net.Conn, cfg *Config) *Client {
	return newClient(conn, cfg.normalized())
}

func newClient(conn net.Conn, cfg *Config) *Client {
	c := &Client{
		cfg:      cfg,
		log:      cfg.Logger,
		conn:     conn,
		outgoing: make(chan *Message, cfg.OutgoingBuffer),
		stopCh:   make(chan struct{}),
		pending:  make(map[string]*call),
	}
	c.state.Store(int32(StateConnected))
	go c.readPump()
	go c.writePump()
	return c
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Done is closed when the connection ends, whether by Close or by the
// peer dropping.
func (c *Client) Done() <-chan struct{} {
	return c.stopCh
}

// Err returns the cause of the connection ending. Valid after Done is
// closed; nil means a local Close.
func (c *Client) Err() error {
	select {
	case <-c.stopCh:
		return c.closeErr
	default:
		return nil
	}
}

// Close shuts the connection down. Outstanding calls fail with
// ConnectionLost and every subscription receives its terminal event.
func (c *Client) Close() error {
	c.shutdown(nil, StateClosed)
	return nil
}

// Call sends a request and blocks until its response, the timeout, or
// connection loss. Arguments of type Path are canonicalized before
// serialization; a canonicalization failure aborts the call before
// anything reaches the wire.
func (c *Client) Call(ctx context.Context, method string, args ...interface{}) (json.RawMessage, error) {
	resolved, err := c.resolveArgs(args)
	if err != nil {
		return nil, err
	}
	params, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("marshal %s params: %w", method, err)
	}

	cl := &call{respCh: make(chan callResult, 1)}
	id := uuid.New().String()
	c.mu.Lock()
	select {
	case <-c.stopCh:
		c.mu.Unlock()
		return nil, ideerr.ConnectionLost(c.closeErr)
	default:
	}
	c.pending[id] = cl
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	msg := &Message{Type: MessageRequest, ID: id, Method: method, Params: params}
	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case c.outgoing <- msg:
	case <-c.stopCh:
		return nil, ideerr.ConnectionLost(c.closeErr)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ideerr.RemoteTimeout(method, c.cfg.RequestTimeout)
	}

	select {
	case res := <-cl.respCh:
		if res.err != nil {
			return nil, res.err
		}
		if res.msg.Error != nil {
			return nil, ideerr.Remote(res.msg.Error.Code, res.msg.Error.Message, res.msg.Error.Details)
		}
		return res.msg.Result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ideerr.RemoteTimeout(method, c.cfg.RequestTimeout)
	}
}

// CallInto calls method and unmarshals the result into out. A nil out
// discards the result.
func (c *Client) CallInto(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	result, err := c.Call(ctx, method, args...)
	if err != nil {
		return err
	}
	if out == nil || len(result) == 0 {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return fmt.Errorf("decode %s result: %w", method, err)
	}
	return nil
}

// Notify sends a request that expects no response.
func (c *Client) Notify(ctx context.Context, method string, args ...interface{}) error {
	resolved, err := c.resolveArgs(args)
	if err != nil {
		return err
	}
	params, err := json.Marshal(resolved)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}
	msg := &Message{Type: MessageRequest, Method: method, Params: params}
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.stopCh:
		return ideerr.ConnectionLost(c.closeErr)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers an event consumer. A nil matcher receives every
// event. Events arrive on the subscription channel in the order the
// editor sent them; after connection loss the channel yields one
// terminal event and is closed. Subscriptions do not survive
// reconnection. Subscribing on a dead client yields an
// already-terminated subscription.
func (c *Client) Subscribe(matcher EventMatcher) *Subscription {
	s := newSubscription(matcher)
	c.mu.Lock()
	select {
	case <-c.stopCh:
		c.mu.Unlock()
		s.terminate(ideerr.ConnectionLost(c.closeErr))
		return s
	default:
	}
	c.subs = append(c.subs, s)
	c.mu.Unlock()
	return s
}

func (c *Client) resolveArgs(args []interface{}) ([]interface{}, error) {
	out := make([]interface{}, len(args))
	for i, a := range args {
		p, ok := a.(Path)
		if !ok {
			out[i] = a
			continue
		}
		if c.cfg.Resolver == nil {
			out[i] = string(p)
			continue
		}
		canonical, err := c.cfg.Resolver.Canonicalize(string(p))
		if err != nil {
			return nil, err
		}
		out[i] = canonical
	}
	return out, nil
}

func (c *Client) readPump() {
	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			c.shutdown(err, StateDisconnected)
			return
		}
		msg, err := decodeMessage(line)
		if err != nil {
			c.log.Warnf("bridge: dropping frame: %v", err)
			continue
		}
		switch msg.Type {
		case MessageResponse:
			c.routeResponse(msg)
		case MessageEvent:
			c.routeEvent(msg)
		default:
			c.log.Warnf("bridge: dropping frame with type %q", msg.Type)
		}
	}
}

func (c *Client) routeResponse(msg *Message) {
	c.mu.Lock()
	cl, ok := c.pending[msg.ID]
	if ok {
		delete(c.pending, msg.ID)
	}
	c.mu.Unlock()
	if !ok {
		// Response arrived after the caller gave up.
		c.log.Debugf("bridge: dropping response for unknown call %s", msg.ID)
		return
	}
	cl.respCh <- callResult{msg: msg}
}

func (c *Client) routeEvent(msg *Message) {
	if msg.Method == EventConnectionLost {
		// Reserved for the locally generated terminal event.
		c.log.Warnf("bridge: dropping forged %s event", EventConnectionLost)
		return
	}
	ev := Event{Method: msg.Method, Payload: msg.Params}
	c.mu.Lock()
	subs := make([]*Subscription, len(c.subs))
	copy(subs, c.subs)
	c.mu.Unlock()
	for _, s := range subs {
		if s.matches(ev) {
			s.push(ev)
		}
	}
}

func (c *Client) writePump() {
	for {
		select {
		case msg := <-c.outgoing:
			data, err := encodeMessage(msg)
			if err != nil {
				c.log.Errorf("bridge: encode %s: %v", msg.Method, err)
				continue
			}
			if c.cfg.WriteTimeout > 0 {
				c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			}
			if _, err := c.conn.Write(data); err != nil {
				c.shutdown(err, StateDisconnected)
				return
			}
		case <-c.stopCh:
			return
		}
	}
}

// shutdown tears the connection down exactly once: it fails every
// outstanding call with ConnectionLost and terminates every
// subscription.
func (c *Client) shutdown(cause error, final ConnectionState) {
	c.closeOnce.Do(func() {
		c.closeErr = cause
		c.state.Store(int32(final))
		close(c.stopCh)
		c.conn.Close()

		c.mu.Lock()
		pend := c.pending
		c.pending = make(map[string]*call)
		subs := c.subs
		c.subs = nil
		c.mu.Unlock()

		lost := ideerr.ConnectionLost(cause)
		for _, cl := range pend {
			cl.respCh <- callResult{err: lost}
		}
		for _, s := range subs {
			s.terminate(lost)
		}
		if cause != nil {
			c.log.Warnf("bridge: connection lost: %v (%d calls failed, %d subscriptions ended)", cause, len(pend), len(subs))
		} else {
			c.log.Infof("bridge: connection closed (%d calls failed, %d subscriptions ended)", len(pend), len(subs))
		}
	})
}
