package gridsocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the connection state of a Client.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client multiplexes calls and topic broadcasts over one connection that it
// keeps alive for its whole lifetime. It is safe for concurrent use by
// multiple goroutines.
type Client struct {
	dial     Dialer
	cfg      clientConfig
	handlers *registry
	ctx      context.Context
	cancel   context.CancelFunc

	startOnce sync.Once
	wg        sync.WaitGroup

	mu             sync.Mutex
	state          State
	transport      Transport
	session        string
	retryCount     int
	sendRetryCount int
	nextID         uint64
	pending        map[string]*Call // outstanding calls by request id
	closed         bool

	queueMu sync.Mutex
	queue   []delivery
	ready   chan struct{}
}

// delivery is an event waiting for its handler.
type delivery struct {
	handler Handler
	event   Event
}

// New creates a Client for the WebSocket endpoint at url. The connection is
// opened lazily on first use, or by Connect.
func New(url string, opts ...ClientOption) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(NewDialer(url, cfg.dialOptions), cfg)
}

// NewWithDialer creates a Client that opens its transports through dial.
// This is useful for testing or custom transport implementations.
func NewWithDialer(dial Dialer, opts ...ClientOption) *Client {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newClient(dial, cfg)
}

func newClient(dial Dialer, cfg clientConfig) *Client {
	if dial == nil {
		dial = func(context.Context) (Transport, error) {
			return nil, ErrTransportUnsupported
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		dial:     dial,
		cfg:      cfg,
		handlers: newRegistry(),
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[string]*Call),
		ready:    make(chan struct{}, 1),
	}
}

// Connect starts the connection loop. Calling it more than once has no
// effect. The loop reconnects with linear backoff until Close.
func (c *Client) Connect() {
	c.startOnce.Do(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.closed {
			return
		}
		c.wg.Add(1)
		go c.run()
	})
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns the id of the current connection, or "" while
// disconnected.
func (c *Client) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// Pending returns the number of calls awaiting a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Go sends msg as a call and returns immediately. The returned Call is
// delivered on its Done channel exactly once, with either reply data or an
// error. If the client is not connected the call is retried with backoff
// until it can be transmitted.
func (c *Client) Go(msg any) *Call {
	call := newCall(msg)
	c.Connect()
	c.attempt(call)
	return call
}

// Call sends msg and waits for the reply data. Cancelling ctx stops the
// wait but not the call itself, which still ends by reply, timeout or
// connection loss.
func (c *Client) Call(ctx context.Context, msg any) (json.RawMessage, error) {
	call := c.Go(msg)
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.Done:
		return call.Data, call.Error
	}
}

// Notify sends msg without a request id and without waiting for a reply.
// Unlike Go it fails with ErrNotConnected instead of retrying.
func (c *Client) Notify(ctx context.Context, msg any) error {
	c.Connect()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.state != StateConnected {
		c.mu.Unlock()
		return ErrNotConnected
	}
	t := c.transport
	c.mu.Unlock()

	req := &Request{Payload: msg}
	data, err := req.Encode()
	if err != nil {
		return &SendError{Op: "encode", Err: err}
	}

	if c.cfg.onSend != nil {
		c.cfg.onSend(req)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.writeTimeout)
	defer cancel()
	if err := t.Send(ctx, data); err != nil {
		return &SendError{Op: "write", Err: err}
	}
	return nil
}

// RegisterHandler installs h as the handler for topic, replacing any
// previous one. Handlers survive reconnects.
func (c *Client) RegisterHandler(topic string, h Handler) {
	c.handlers.set(topic, h)
}

// UnregisterHandler removes the handler for topic.
func (c *Client) UnregisterHandler(topic string) {
	c.handlers.remove(topic)
}

// Topics returns the topics that currently have a handler, sorted.
func (c *Client) Topics() []string {
	return c.handlers.topics()
}

// Close stops the connection loop and closes the transport. Outstanding
// calls fail with ErrClosed and queued events are dropped. It must not be
// called from a Handler, since it waits for the handler to return.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	t := c.transport
	c.mu.Unlock()

	c.cancel()

	var err error
	if t != nil {
		err = t.Close()
	}
	c.wg.Wait()

	// Normally drained by the loop on its way out.
	c.failPending(ErrClosed)

	return err
}

// run is the connection loop.
func (c *Client) run() {
	defer c.wg.Done()

	for {
		if c.ctx.Err() != nil {
			return
		}
		c.setState(StateConnecting)

		dialCtx, cancel := context.WithTimeout(c.ctx, c.cfg.dialTimeout)
		t, err := c.dial(dialCtx)
		cancel()

		if err != nil {
			if errors.Is(err, ErrTransportUnsupported) {
				c.cfg.logger.Error("transport unsupported, giving up", slog.Any("error", err))
				c.setState(StateDisconnected)
				return
			}
			c.cfg.logger.Warn("connect failed", slog.Any("error", err))
		} else {
			if !c.open(t) {
				t.Close()
				c.setState(StateDisconnected)
				return
			}
			err = c.readLoop(t)
			c.detach()
			t.Close()
		}

		attempt, delay, retry := c.disconnected(err)
		if !retry {
			return
		}

		c.cfg.logger.Info("reconnecting",
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
		)

		timer := time.NewTimer(delay)
		select {
		case <-c.ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// open installs t as the live transport. It reports false if the client was
// closed while dialing.
func (c *Client) open(t Transport) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.transport = t
	c.session = uuid.New().String()
	c.retryCount = 0
	session := c.session
	from := c.transition(StateConnected)
	c.mu.Unlock()

	c.cfg.logger.Info("connected", slog.String("session", session))
	c.notifyState(from, StateConnected)
	return true
}

// detach takes the dead transport out of service so that calls issued
// before disconnected runs are deferred instead of written to it.
func (c *Client) detach() {
	c.mu.Lock()
	c.transport = nil
	from := c.transition(StateDisconnected)
	c.mu.Unlock()
	c.notifyState(from, StateDisconnected)
}

// disconnected tears down per-connection state after a failed dial or a
// lost connection. Every pending call fails before it returns.
func (c *Client) disconnected(cause error) (int, time.Duration, bool) {
	c.mu.Lock()
	session := c.session
	c.transport = nil
	c.session = ""
	pending := c.pending
	c.pending = make(map[string]*Call)
	closed := c.closed
	var delay time.Duration
	if !closed {
		c.retryCount++
		delay = c.cfg.backoff(c.retryCount)
	}
	attempt := c.retryCount
	from := c.transition(StateDisconnected)
	c.mu.Unlock()

	reason := ErrConnectionClosed
	if closed {
		reason = ErrClosed
	}
	for _, call := range pending {
		c.stopTimer(call)
		c.finish(call, nil, reason)
	}

	if session != "" {
		c.cfg.logger.Info("disconnected",
			slog.String("session", session),
			slog.Int("failed_calls", len(pending)),
			slog.Any("error", cause),
		)
	}
	c.notifyState(from, StateDisconnected)

	return attempt, delay, !closed
}

// readLoop reads messages from t until it fails.
func (c *Client) readLoop(t Transport) error {
	for {
		data, err := t.Receive(c.ctx)
		if err != nil {
			return err
		}
		c.dispatch(data)
	}
}

// dispatch routes one inbound message. A pending call with a matching
// request id takes priority over the topic handler.
func (c *Client) dispatch(data []byte) {
	env, err := DecodeEnvelope(data)
	if err != nil {
		c.cfg.logger.Warn("dropping malformed message", slog.Any("error", err))
		return
	}

	if c.cfg.onReceive != nil {
		c.cfg.onReceive(env)
	}

	c.cfg.logger.Debug("received message",
		slog.String("request_id", env.RequestID),
		slog.String("topic", env.Topic),
		slog.String("action", env.Action),
	)

	if env.IsReply() {
		if call := c.take(env.RequestID); call != nil {
			reply := env.Reply()
			if err := reply.Err(); err != nil {
				c.finish(call, nil, err)
			} else {
				c.finish(call, reply.Data, nil)
			}
			return
		}
	}

	if env.IsEvent() {
		if h, ok := c.handlers.lookup(env.Topic); ok {
			ev, err := env.Event()
			if err != nil {
				c.cfg.logger.Warn("dropping event",
					slog.String("topic", env.Topic),
					slog.String("action", env.Action),
					slog.Any("error", err),
				)
				return
			}
			c.enqueue(h, ev)
			return
		}
	}

	c.cfg.logger.Warn("no matching request or handler",
		slog.String("request_id", env.RequestID),
		slog.String("topic", env.Topic),
		slog.String("action", env.Action),
	)
}

// enqueue hands ev to the delivery goroutine without blocking the reader.
func (c *Client) enqueue(h Handler, ev Event) {
	c.queueMu.Lock()
	c.queue = append(c.queue, delivery{handler: h, event: ev})
	c.queueMu.Unlock()

	select {
	case c.ready <- struct{}{}:
	default:
	}
}

// deliverLoop runs handlers one at a time in arrival order. It is separate
// from the read loop so a handler can wait on calls of its own.
func (c *Client) deliverLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-c.ready:
		}

		for {
			c.queueMu.Lock()
			if len(c.queue) == 0 {
				c.queueMu.Unlock()
				break
			}
			d := c.queue[0]
			c.queue[0] = delivery{}
			c.queue = c.queue[1:]
			c.queueMu.Unlock()

			if c.ctx.Err() != nil {
				return
			}
			c.deliver(d.handler, d.event)
		}
	}
}

func (c *Client) deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			c.cfg.logger.Error("event handler panicked",
				slog.String("topic", ev.Topic),
				slog.Any("panic", r),
			)
		}
	}()
	h.HandleEvent(ev)
}

// attempt transmits call if connected, or schedules another attempt.
func (c *Client) attempt(call *Call) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.finish(call, nil, ErrClosed)
		return
	}

	if c.state != StateConnected {
		c.sendRetryCount++
		delay := c.cfg.backoff(c.sendRetryCount)
		c.mu.Unlock()

		c.cfg.logger.Debug("not connected, deferring call", slog.Duration("delay", delay))
		go c.retryAfter(call, delay)
		return
	}

	c.sendRetryCount = 0
	id := fmt.Sprintf("req-%d", c.nextID)
	c.nextID++

	req := &Request{ID: id, Payload: call.Message}
	data, err := req.Encode()
	if err != nil {
		c.mu.Unlock()
		c.finish(call, nil, &SendError{Op: "encode", RequestID: id, Err: err})
		return
	}

	call.ID = id
	c.pending[id] = call
	call.timer = time.AfterFunc(c.cfg.callTimeout, func() {
		c.expire(id)
	})
	t := c.transport
	c.mu.Unlock()

	if c.cfg.onSend != nil {
		c.cfg.onSend(req)
	}

	c.cfg.logger.Debug("sending request", slog.String("request_id", id))

	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.writeTimeout)
	err = t.Send(ctx, data)
	cancel()
	if err != nil {
		if call := c.take(id); call != nil {
			c.finish(call, nil, &SendError{Op: "write", RequestID: id, Err: err})
		}
	}
}

func (c *Client) retryAfter(call *Call, delay time.Duration) {
	timer := time.NewTimer(delay)
	select {
	case <-c.ctx.Done():
		timer.Stop()
		c.finish(call, nil, ErrClosed)
	case <-timer.C:
		c.attempt(call)
	}
}

// expire fails the call for id if it is still pending.
func (c *Client) expire(id string) {
	c.mu.Lock()
	call, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if ok {
		c.finish(call, nil, &TimeoutError{RequestID: id, After: c.cfg.callTimeout})
	}
}

// take removes and returns the pending call for id. Whoever takes a call
// owns its resolution.
func (c *Client) take(id string) *Call {
	c.mu.Lock()
	call, ok := c.pending[id]
	delete(c.pending, id)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	c.stopTimer(call)
	return call
}

func (c *Client) failPending(err error) {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Call)
	c.mu.Unlock()

	for _, call := range pending {
		c.stopTimer(call)
		c.finish(call, nil, err)
	}
}

func (c *Client) stopTimer(call *Call) {
	c.mu.Lock()
	timer := call.timer
	c.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
}

func (c *Client) finish(call *Call, data json.RawMessage, err error) {
	call.Data = data
	call.Error = err

	if err != nil {
		c.cfg.logger.Debug("call failed",
			slog.String("request_id", call.ID),
			slog.Any("error", err),
		)
	}
	if c.cfg.onCallDone != nil {
		c.cfg.onCallDone(call)
	}

	call.Done <- call
}

func (c *Client) setState(to State) {
	c.mu.Lock()
	from := c.transition(to)
	c.mu.Unlock()
	c.notifyState(from, to)
}

// transition must be called with c.mu held.
func (c *Client) transition(to State) State {
	from := c.state
	c.state = to
	return from
}

func (c *Client) notifyState(from, to State) {
	if from == to {
		return
	}
	c.cfg.logger.Debug("state change",
		slog.String("from", from.String()),
		slog.String("to", to.String()),
	)
	if c.cfg.onStateChange != nil {
		c.cfg.onStateChange(from, to)
	}
}
