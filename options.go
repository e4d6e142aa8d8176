package gridsocket

import (
	"log/slog"
	"time"
)

// Defaults used when the corresponding option is not given.
const (
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultCallTimeout  = 10 * time.Second
	DefaultDialTimeout  = 10 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig)

type clientConfig struct {
	logger        *slog.Logger
	baseDelay     time.Duration
	maxDelay      time.Duration
	callTimeout   time.Duration
	dialTimeout   time.Duration
	writeTimeout  time.Duration
	onSend        func(*Request)
	onReceive     func(*Envelope)
	onStateChange func(from, to State)
	onCallDone    func(*Call)
	dialOptions   *DialOptions
}

func defaultConfig() clientConfig {
	return clientConfig{
		logger:       slog.New(slog.DiscardHandler),
		baseDelay:    DefaultBaseDelay,
		callTimeout:  DefaultCallTimeout,
		dialTimeout:  DefaultDialTimeout,
		writeTimeout: DefaultWriteTimeout,
	}
}

// backoff returns n x baseDelay, capped by maxDelay when one is set.
func (c *clientConfig) backoff(n int) time.Duration {
	d := time.Duration(n) * c.baseDelay
	if c.maxDelay > 0 && d > c.maxDelay {
		return c.maxDelay
	}
	return d
}

// WithLogger sets a structured logger for the client.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithBaseDelay sets the unit of the linear backoff used for reconnects and
// for calls issued while disconnected.
func WithBaseDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.baseDelay = d
		}
	}
}

// WithMaxDelay caps the backoff delay. Without it the delay grows without
// bound.
func WithMaxDelay(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		c.maxDelay = d
	}
}

// WithCallTimeout sets how long a call waits for its reply.
func WithCallTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.callTimeout = d
		}
	}
}

// WithDialTimeout bounds a single connection attempt, handshake included.
func WithDialTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.dialTimeout = d
		}
	}
}

// WithWriteTimeout bounds a single transport write.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithOnSend sets a callback invoked before each message is sent.
func WithOnSend(fn func(*Request)) ClientOption {
	return func(c *clientConfig) {
		c.onSend = fn
	}
}

// WithOnReceive sets a callback invoked after each message is decoded.
func WithOnReceive(fn func(*Envelope)) ClientOption {
	return func(c *clientConfig) {
		c.onReceive = fn
	}
}

// WithOnStateChange sets a callback invoked on every connection state
// transition. It runs with no client locks held.
func WithOnStateChange(fn func(from, to State)) ClientOption {
	return func(c *clientConfig) {
		c.onStateChange = fn
	}
}

// WithOnCallDone sets a callback invoked once per call when it reaches its
// terminal outcome.
func WithOnCallDone(fn func(*Call)) ClientOption {
	return func(c *clientConfig) {
		c.onCallDone = fn
	}
}

// WithDialOptions configures the WebSocket handshake used by New.
func WithDialOptions(opts *DialOptions) ClientOption {
	return func(c *clientConfig) {
		c.dialOptions = opts
	}
}
