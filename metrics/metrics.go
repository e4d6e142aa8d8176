// Package metrics exports gridsocket client activity as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chrisboulton/gridsocket-go"
)

const namespace = "gridsocket"

// Collector holds the client metrics. Install it with Options.
type Collector struct {
	sent        prometheus.Counter
	received    *prometheus.CounterVec
	calls       *prometheus.CounterVec
	attempts    prometheus.Counter
	disconnects prometheus.Counter
	connected   prometheus.Gauge
}

// New creates a Collector and registers it with reg.
func New(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Messages written to the connection.",
		}),
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages read from the connection, by kind.",
		}, []string{"kind"}),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Finished calls, by outcome.",
		}, []string{"outcome"}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_attempts_total",
			Help:      "Connection attempts, including the first.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Established connections that were lost.",
		}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the connection is up.",
		}),
	}

	for _, col := range []prometheus.Collector{
		c.sent, c.received, c.calls, c.attempts, c.disconnects, c.connected,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Options returns the client options that feed the collector.
func (c *Collector) Options() []gridsocket.ClientOption {
	return []gridsocket.ClientOption{
		gridsocket.WithOnSend(c.ObserveSend),
		gridsocket.WithOnReceive(c.ObserveReceive),
		gridsocket.WithOnStateChange(c.ObserveState),
		gridsocket.WithOnCallDone(c.ObserveCall),
	}
}

// ObserveSend counts an outbound message.
func (c *Collector) ObserveSend(*gridsocket.Request) {
	c.sent.Inc()
}

// ObserveReceive counts an inbound message.
func (c *Collector) ObserveReceive(env *gridsocket.Envelope) {
	kind := "other"
	switch {
	case env.IsReply():
		kind = "reply"
	case env.IsEvent():
		kind = "event"
	}
	c.received.WithLabelValues(kind).Inc()
}

// ObserveState tracks connection state transitions.
func (c *Collector) ObserveState(from, to gridsocket.State) {
	switch to {
	case gridsocket.StateConnecting:
		c.attempts.Inc()
	case gridsocket.StateConnected:
		c.connected.Set(1)
	case gridsocket.StateDisconnected:
		c.connected.Set(0)
		if from == gridsocket.StateConnected {
			c.disconnects.Inc()
		}
	}
}

// ObserveCall counts a finished call by outcome.
func (c *Collector) ObserveCall(call *gridsocket.Call) {
	c.calls.WithLabelValues(string(call.Outcome())).Inc()
}
