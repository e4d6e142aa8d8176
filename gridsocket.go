// Package gridsocket provides a Go client for the microgrid simulation
// backend's real-time channel.
//
// One WebSocket carries two kinds of traffic. Calls are requests that the
// server answers with a reply carrying the same requestId. Events are
// broadcasts keyed by a topic (socketType on the wire) and routed to the
// handler registered for that topic.
//
// # Delivery Guarantees
//
// Every call ends exactly once: with reply data, a [*ServerError], a
// [*TimeoutError], a [*SendError], [ErrConnectionClosed] when the
// connection drops, or [ErrClosed] after [Client.Close]. Calls issued while
// disconnected are not failed; they are retried with linear backoff until
// the connection is back.
//
// The client reconnects forever with a delay of retryCount x base delay.
// Use [WithMaxDelay] to cap it.
//
// # Thread Safety
//
// [Client] is safe for concurrent use by multiple goroutines. Handlers run
// one at a time on a delivery goroutine, in the order messages arrive. The
// read loop never waits for them, so a handler may issue calls and wait for
// their replies. A slow handler delays later events but not replies.
//
// # Basic Usage
//
//	client := gridsocket.New("ws://localhost:9998",
//	    gridsocket.WithLogger(slog.Default()),
//	)
//	defer client.Close()
//
//	client.RegisterHandler("trend", gridsocket.HandlerFunc(func(ev gridsocket.Event) {
//	    var points []float64
//	    if err := ev.Decode(&points); err != nil {
//	        return
//	    }
//	    fmt.Println(points)
//	}))
//
//	data, err := client.Call(ctx, map[string]any{
//	    "action":    "getData",
//	    "chartName": "power",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Observability
//
// Use [WithLogger], [WithOnSend], [WithOnReceive], [WithOnStateChange] and
// [WithOnCallDone] to add logging and monitoring. The metrics subpackage
// wires these hooks into Prometheus collectors.
package gridsocket
