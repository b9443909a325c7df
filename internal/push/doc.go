// Package push holds the subscriber registry and the Web Push fan-out.
//
// Registry is append-only with snapshot reads: registration and delivery
// never block each other. Sender.Notify marshals one {title, body} payload
// and attempts delivery to every subscriber in the snapshot, at most
// maxInFlight at a time. Per-subscriber failures are logged and isolated;
// nothing is retried and nothing surfaces to the mutation that triggered the
// fan-out. The optional prune_failed policy drops subscribers whose push
// service answers 404 or 410.
package push
