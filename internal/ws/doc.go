// Package ws implements the WebSocket hub that broadcasts mutation events to
// connected observers.
//
// Hub manages a set of connected clients. Publish(event, data) fans the JSON
// envelope out to all of them without waiting for acknowledgements; slow
// clients (full send buffer) are disconnected rather than blocking the
// publisher. There is no buffering per observer and no replay on connect.
//
// Message format sent to clients:
//
//	{
//	  "event": "user-added" | "user-updated" | "user-deleted",
//	  "data":  /* event payload */
//	}
//
// The upgrader accepts all origins. Apply CORS restrictions at the reverse
// proxy level. WebSocket endpoint is mounted at /ws/stream by the server.
package ws
