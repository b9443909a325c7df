// Package api implements the HTTP REST surface of userstack-server.
//
// New(pipeline, registry, images) returns an http.Handler that serves:
//
//	GET    /users        — cache-accelerated collection listing
//	POST   /post         — create a record (201 with the stored record)
//	PATCH  /update/{id}  — merge-patch of the submitted fields
//	DELETE /delete/{id}  — delete by id (200 with the deleted count)
//	POST   /subscribe    — register a push subscription (201)
//	GET    /healthz      — liveness
//
// Malformed identifiers and unaccepted image encodings answer 400 before any
// store write; store and processing failures answer 500. All endpoints
// respond with Content-Type: application/json and 405 for wrong methods.
// JSON types are defined in types.go. No external HTTP framework is used.
package api
