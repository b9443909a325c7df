// Package pipeline orchestrates every record mutation through four strictly
// ordered phases:
//
//  1. Persist — write the record store. The only phase whose failure fails
//     the operation.
//  2. Refresh cache — invalidate the collection entry, re-read the full
//     collection, set it back with the configured TTL. Logged and swallowed
//     on failure; bounded by the cache timeout.
//  3. Broadcast — publish the mutation event to connected observers. Never
//     blocks on acknowledgement.
//  4. Notify — detached background push fan-out with its own deadline;
//     outcome invisible to the caller.
//
// Reads go through List: cache hit → cached bytes; miss or cache failure →
// record store, then repopulate (fail-open).
//
// Identifier-addressed operations validate the 24-hex id before phase 1 and
// fail fast with store.ErrInvalidID.
package pipeline
