// Package cache provides the key→serialized-value store that fronts the
// record store. The Cache interface carries the three operations the request
// path needs (Get, Set, Invalidate); Memory is the in-process implementation
// with lazy expiry on read and a background sweep (Run).
//
// Failure semantics are the caller's contract, not the cache's: a Get error
// is a miss (fall through to the record store), a Set or Invalidate error is
// tolerated staleness.
package cache
