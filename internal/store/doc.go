// Package store persists user records in SQLite. It owns identifier
// assignment (24 hex characters, 12 random bytes) and exposes the four
// operations the mutation pipeline needs: FindAll, Insert, UpdateFields,
// DeleteByID. UpdateFields is a merge-patch — only submitted fields are
// written. Unknown ids on update/delete report zero rows, not an error;
// malformed ids report ErrInvalidID.
package store
