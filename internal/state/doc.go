// Package state persists per-account relay progress across runs.
//
// For every tracked handle it keeps:
//   - the cached upstream user id (resolved once, reused forever)
//   - the cursor: the id of the last post known to be delivered
//
// The document is loaded once at run start, mutated in memory, and
// committed once at run end. Backends that support conditional writes
// (remote, sqlite) reject a commit whose version no longer matches the
// load, so two overlapping runs cannot clobber each other's cursors.
package state
