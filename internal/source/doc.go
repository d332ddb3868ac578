// Package source talks to the upstream posts API.
//
// Two operations: resolve a handle to its stable user id (cached in state,
// upstream ids never change in practice) and fetch recent posts newer than
// a cursor. Both share one rate-limit policy: wait once for a fixed delay
// and retry exactly once; a second rate-limit abandons the operation until
// the next run. Nothing about backoff is persisted.
package source
