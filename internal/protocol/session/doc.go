// Package session owns the outer authentication loop.
//
// Ownership boundary:
// - retry/backoff policy around handshake attempts
// - idle-timeout selection per attempt
// - attempt bookkeeping (AttemptLog) and the per-call Report
//
// One Authenticate call holds its transport handle exclusively. Attempts run
// strictly one after another; the only waits are the backoff sleeps between
// failed attempts.
package session
