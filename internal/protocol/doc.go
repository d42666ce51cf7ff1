// Package protocol groups the SCRAM client stack.
//
// Ownership boundary:
// - transport: TLS connect, framed send, idle-timeout receive
// - mechanism: SCRAM message construction, parsing and server verification
// - handshake: the per-attempt state machine
// - session: retry/backoff around attempts
package protocol
