// Package transport owns the encrypted byte stream under a SCRAM exchange.
//
// Ownership boundary:
// - TLS connect/disconnect against the platform trust store
// - atomic send with flush-wait
// - idle-timeout message assembly (no length prefix on the wire)
//
// A Handle is owned by one authentication call for its whole lifetime and
// must not be shared between concurrent handshakes.
package transport
