// Package mechanism is the SCRAM engine consumed by the handshake.
//
// The handshake only calls the five Engine operations and reads the
// outgoing message bytes from Session; everything cryptographic or
// encoding-specific stays here.
package mechanism
