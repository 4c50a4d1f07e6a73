// Package discovery implements optional mDNS/DNS-SD discovery of senders.
//
// # Service
//
// A sender advertises _tcptransfer._tcp in the local. domain while it waits
// for its single connection, and withdraws the record once a peer connects.
// The instance name is operator-chosen (default: host name).
//
// # TXT records
//
//   - v: protocol version, currently "1"
//   - fp: lowercase hex SHA-256 of the sender's certificate
//
// A receiver that finds a sender this way can pin fp, so discovery never
// weakens the handshake: a spoofed advertisement either carries a different
// fingerprint (and the operator sees it) or fails the pin.
package discovery
