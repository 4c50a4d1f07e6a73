// Command tcptransfer sends one file to one peer over TLS.
//
// The sender listens on an ephemeral port, prints its endpoint and waits for
// a single connection. The receiver dials that endpoint, reads the 8-byte
// size prefix and writes exactly that many bytes to its destination file.
//
// Usage:
//
//	tcptransfer [flags]
//
// Without -send or -receive the program asks:
//
//	Enter file path or press enter to receive:
//
// Flags:
//
//	-config string             Configuration file path (YAML)
//	-send string               Send this file (skips the prompt)
//	-receive string            Receive from ADDRESS:PORT (skips the prompt)
//	-dest string               Receiver destination (default <tempdir>/received.bin)
//	-bind string               Sender bind address (default "0.0.0.0:0")
//	-cert, -key string         PEM certificate and key, generated when both are missing
//	                           (default: ephemeral self-signed)
//	-pin string                Expected SHA-256 of the sender's certificate
//	-buffer-size int           Copy chunk size in bytes
//	-handshake-timeout dur     Bound the TLS handshake
//	-idle-timeout dur          Bound every read and write
//	-connect-timeout dur       Bound each TCP connect attempt
//	-connect-retries int       Retry the connect with backoff
//	-dscp int                  DSCP code point for the data socket
//	-protocol-log string       Append protocol events to a .tlog file or directory
//	-key-log string            Append TLS session keys (NSS key log format)
//	-log-level string          debug, info, warn, error (default "info")
//	-instance string           mDNS instance name (default: host name)
//	-advertise                 Announce the sender over mDNS
//	-browse                    Find the sender over mDNS instead of prompting
//	-progress                  Show a progress bar on stderr
//	-version                   Print the version and exit
//
// Exit status is 0 on success, 1 when the transfer fails and 2 for usage or
// configuration errors.
//
// Examples:
//
//	# Send a file and announce it on the local network
//	tcptransfer -send backup.tar -advertise
//
//	# Receive from a known endpoint, pinning the sender's certificate
//	tcptransfer -receive 192.168.1.20:41873 -pin sha256:3c1f... -dest ./backup.tar
//
//	# Receive from whichever sender is announced
//	tcptransfer -browse -progress
package main

import (
	"os"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
