// Package protocol defines the wire contract of the streaming endpoint:
// the typed JSON messages sent to clients, the session parameters carried in
// the connection query string, and validation of inbound PCM audio frames.
package protocol
