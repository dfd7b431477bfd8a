// Package protocol defines the wire messages exchanged between a presence
// hub and its peers.
//
// # Overview
//
// Every frame on the wire is a single JSON object with a "type" field.
// Peers send "register" and "heartbeat" to the hub; the hub answers with
// "registered" and "heartbeat_ack" and pushes "update" broadcasts carrying
// the full roster to every open connection.
//
// # Message Flow
//
//	┌──────────┐   register / heartbeat    ┌──────────┐
//	│   Peer   │ ────────────────────────> │   Hub    │
//	│          │ <──────────────────────── │          │
//	└──────────┘  registered / ack / update└──────────┘
//
// Parse distinguishes malformed frames (ErrMalformed) from structurally
// valid frames with an unrecognized type (ErrUnknownType). Both are
// recoverable; callers log and drop the frame without closing the
// connection.
package protocol
