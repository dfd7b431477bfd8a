// Package hub implements the central presence process: it accepts peer
// connections, tracks registrations and heartbeats in a roster, evicts
// peers that go silent, and pushes the current roster to every open
// connection.
//
// # Architecture
//
//	┌────────┐  register/heartbeat  ┌─────────────────┐
//	│  Peer  │ ───────────────────> │  Hub run loop   │──> roster.Store
//	└────────┘ <─────────────────── │  (single owner) │──> bus (events)
//	             ack / update       └─────────────────┘
//	                                        │ sweep ticker
//	                                        v
//	                                  stale eviction
//
// One goroutine owns all roster mutation: connection attach/detach,
// inbound protocol frames, and sweep ticks are serialized onto the run
// loop, so handlers never race each other. The HTTP roster query reads a
// snapshot concurrently; the store's own lock covers that.
//
// Each roster change is also published to the event bus (presence.join,
// presence.leave, presence.expire, presence.update) and, when configured,
// mirrored to NATS.
package hub
