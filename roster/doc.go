// Package roster holds the hub's in-memory record of registered peers.
//
// The Store maps peer ids to records carrying identity metadata, the
// registration timestamp, and the last heartbeat timestamp. It is owned by
// the hub; the protocol handler and the liveness sweeper mutate it only
// through the Store's operations. A record lives until its owning
// connection closes or the sweeper evicts it for missing heartbeats,
// whichever comes first.
//
// Time is injected through a clock.Clock so eviction boundaries can be
// tested deterministically.
package roster
