// Package agent implements the peer side of the presence protocol.
//
// An Agent dials the hub, registers its identity and environment
// (hostname, platform, architecture), then heartbeats on a fixed
// interval. When the connection drops it schedules exactly one reconnect
// after a fixed delay and repeats forever; there is no backoff and no
// retry cap. Heartbeats fire even before the hub has assigned an id —
// they carry an empty id, which the hub acks and otherwise ignores.
//
// The id assigned by the hub is remembered across reconnects, so a
// returning agent re-registers under the same roster entry.
package agent
