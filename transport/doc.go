// Package transport provides the message-framed connection both sides of
// the presence protocol speak over.
//
// A Conn wraps a websocket with a buffered outbound queue and a reader
// goroutine feeding Recv. Delivery is best-effort: there is no
// framing-level retry, and every transport failure (abrupt disconnect,
// oversized or malformed frame, write error) collapses into the Recv
// channel closing. Callers learn the reason from logs, not from a
// distinguished error type.
//
// The hub accepts connections with Upgrade; agents open them with Dial.
package transport
