package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
)

// Message is one event received from the bus.
type Message struct {
	// Subject the event was published to.
	Subject string

	// Data is the event payload, JSON-encoded by the publisher.
	Data []byte
}

// MessageBus provides fire-and-forget pub/sub for presence events.
type MessageBus interface {
	// Publish sends an event to all subscribers of a subject. Delivery
	// is best-effort; slow subscribers drop events.
	Publish(subject string, data []byte) error

	// Subscribe creates a subscription. The subject may end in ">" to
	// match every subject sharing the prefix.
	Subscribe(subject string) (Subscription, error)

	// Close shuts down the bus and every open subscription.
	Close() error
}

// Subscription is an active event feed.
type Subscription interface {
	// Messages returns the event channel, closed when the subscription
	// ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 64
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 64,
	}
}

// ValidateSubject checks that a subject is publishable or subscribable.
// A ">" token is only valid as the final token.
func ValidateSubject(subject string) error {
	if subject == "" {
		return ErrInvalidSubject
	}
	tokens := strings.Split(subject, ".")
	for i, tok := range tokens {
		if tok == "" {
			return ErrInvalidSubject
		}
		if tok == ">" && i != len(tokens)-1 {
			return ErrInvalidSubject
		}
	}
	return nil
}

// subjectMatches reports whether a concrete subject matches a
// subscription pattern, honoring a trailing ">" wildcard.
func subjectMatches(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ".>") {
		prefix := strings.TrimSuffix(pattern, ">")
		return strings.HasPrefix(subject, prefix)
	}
	if pattern == ">" {
		return true
	}
	return false
}
