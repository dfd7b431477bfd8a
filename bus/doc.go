// Package bus carries presence events from the hub to interested
// consumers.
//
// The hub publishes one event per roster change (join, leave, expire)
// plus a full-roster update per broadcast. Internally the hub uses the
// in-memory bus; deployments that set NATS_URL additionally mirror every
// event to NATS so external systems can consume presence without holding
// a websocket open.
//
// Subjects follow the presence.<event> convention. Subscriptions accept a
// trailing ">" wildcard ("presence.>" matches every presence subject) on
// both implementations.
package bus
