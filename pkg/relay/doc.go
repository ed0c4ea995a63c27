// Package relay defines the contracts for the message-relay substrate that
// connects many clients to the single active coordinator.
//
// The substrate itself (request-routing broker and publish/subscribe proxy)
// is an external collaborator; the coordinator only needs "receive request,
// send reply" and "publish(topic, payload)" semantics from it. Implementations
// live in internal/relay: a ZeroMQ client for production and an in-process
// bus for tests.
package relay
