// Package publisher wraps the process-wide NATS connection behind a small
// publish contract: payload bytes in, broker message id out, bounded wait.
//
// The connection is created once at startup and shared by every request.
// Each accepted webhook results in exactly one publish attempt; retries are
// left to the NATS client's reconnect handling and to the webhook provider's
// own redelivery policy.
//
// With JetStream enabled the message id is the broker's "<stream>:<sequence>"
// acknowledgement. With core NATS there is no broker ack, so the id is the
// client-generated uuid sent in the Nats-Msg-Id header and the round-trip is
// bounded by a flush.
package publisher
