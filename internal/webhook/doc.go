// Package webhook implements the HTTP endpoint that relays webhook events to
// the pub/sub broker.
//
// # Request Flow
//
//  1. HTTP POST arrives at the configured path (other methods get 405)
//  2. If startup configuration was invalid, every request gets 500
//  3. Client IP resolved (forwarding header, then socket peer) and checked
//     against the CIDR allow list when one is configured (reject with 403)
//  4. Body size checked (reject with 413 if too large)
//  5. Provider challenge handshakes are echoed back with 200, no publish
//  6. Body published verbatim to the configured subject, bounded by the
//     publish timeout
//  7. 200 returned with the broker message id, or 502/500 on broker failure
//
// # Security Model
//
// - Origin filtering by CIDR allow list, fail-closed for unparseable IPs
// - Broker failure detail is logged server-side, never echoed to callers
// - Request logging records sizes and a BLAKE3 digest of the payload,
//   never payload bytes or header dumps
// - Body size limits enforced before any processing
//
// # Error Responses
//
//   - 403 Forbidden: origin not on the allow list or not determinable
//   - 405 Method Not Allowed: anything but POST
//   - 413 Payload Too Large: body exceeds max_body_size
//   - 500 Internal Server Error: missing startup configuration, or the
//     broker rejected the message
//   - 502 Bad Gateway: broker unreachable or publish timed out
package webhook
