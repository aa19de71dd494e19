// Package ipfilter decides whether a webhook caller's source IP is permitted.
//
// An AllowList is built once at startup from configured CIDR ranges (IPv4 and
// IPv6 may be mixed, a bare address counts as a /32 or /128). Malformed
// entries are a configuration problem: they are logged and skipped rather
// than failing the whole request path. When every configured entry is
// malformed, the configured policy decides between permitting all traffic
// (open) and rejecting all traffic (closed).
//
// Membership checks are pure: same inputs, same answer, no I/O. A candidate
// that does not parse as an IP address is never allowed, since its origin
// cannot be verified. Address families never cross-match: an IPv6 candidate
// is not contained in an IPv4 range.
//
// ClientIP resolves the originating address behind proxies and load
// balancers: the left-most entry of the forwarding header is the client as
// seen by the first proxy in the chain, and the socket peer is the fallback.
package ipfilter
