package ipfilter

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// Policy decides the outcome when an allow list was configured but no valid
// ranges survived parsing.
type Policy string

// Possible policies.
const (
	// PolicyOpen permits all traffic when no valid ranges remain. One bad
	// config entry must not take the endpoint down.
	PolicyOpen Policy = "open"

	// PolicyClosed rejects all traffic when no valid ranges remain.
	PolicyClosed Policy = "closed"
)

// AllowList is a parsed, immutable set of permitted CIDR ranges.
type AllowList struct {
	prefixes   []netip.Prefix
	policy     Policy
	configured bool
}

// NewAllowList parses the configured CIDR ranges into an AllowList.
// Malformed entries are logged at WARN and skipped. An empty ranges slice
// means no restriction is configured.
func NewAllowList(ranges []string, policy Policy, logger *slog.Logger) *AllowList {
	a := &AllowList{
		policy:     policy,
		configured: len(ranges) > 0,
	}

	for _, r := range ranges {
		p, err := parseRange(r)
		if err != nil {
			logger.Warn("allow list entry skipped",
				"entry", r,
				"error", err,
			)
			continue
		}
		a.prefixes = append(a.prefixes, p)
	}

	if a.configured && len(a.prefixes) == 0 {
		logger.Warn("allow list has no valid entries",
			"policy", string(policy),
		)
	}

	return a
}

// parseRange parses a CIDR range string. A bare address is treated as a
// single-host range (/32 for IPv4, /128 for IPv6).
func parseRange(r string) (netip.Prefix, error) {
	r = strings.TrimSpace(r)
	if r == "" {
		return netip.Prefix{}, fmt.Errorf("empty range")
	}

	if strings.Contains(r, "/") {
		p, err := netip.ParsePrefix(r)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("invalid CIDR range: %w", err)
		}
		return p.Masked(), nil
	}

	addr, err := netip.ParseAddr(r)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address: %w", err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Allowed reports whether candidate is permitted by the allow list.
//
// An unconfigured list permits everything. A candidate that does not parse
// as an IP address is rejected. Ranges only match candidates of the same
// address family.
func (a *AllowList) Allowed(candidate string) bool {
	if !a.configured {
		return true
	}

	if len(a.prefixes) == 0 {
		// All configured entries were malformed; the policy decides.
		return a.policy != PolicyClosed
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(candidate))
	if err != nil {
		return false
	}
	// Normalize IPv4-mapped IPv6 (::ffff:a.b.c.d) so it matches IPv4 ranges.
	addr = addr.Unmap()

	for _, p := range a.prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// Len returns the number of valid parsed ranges.
func (a *AllowList) Len() int {
	return len(a.prefixes)
}

// Configured reports whether any ranges (valid or not) were configured.
func (a *AllowList) Configured() bool {
	return a.configured
}
