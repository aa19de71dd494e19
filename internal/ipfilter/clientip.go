package ipfilter

import (
	"net"
	"net/http"
	"strings"
)

// DefaultForwardedHeader is the proxy header consulted when none is configured.
const DefaultForwardedHeader = "X-Forwarded-For"

// ClientIP resolves the originating client address for a request.
//
// When the forwarding header is present its value is a comma-separated chain
// of hops, each proxy appending the peer it saw; the left-most entry is the
// original client as seen by the first proxy. When the header is absent or
// blank the socket peer address is used, with the port stripped.
//
// The result is not validated here; an empty string means the origin could
// not be determined.
func ClientIP(headers http.Header, remoteAddr, forwardedHeader string) string {
	if forwardedHeader == "" {
		forwardedHeader = DefaultForwardedHeader
	}

	if v := strings.TrimSpace(headers.Get(forwardedHeader)); v != "" {
		first, _, _ := strings.Cut(v, ",")
		return strings.TrimSpace(first)
	}

	return peerHost(remoteAddr)
}

// peerHost strips the port from a socket peer address, falling back to the
// raw value when it has no port.
func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}
