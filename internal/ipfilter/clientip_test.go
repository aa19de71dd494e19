package ipfilter

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP_ForwardedHeaderTakesFirstHop(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "1.2.3.4, 5.6.7.8")

	assert.Equal(t, "1.2.3.4", ClientIP(h, "9.9.9.9:1234", ""))
}

func TestClientIP_ForwardedHeaderSingleEntry(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "  1.2.3.4  ")

	assert.Equal(t, "1.2.3.4", ClientIP(h, "9.9.9.9:1234", ""))
}

func TestClientIP_NoHeaderFallsBackToPeer(t *testing.T) {
	assert.Equal(t, "9.9.9.9", ClientIP(http.Header{}, "9.9.9.9:1234", ""))
	assert.Equal(t, "9.9.9.9", ClientIP(http.Header{}, "9.9.9.9", ""))
}

func TestClientIP_BlankHeaderFallsBackToPeer(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", "   ")

	assert.Equal(t, "9.9.9.9", ClientIP(h, "9.9.9.9:1234", ""))
}

func TestClientIP_EmptyFirstHopIsUndetermined(t *testing.T) {
	h := http.Header{}
	h.Set("X-Forwarded-For", ", 5.6.7.8")

	assert.Equal(t, "", ClientIP(h, "9.9.9.9:1234", ""))
}

func TestClientIP_CustomHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Real-IP", "1.2.3.4")
	h.Set("X-Forwarded-For", "5.6.7.8")

	assert.Equal(t, "1.2.3.4", ClientIP(h, "9.9.9.9:1234", "X-Real-IP"))
}

func TestClientIP_IPv6Peer(t *testing.T) {
	assert.Equal(t, "::1", ClientIP(http.Header{}, "[::1]:8080", ""))
}
