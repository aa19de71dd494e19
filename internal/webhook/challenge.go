package webhook

import (
	"encoding/json"
	"net/http"
)

// challengeEcho is the response for a detected verification handshake.
type challengeEcho struct {
	body        []byte
	contentType string
}

// detectChallenge checks whether the request is a provider verification
// handshake rather than a real event. Probes run in order: JSON body field,
// header, query parameter. The first configured probe that matches wins.
//
// A body-field match echoes the original JSON document back, the way the
// handshake expects. Header and query matches echo just the token.
func (c ChallengeConfig) detectChallenge(r *http.Request, body []byte) (challengeEcho, bool) {
	if c.BodyField != "" && len(body) > 0 {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(body, &fields); err == nil {
			if tok, ok := fields[c.BodyField]; ok && !isEmptyToken(tok) {
				return challengeEcho{body: body, contentType: "application/json"}, true
			}
		}
	}

	if c.Header != "" {
		if v := r.Header.Get(c.Header); v != "" {
			return challengeEcho{body: []byte(v), contentType: "text/plain"}, true
		}
	}

	if c.QueryParam != "" {
		if v := r.URL.Query().Get(c.QueryParam); v != "" {
			return challengeEcho{body: []byte(v), contentType: "text/plain"}, true
		}
	}

	return challengeEcho{}, false
}

// isEmptyToken reports whether a raw JSON value is null or an empty string.
func isEmptyToken(raw json.RawMessage) bool {
	s := string(raw)
	return s == "null" || s == `""`
}
