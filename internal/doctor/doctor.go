// Package doctor validates pubsub-webhook configuration offline.
package doctor

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/mgmonteleone/pubsub-webhook/internal/config"
)

// Result holds the outcome of a validation run.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
}

// Issue describes a single validation error or warning.
type Issue struct {
	Category string `json:"category"`
	Message  string `json:"message"`
	Field    string `json:"field,omitempty"`
}

// Doctor validates a loaded configuration.
type Doctor struct {
	cfg *config.Config
}

// New creates a Doctor from a loaded config.
func New(cfg *config.Config) *Doctor {
	return &Doctor{cfg: cfg}
}

// Validate runs all checks and returns a result.
func (d *Doctor) Validate() *Result {
	r := &Result{Valid: true}

	d.validateBroker(r)
	d.validateWebhook(r)
	d.validateAllowList(r)
	d.validateChallenge(r)

	r.Valid = len(r.Errors) == 0
	return r
}

func (d *Doctor) addError(r *Result, category, field, msg string) {
	r.Errors = append(r.Errors, Issue{Category: category, Field: field, Message: msg})
}

func (d *Doctor) addWarning(r *Result, category, field, msg string) {
	r.Warnings = append(r.Warnings, Issue{Category: category, Field: field, Message: msg})
}

// validateBroker checks required broker fields via the startup validator so
// the check command and the runtime agree.
func (d *Doctor) validateBroker(r *Result) {
	if err := d.cfg.Validate(); err != nil {
		d.addError(r, "config", "", err.Error())
	}
	if d.cfg.Broker.PublishTimeout.Seconds() > 30 {
		d.addWarning(r, "broker", "broker.publish_timeout",
			fmt.Sprintf("publish_timeout %s is unusually long; webhook providers typically retry after a few seconds", d.cfg.Broker.PublishTimeout))
	}
}

// validateWebhook checks listener settings.
func (d *Doctor) validateWebhook(r *Result) {
	if d.cfg.Webhook.Listen == "" {
		d.addError(r, "webhook", "webhook.listen", "webhook.listen is required")
	}
	if !strings.Contains(d.cfg.Webhook.Listen, ":") {
		d.addError(r, "webhook", "webhook.listen",
			fmt.Sprintf("webhook.listen %q is not a host:port address", d.cfg.Webhook.Listen))
	}
}

// validateAllowList reports malformed CIDR entries. These are skipped at
// runtime, so they are warnings, except when nothing valid remains under the
// closed policy, which silently rejects all traffic.
func (d *Doctor) validateAllowList(r *Result) {
	ranges := d.cfg.Webhook.AllowListRanges()
	if len(ranges) == 0 {
		return
	}

	valid := 0
	for i, entry := range ranges {
		if parseable(entry) {
			valid++
			continue
		}
		d.addWarning(r, "allow_list", fmt.Sprintf("webhook.allow_list[%d]", i),
			fmt.Sprintf("entry %q is not a valid CIDR range or address and will be skipped", entry))
	}

	if valid == 0 {
		switch d.cfg.Webhook.AllowListPolicy {
		case "closed":
			d.addError(r, "allow_list", "webhook.allow_list",
				"no valid entries and allow_list_policy is closed: all traffic would be rejected")
		default:
			d.addWarning(r, "allow_list", "webhook.allow_list",
				"no valid entries and allow_list_policy is open: all traffic would be permitted")
		}
	}
}

// validateChallenge warns when no handshake probe is configured.
func (d *Doctor) validateChallenge(r *Result) {
	c := d.cfg.Webhook.Challenge
	if c.BodyField == "" && c.Header == "" && c.QueryParam == "" {
		d.addWarning(r, "challenge", "webhook.challenge",
			"no challenge probe configured; provider verification handshakes will be published as events")
	}
}

// parseable mirrors the runtime allow-list parser: CIDR range or bare address.
func parseable(entry string) bool {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		_, err := netip.ParsePrefix(entry)
		return err == nil
	}
	_, err := netip.ParseAddr(entry)
	return err == nil
}
