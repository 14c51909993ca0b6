// Package alert converts detected violations into outbound alert messages,
// deduplicating repeats within a session.
package alert

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"ai-compliance-copilot-service/internal/events"
	"ai-compliance-copilot-service/internal/models"
	"ai-compliance-copilot-service/internal/observability/metrics"
	"ai-compliance-copilot-service/internal/rules"
	"ai-compliance-copilot-service/internal/session"
)

// DefaultDedupContextChars is how many characters of matched text go into
// the dedup fingerprint.
const DefaultDedupContextChars = 30

// Dispatcher delivers at most one alert per (rule, context fingerprint)
// pair per session lifetime. It is stateless itself; all dedup state lives
// in the session.
type Dispatcher struct {
	dedupChars int
	publisher  *events.Publisher
	metrics    *metrics.Metrics
}

// NewDispatcher creates a dispatcher. publisher may be nil when downstream
// event publishing is disabled.
func NewDispatcher(dedupChars int, publisher *events.Publisher) *Dispatcher {
	if dedupChars <= 0 {
		dedupChars = DefaultDedupContextChars
	}
	return &Dispatcher{
		dedupChars: dedupChars,
		publisher:  publisher,
		metrics:    metrics.DefaultMetrics,
	}
}

// Dispatch converts a violation into an alert and delivers it to the
// session's outbound channel. Duplicate fingerprints are a no-op. Delivery
// failure is logged and swallowed; the dedup insertion is not rolled back
// (at-most-once: a missed alert beats a duplicate alert storm). Returns
// true when an alert was handed to the outbound channel.
func (d *Dispatcher) Dispatch(s *session.Session, v rules.Violation) bool {
	fp := d.fingerprint(v)
	if !s.MarkFingerprint(fp) {
		d.metrics.RecordAlertDeduplicated()
		log.Debug().
			Str("sessionId", s.ID).
			Str("ruleId", v.RuleID).
			Msg("Alert suppressed by dedup fingerprint")
		return false
	}

	a := buildAlert(v)
	dropped, err := s.Deliver(a)
	if err != nil {
		d.metrics.RecordAlertDeliveryFailed()
		log.Warn().
			Err(err).
			Str("sessionId", s.ID).
			Str("ruleId", v.RuleID).
			Msg("Alert delivery failed, dropping")
		return false
	}
	if dropped > 0 {
		log.Warn().
			Str("sessionId", s.ID).
			Int("dropped", dropped).
			Msg("Outbound alert queue full, dropped oldest")
	}
	d.metrics.RecordAlertDelivered(v.Severity, dropped)

	if d.publisher != nil {
		if perr := d.publisher.PublishAlert(context.Background(), s.ID, a); perr != nil {
			log.Warn().Err(perr).Str("sessionId", s.ID).Msg("Failed to publish alert event")
		}
	}
	return true
}

// fingerprint builds the dedup key: rule ID plus the first N bytes of the
// matched text, trimmed to a rune boundary.
func (d *Dispatcher) fingerprint(v rules.Violation) string {
	text := v.MatchedText
	if len(text) > d.dedupChars {
		n := d.dedupChars
		for n > 0 && !utf8.RuneStart(text[n]) {
			n--
		}
		text = text[:n]
	}
	return v.RuleID + ":" + text
}

// buildAlert constructs the outbound payload for a violation. Info-severity
// violations are advisory nudges; everything else is a compliance
// violation.
func buildAlert(v rules.Violation) models.Alert {
	alertType := models.AlertTypeViolation
	if v.Severity == models.SeverityInfo {
		alertType = models.AlertTypeNudge
	}
	a := models.Alert{
		Type:      alertType,
		Timestamp: float64(v.Timestamp.UnixMilli()) / 1000.0,
		Severity:  v.Severity,
		Icon:      models.SeverityIcon(v.Severity),
		Title:     v.RuleName,
		Message:   v.Message,
		Context:   v.MatchedText,
	}
	if v.SuggestedResponse != "" {
		sr := v.SuggestedResponse
		a.SuggestedResponse = &sr
	}
	if v.RegulationReference != "" {
		rr := v.RegulationReference
		a.RegulationReference = &rr
	}
	return a
}
