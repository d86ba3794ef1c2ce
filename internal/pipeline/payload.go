// ABOUTME: Update payload shape and boundary validation for incoming content updates.
// ABOUTME: Validation runs exactly once, at the webhook boundary, before admission.

package pipeline

import (
	"fmt"
	"strings"
	"time"
)

// Payload size caps, enforced at the boundary.
const (
	MaxHeadlineLen = 500
	MaxContentLen  = 50_000
)

// AllowedDomains is the fixed set of content domains accepted by the
// webhook and assigned by harvester sources.
var AllowedDomains = map[string]bool{
	"Technology":  true,
	"Politics":    true,
	"Economics":   true,
	"Health":      true,
	"Science":     true,
	"Environment": true,
	"Energy":      true,
	"Space":       true,
	"Security":    true,
	"Education":   true,
	"Business":    true,
	"General":     true,
}

// UpdatePayload is the transient shape of a content update submitted to the
// webhook. It is validated once at the boundary and never persisted as-is.
type UpdatePayload struct {
	Domain    string   `json:"domain"`
	Headline  string   `json:"headline"`
	Content   string   `json:"content"`
	Sources   []string `json:"sources"`
	Timestamp string   `json:"timestamp"`
}

// ValidatePayload checks the payload against the schema: required non-empty
// fields, the allowed domain set, length caps, a non-empty source list, and
// an ISO-8601 timestamp. The returned error names the first offending field.
func ValidatePayload(p *UpdatePayload) error {
	if p == nil {
		return fmt.Errorf("payload must be a JSON object")
	}
	if strings.TrimSpace(p.Domain) == "" {
		return fmt.Errorf("field 'domain' must not be empty")
	}
	if !AllowedDomains[p.Domain] {
		return fmt.Errorf("field 'domain' must be one of the allowed domains, got %q", p.Domain)
	}
	if strings.TrimSpace(p.Headline) == "" {
		return fmt.Errorf("field 'headline' must not be empty")
	}
	if len(p.Headline) > MaxHeadlineLen {
		return fmt.Errorf("field 'headline' must not exceed %d characters", MaxHeadlineLen)
	}
	if strings.TrimSpace(p.Content) == "" {
		return fmt.Errorf("field 'content' must not be empty")
	}
	if len(p.Content) > MaxContentLen {
		return fmt.Errorf("field 'content' must not exceed %d characters", MaxContentLen)
	}
	if len(p.Sources) == 0 {
		return fmt.Errorf("field 'sources' must contain at least one entry")
	}
	for _, s := range p.Sources {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("entries in 'sources' must be non-empty strings")
		}
	}
	if strings.TrimSpace(p.Timestamp) == "" {
		return fmt.Errorf("field 'timestamp' must not be empty")
	}
	if _, err := ParseTimestamp(p.Timestamp); err != nil {
		return fmt.Errorf("field 'timestamp' must be a valid ISO-8601 datetime string")
	}
	return nil
}

// ParseTimestamp parses an ISO-8601 timestamp, accepting both an explicit
// offset and the trailing-Z form.
func ParseTimestamp(ts string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, ts); err == nil {
		return t, nil
	}
	// Second-resolution timestamps without an offset are common in feeds.
	return time.Parse("2006-01-02T15:04:05", ts)
}
