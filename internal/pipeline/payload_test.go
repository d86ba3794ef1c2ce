// ABOUTME: Tests for update payload validation.
// ABOUTME: Table-driven coverage of required fields, caps, domains, and timestamps.

package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validPayload() *UpdatePayload {
	return &UpdatePayload{
		Domain:    "Science",
		Headline:  "Telescope Spots New Exoplanet",
		Content:   "Details of the observation.",
		Sources:   []string{"https://example.com/obs"},
		Timestamp: "2026-08-20T10:00:00Z",
	}
}

func TestValidatePayload(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(p *UpdatePayload)
		wantErr string // empty means valid
	}{
		{"valid payload", func(p *UpdatePayload) {}, ""},
		{"valid with offset timestamp", func(p *UpdatePayload) { p.Timestamp = "2026-08-20T10:00:00+02:00" }, ""},
		{"nil sources", func(p *UpdatePayload) { p.Sources = nil }, "sources"},
		{"empty sources", func(p *UpdatePayload) { p.Sources = []string{} }, "sources"},
		{"blank source entry", func(p *UpdatePayload) { p.Sources = []string{"  "} }, "sources"},
		{"missing headline", func(p *UpdatePayload) { p.Headline = "" }, "headline"},
		{"whitespace headline", func(p *UpdatePayload) { p.Headline = "   " }, "headline"},
		{"overlong headline", func(p *UpdatePayload) { p.Headline = strings.Repeat("h", MaxHeadlineLen+1) }, "headline"},
		{"missing content", func(p *UpdatePayload) { p.Content = "" }, "content"},
		{"overlong content", func(p *UpdatePayload) { p.Content = strings.Repeat("c", MaxContentLen+1) }, "content"},
		{"missing domain", func(p *UpdatePayload) { p.Domain = "" }, "domain"},
		{"unknown domain", func(p *UpdatePayload) { p.Domain = "Astrology" }, "domain"},
		{"missing timestamp", func(p *UpdatePayload) { p.Timestamp = "" }, "timestamp"},
		{"garbage timestamp", func(p *UpdatePayload) { p.Timestamp = "yesterday" }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPayload()
			tt.mutate(p)
			err := ValidatePayload(p)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr, "error should name the offending field")
			}
		})
	}
}

func TestValidatePayloadNil(t *testing.T) {
	assert.Error(t, ValidatePayload(nil))
}

func TestParseTimestamp(t *testing.T) {
	for _, ts := range []string{
		"2026-08-20T10:00:00Z",
		"2026-08-20T10:00:00+02:00",
		"2026-08-20T10:00:00",
	} {
		_, err := ParseTimestamp(ts)
		assert.NoError(t, err, ts)
	}

	_, err := ParseTimestamp("20/08/2026")
	assert.Error(t, err)
}
