// Package validate holds the submission rules for story texts. The
// checks are pure: no I/O, no clock, no configuration beyond the
// length bounds handed in at construction.
package validate

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/piyumals/kathana/internal/model"
)

// Sinhala Unicode block.
const (
	sinhalaLo = 0x0D80
	sinhalaHi = 0x0DFF
)

// Severity classifies a validation message.
type Severity string

const (
	// SeverityReject blocks the submission until the text is edited.
	SeverityReject Severity = "reject"
	// SeverityWarn is advisory; the submission is still accepted.
	SeverityWarn Severity = "warn"
)

// Message is one human-readable validation finding.
type Message struct {
	Severity Severity
	Text     string
}

// Result is the ordered list of findings for one submission attempt.
type Result []Message

// Accepted reports whether the text may be submitted. Warnings alone
// do not block.
func (r Result) Accepted() bool {
	for _, m := range r {
		if m.Severity == SeverityReject {
			return false
		}
	}
	return true
}

// Rejections returns only the blocking findings.
func (r Result) Rejections() []Message {
	var out []Message
	for _, m := range r {
		if m.Severity == SeverityReject {
			out = append(out, m)
		}
	}
	return out
}

// Warnings returns only the advisory findings.
func (r Result) Warnings() []Message {
	var out []Message
	for _, m := range r {
		if m.Severity == SeverityWarn {
			out = append(out, m)
		}
	}
	return out
}

// Validator checks story texts against the length and script rules.
type Validator struct {
	minLength int
	maxLength int
}

// NewValidator creates a Validator. Non-positive bounds fall back to
// the defaults (50 and 50,000 code points).
func NewValidator(cfg model.ValidationConfig) *Validator {
	def := model.DefaultConfig().Validation
	if cfg.MinLength <= 0 {
		cfg.MinLength = def.MinLength
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = def.MaxLength
	}
	return &Validator{minLength: cfg.MinLength, maxLength: cfg.MaxLength}
}

// Check validates a story text. Length is measured in code points of
// the trimmed text. The length rules are mutually exclusive; the
// script check is evaluated regardless and only ever warns.
func (v *Validator) Check(text string) Result {
	var result Result

	s := strings.TrimSpace(text)
	n := utf8.RuneCountInString(s)

	switch {
	case s == "":
		result = append(result, Message{SeverityReject, "story cannot be empty"})
	case n < v.minLength:
		result = append(result, Message{SeverityReject, fmt.Sprintf("story must be at least %d characters, got %d", v.minLength, n)})
	case n > v.maxLength:
		result = append(result, Message{SeverityReject, fmt.Sprintf("story exceeds the maximum of %d characters, got %d", v.maxLength, n)})
	}

	if !containsSinhala(s) {
		result = append(result, Message{SeverityWarn, "no Sinhala characters detected"})
	}

	return result
}

func containsSinhala(s string) bool {
	for _, r := range s {
		if r >= sinhalaLo && r <= sinhalaHi {
			return true
		}
	}
	return false
}
