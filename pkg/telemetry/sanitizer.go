package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// PIILevel controls how much user supplied text leaves the process through logs and notifications.
type PIILevel string

const (
	// PIILevelNone replaces user text entirely.
	PIILevelNone PIILevel = "none"
	// PIILevelHashed keeps the text but swaps personal data for salted fingerprints.
	PIILevelHashed PIILevel = "hashed"
	// PIILevelFull passes text through untouched.
	PIILevelFull PIILevel = "full"
)

// ParsePIILevel maps a configuration value to a level, falling back to hashed.
func ParsePIILevel(raw string) PIILevel {
	switch level := PIILevel(strings.ToLower(strings.TrimSpace(raw))); level {
	case PIILevelNone, PIILevelHashed, PIILevelFull:
		return level
	default:
		return PIILevelHashed
	}
}

type piiRule struct {
	label   string
	pattern *regexp.Regexp
	// fingerprint keeps a salted hash so repeated values stay correlatable; otherwise the match is dropped.
	fingerprint bool
}

// Sanitizer strips personal data from support messages before they are logged or forwarded.
type Sanitizer struct {
	level PIILevel
	salt  string
	rules []piiRule
}

// NewSanitizer creates a sanitizer; salt scopes fingerprints to one deployment.
func NewSanitizer(level PIILevel, salt string) *Sanitizer {
	return &Sanitizer{
		level: level,
		salt:  salt,
		rules: []piiRule{
			{label: "EMAIL", pattern: regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), fingerprint: true},
			{label: "IBAN", pattern: regexp.MustCompile(`\b[A-Z]{2}\d{2}(?:\s?[0-9A-Z]{4}){4,7}(?:\s?[0-9A-Z]{1,3})?\b`)},
			{label: "CARD", pattern: regexp.MustCompile(`\b\d{4}[- ]?\d{4}[- ]?\d{4}[- ]?\d{4}\b`)},
			{label: "PHONE", pattern: regexp.MustCompile(`(?:\+33\s?|\b0)[1-9](?:[\s.-]?\d{2}){4}\b`), fingerprint: true},
			{label: "IP", pattern: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), fingerprint: true},
		},
	}
}

// Level returns the configured level.
func (s *Sanitizer) Level() PIILevel {
	return s.level
}

// Text sanitizes free text such as a chat message or escalation details.
func (s *Sanitizer) Text(input string) string {
	if input == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return input
	default:
		return s.scrub(input)
	}
}

// Identifier sanitizes a user id or e-mail used as a log field.
func (s *Sanitizer) Identifier(id string) string {
	if id == "" {
		return ""
	}
	switch s.level {
	case PIILevelNone:
		return "[REDACTED]"
	case PIILevelFull:
		return id
	default:
		return s.Fingerprint(id)
	}
}

// Fingerprint returns a short salted SHA-256 of data.
func (s *Sanitizer) Fingerprint(data string) string {
	sum := sha256.Sum256([]byte(s.salt + ":" + data))
	return hex.EncodeToString(sum[:])[:10]
}

func (s *Sanitizer) scrub(input string) string {
	result := input
	for _, rule := range s.rules {
		result = rule.pattern.ReplaceAllStringFunc(result, func(match string) string {
			if rule.fingerprint {
				return fmt.Sprintf("[%s:%s]", rule.label, s.Fingerprint(match))
			}
			return fmt.Sprintf("[%s:REDACTED]", rule.label)
		})
	}
	return result
}
