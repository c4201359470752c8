// Package moderation screens argument content against a static block-list.
package moderation

import "strings"

// DefaultBannedTerms is the block-list applied when no custom list is configured.
var DefaultBannedTerms = []string{"stupid", "idiot", "dumb", "hate", "kill", "die"}

// Result reports the outcome of a moderation check. When Allowed is false,
// Term carries the first banned term found in list order.
type Result struct {
	Allowed bool
	Term    string
}

// Checker performs case-insensitive substring matching against a fixed term list.
type Checker struct {
	terms []string
}

// NewChecker builds a Checker from the provided terms. Terms are lowercased
// and blank entries dropped; a nil or empty list falls back to DefaultBannedTerms.
func NewChecker(terms []string) *Checker {
	source := terms
	if len(source) == 0 {
		source = DefaultBannedTerms
	}
	normalized := make([]string, 0, len(source))
	for _, term := range source {
		cleaned := strings.ToLower(strings.TrimSpace(term))
		if cleaned == "" {
			continue
		}
		normalized = append(normalized, cleaned)
	}
	return &Checker{terms: normalized}
}

// Check scans text for banned terms. The first match in list order wins;
// only one term is reported even when several appear.
func (c *Checker) Check(text string) Result {
	lowered := strings.ToLower(text)
	for _, term := range c.terms {
		if strings.Contains(lowered, term) {
			return Result{Allowed: false, Term: term}
		}
	}
	return Result{Allowed: true}
}
