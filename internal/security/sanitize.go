// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package security

import "regexp"

// sanitizePatterns are removed from free-text input in order. This is a
// defense-in-depth layer for stored text (client agents, detail blobs),
// not a substitute for output encoding at render time.
var sanitizePatterns = []*regexp.Regexp{
	// script tags, opening and closing, with any attributes
	regexp.MustCompile(`(?i)<\s*script[^>]*>`),
	regexp.MustCompile(`(?i)<\s*/\s*script\s*>`),
	// javascript: scheme, with the colon optionally entity-encoded
	regexp.MustCompile(`(?i)javascript\s*(?::|&#0*58;?|&#x0*3a;?)`),
	// inline event handlers (onclick=, onerror=), equals optionally entity-encoded
	regexp.MustCompile(`(?i)\bon\w+\s*(?:=|&#0*61;?|&#x0*3d;?)`),
}

// SanitizeInput strips script-tag sequences, javascript: scheme prefixes,
// and inline event-handler patterns from text, including common
// entity-encoded variants.
func SanitizeInput(text string) string {
	for _, pattern := range sanitizePatterns {
		text = pattern.ReplaceAllString(text, "")
	}
	return text
}
