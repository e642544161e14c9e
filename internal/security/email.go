// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/keyward/keyward/internal/account"
)

// schemePattern matches a URI scheme prefix ("javascript:", "http:").
// Unquoted local parts cannot legally contain a colon, so any match is a
// smuggling attempt rather than a valid address.
var schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*:`)

// EmailResult is the outcome of ValidateEmailFormat. Normalized is only
// set when Valid; Reason is only set when not.
type EmailResult struct {
	Valid      bool
	Reason     string
	Normalized string
}

// NormalizeEmail lowercases and trims an email address. Every path that
// stores or matches emails (registration, login, audit resources) must
// normalize the same way or brute-force counting misses attempts.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmailFormat checks structural validity and rejects patterns that
// indicate header injection or URL smuggling rather than a typo. On
// success it returns the normalized form to store and compare.
func ValidateEmailFormat(email string) EmailResult {
	normalized := NormalizeEmail(email)

	switch {
	case normalized == "":
		return EmailResult{Reason: "email is empty"}
	case len(normalized) > account.MaxEmailLength:
		return EmailResult{Reason: fmt.Sprintf("email exceeds %d characters", account.MaxEmailLength)}
	case strings.ContainsFunc(normalized, unicode.IsSpace):
		return EmailResult{Reason: "email contains whitespace"}
	case strings.ContainsAny(normalized, "<>"):
		return EmailResult{Reason: "email contains angle brackets"}
	case strings.Count(normalized, "@") != 1:
		return EmailResult{Reason: "email must contain exactly one @"}
	case strings.Contains(normalized, ".."):
		return EmailResult{Reason: "email contains consecutive dots"}
	case schemePattern.MatchString(normalized):
		return EmailResult{Reason: "email contains a scheme prefix"}
	}

	local, domain, _ := strings.Cut(normalized, "@")
	switch {
	case local == "":
		return EmailResult{Reason: "email is missing the part before @"}
	case domain == "":
		return EmailResult{Reason: "email is missing the domain"}
	case !strings.Contains(domain, "."):
		return EmailResult{Reason: "email domain is missing a dot"}
	case strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, "."):
		return EmailResult{Reason: "email domain starts or ends with a dot"}
	}

	return EmailResult{Valid: true, Normalized: normalized}
}
