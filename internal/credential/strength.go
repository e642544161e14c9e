// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package credential

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Password length bounds enforced by ValidateStrength.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// weakSubstrings are common password fragments rejected outright.
// Matching is case-insensitive substring matching, so "MyPassword1!"
// fails despite satisfying every character-class rule.
var weakSubstrings = []string{
	"password",
	"qwerty",
	"letmein",
	"welcome",
	"admin",
	"abc123",
	"123456",
	"iloveyou",
	"monkey",
	"dragon",
}

// StrengthResult reports the outcome of ValidateStrength. Score counts the
// satisfied checks (0-6); Valid requires all six. Failed lists a
// human-readable reason per failed check, suitable for returning to the
// caller verbatim.
type StrengthResult struct {
	Valid  bool
	Score  int
	Failed []string
}

// ValidateStrength screens a candidate password against six structural
// checks: length bounds, uppercase, lowercase, digit, symbol, and a
// denylist of weak patterns (repeated runs, ascending sequences, common
// fragments). This is advisory screening before hashing, not a
// cryptographic strength measure.
func ValidateStrength(password string) StrengthResult {
	length := utf8.RuneCountInString(password)

	checks := []struct {
		reason string
		passed bool
	}{
		{
			reason: fmt.Sprintf("password must be between %d and %d characters", MinPasswordLength, MaxPasswordLength),
			passed: length >= MinPasswordLength && length <= MaxPasswordLength,
		},
		{
			reason: "password must contain an uppercase letter",
			passed: strings.ContainsFunc(password, unicode.IsUpper),
		},
		{
			reason: "password must contain a lowercase letter",
			passed: strings.ContainsFunc(password, unicode.IsLower),
		},
		{
			reason: "password must contain a digit",
			passed: strings.ContainsFunc(password, unicode.IsDigit),
		},
		{
			reason: "password must contain a symbol",
			passed: strings.ContainsFunc(password, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			}),
		},
		{
			reason: "password must not contain repeated, sequential, or common weak patterns",
			passed: !hasRepeatedRun(password) && !hasSequentialRun(password) && !hasWeakSubstring(password),
		},
	}

	result := StrengthResult{Valid: true}
	for _, check := range checks {
		if check.passed {
			result.Score++
			continue
		}
		result.Valid = false
		result.Failed = append(result.Failed, check.reason)
	}
	return result
}

// hasRepeatedRun reports whether the password contains the same rune three
// or more times in a row ("aaa", "!!!").
func hasRepeatedRun(password string) bool {
	var prev rune
	run := 0
	for _, r := range password {
		if r == prev {
			run++
			if run >= 3 {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}

// hasSequentialRun reports whether the password contains four or more
// consecutive ascending digits or letters ("1234", "abcd"). Letters are
// compared case-insensitively.
func hasSequentialRun(password string) bool {
	runes := []rune(strings.ToLower(password))
	run := 1
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		sameClass := (unicode.IsDigit(prev) && unicode.IsDigit(cur)) ||
			(unicode.IsLower(prev) && unicode.IsLower(cur))
		if sameClass && cur == prev+1 {
			run++
			if run >= 4 {
				return true
			}
			continue
		}
		run = 1
	}
	return false
}

// hasWeakSubstring reports whether the password contains any denylisted
// fragment, ignoring case.
func hasWeakSubstring(password string) bool {
	lower := strings.ToLower(password)
	for _, weak := range weakSubstrings {
		if strings.Contains(lower, weak) {
			return true
		}
	}
	return false
}
