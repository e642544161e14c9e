// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package credential_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keyward/keyward/internal/credential"
)

func TestValidateStrength(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		valid      bool
		score      int
		failedWith string // substring expected in one of the failed reasons
	}{
		{
			name:     "strong password passes all checks",
			password: "Str0ng!Pass",
			valid:    true,
			score:    6,
		},
		{
			name:       "too short",
			password:   "Ab1!xyz",
			valid:      false,
			score:      5,
			failedWith: "between 8 and 128 characters",
		},
		{
			name:       "missing uppercase",
			password:   "str0ng!pass",
			valid:      false,
			score:      5,
			failedWith: "uppercase letter",
		},
		{
			name:       "missing lowercase",
			password:   "STR0NG!PASS",
			valid:      false,
			score:      5,
			failedWith: "lowercase letter",
		},
		{
			name:       "missing digit",
			password:   "Strong!Pass",
			valid:      false,
			score:      5,
			failedWith: "must contain a digit",
		},
		{
			name:       "missing symbol",
			password:   "Str0ngPass1",
			valid:      false,
			score:      5,
			failedWith: "must contain a symbol",
		},
		{
			name:       "repeated run fails pattern check",
			password:   "Gooo0d!Pass",
			valid:      false,
			score:      5,
			failedWith: "weak patterns",
		},
		{
			name:       "sequential digits fail pattern check",
			password:   "Abce!5678x",
			valid:      false,
			score:      5,
			failedWith: "weak patterns",
		},
		{
			name:       "sequential letters fail pattern check",
			password:   "Wxyz!77Q2",
			valid:      false,
			score:      5,
			failedWith: "weak patterns",
		},
		{
			name:       "weak substring fails pattern check regardless of case",
			password:   "MyQwerty!7",
			valid:      false,
			score:      5,
			failedWith: "weak patterns",
		},
		{
			name:     "three short sequential characters are fine",
			password: "Abc12!Qrs",
			valid:    true,
			score:    6,
		},
		{
			name:     "two repeated characters are fine",
			password: "Happ1er!Cat",
			valid:    true,
			score:    6,
		},
		{
			name:     "unicode runes satisfy character classes",
			password: "Ünïcødé1!",
			valid:    true,
			score:    6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := credential.ValidateStrength(tt.password)
			assert.Equal(t, tt.valid, result.Valid)
			assert.Equal(t, tt.score, result.Score)
			assert.Len(t, result.Failed, 6-tt.score)
			if tt.failedWith != "" {
				found := false
				for _, reason := range result.Failed {
					if strings.Contains(reason, tt.failedWith) {
						found = true
						break
					}
				}
				assert.True(t, found, "expected a failed reason containing %q, got %v", tt.failedWith, result.Failed)
			}
		})
	}
}

func TestValidateStrength_CommonWeakPassword(t *testing.T) {
	// The canonical bad password fails three ways at once: no uppercase,
	// no symbol, and a denylisted fragment.
	result := credential.ValidateStrength("password123")

	assert.False(t, result.Valid)
	assert.Equal(t, 3, result.Score)
	require.Len(t, result.Failed, 3)
	joined := strings.Join(result.Failed, "; ")
	assert.Contains(t, joined, "uppercase letter")
	assert.Contains(t, joined, "must contain a symbol")
	assert.Contains(t, joined, "weak patterns")
}

func TestValidateStrength_LengthBounds(t *testing.T) {
	// Block of four characters covering all classes without repeats or
	// sequences, tiled to hit the exact length bounds.
	block := "xK9#"

	t.Run("exactly minimum length is valid", func(t *testing.T) {
		result := credential.ValidateStrength(strings.Repeat(block, 2))
		assert.True(t, result.Valid)
	})

	t.Run("exactly maximum length is valid", func(t *testing.T) {
		result := credential.ValidateStrength(strings.Repeat(block, 32))
		assert.True(t, result.Valid)
	})

	t.Run("one over maximum fails only the length check", func(t *testing.T) {
		result := credential.ValidateStrength(strings.Repeat(block, 32) + "a")
		assert.False(t, result.Valid)
		assert.Equal(t, 5, result.Score)
		require.Len(t, result.Failed, 1)
		assert.Contains(t, result.Failed[0], "between 8 and 128 characters")
	})

	t.Run("length counts runes not bytes", func(t *testing.T) {
		// Nine runes but considerably more bytes.
		result := credential.ValidateStrength("Ünïcødé1!")
		assert.True(t, result.Valid)
	})
}

func TestValidateStrength_ScoreAccounting(t *testing.T) {
	// Score plus failed reasons always covers all six checks.
	passwords := []string{
		"", "a", "password", "password123", "Str0ng!Pass",
		"ALLUPPER1!", "nolower", "1234!Abcdefg", "Gooo0d!Pass",
	}
	for _, password := range passwords {
		result := credential.ValidateStrength(password)
		assert.Equal(t, 6, result.Score+len(result.Failed), "password %q", password)
		assert.Equal(t, result.Valid, len(result.Failed) == 0, "password %q", password)
	}
}
