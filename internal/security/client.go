// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package security

import (
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// ClientMetadata describes the client presenting a request: the
// client-agent string and the application origin (host, optionally with
// port), both as received and possibly empty.
type ClientMetadata struct {
	Agent  string
	Origin string
}

// ClientAnalysis is the outcome of AnalyzeClient. Reasons lists one entry
// per matched heuristic.
type ClientAnalysis struct {
	Suspicious bool
	Reasons    []string
}

// compiledPattern holds a glob pattern and its compiled form.
type compiledPattern struct {
	pattern string
	glob    glob.Glob
}

// compilePatterns compiles glob patterns, lowercased so matching is
// case-insensitive against lowercased input.
func compilePatterns(patterns []string, kind string, separators ...rune) ([]compiledPattern, error) {
	compiled := make([]compiledPattern, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(strings.ToLower(pattern), separators...)
		if err != nil {
			return nil, wrapPattern(err, kind, pattern)
		}
		compiled = append(compiled, compiledPattern{pattern: pattern, glob: g})
	}
	return compiled, nil
}

// AnalyzeClient flags bot-like client agents, missing or truncated agent
// strings, and origins outside the allow list. The result is a heuristic
// signal surfaced to the caller, never an automatic block; blocking policy
// belongs to the calling layer.
func (a *Analyzer) AnalyzeClient(meta ClientMetadata) ClientAnalysis {
	var reasons []string

	agent := strings.ToLower(strings.TrimSpace(meta.Agent))
	switch {
	case agent == "":
		reasons = append(reasons, "client agent is missing")
	case len(agent) < a.cfg.MinAgentLength:
		reasons = append(reasons, "client agent is too short")
	}

	for _, p := range a.botGlobs {
		if p.glob.Match(agent) {
			reasons = append(reasons, fmt.Sprintf("client agent matches bot pattern %q", p.pattern))
			break
		}
	}

	if origin := strings.ToLower(strings.TrimSpace(meta.Origin)); origin != "" {
		allowed := false
		for _, p := range a.originGlobs {
			if p.glob.Match(origin) {
				allowed = true
				break
			}
		}
		if !allowed {
			reasons = append(reasons, fmt.Sprintf("origin %q is not in the allow list", meta.Origin))
		}
	}

	return ClientAnalysis{Suspicious: len(reasons) > 0, Reasons: reasons}
}
