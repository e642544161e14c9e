// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

package security

import (
	"context"
	"time"

	"github.com/samber/oops"

	"github.com/keyward/keyward/internal/audit"
)

// RiskLevel buckets a login-pattern risk score.
type RiskLevel string

// Risk levels, lowest to highest.
const (
	RiskMinimal RiskLevel = "minimal"
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
)

// Config tunes the analyzer heuristics. Every threshold and weight is a
// default, not a constant, so deployments can tighten or relax detection
// without a rebuild.
type Config struct {
	BruteForceWindow    time.Duration // trailing window for failed-login counting
	BruteForceThreshold int64         // failures at or above which an attack is flagged

	PatternWindow       time.Duration // trailing window for login-pattern analysis
	RecentFailureWindow time.Duration // window for the "recent failures" signal
	RecentFailureLimit  int           // recent failures above which the weight applies
	OriginSpreadLimit   int           // distinct origins above which the weight applies

	RecentFailureWeight int
	NewOriginWeight     int
	OriginSpreadWeight  int
	LowSuccessWeight    int

	HighRiskCutoff   int
	MediumRiskCutoff int
	LowRiskCutoff    int

	BotAgentPatterns []string // glob patterns matched against the lowercased client agent
	MinAgentLength   int      // agents shorter than this are flagged
	AllowedOrigins   []string // glob patterns for trusted application origins
}

// DefaultConfig returns the default analyzer tuning.
func DefaultConfig() Config {
	return Config{
		BruteForceWindow:    15 * time.Minute,
		BruteForceThreshold: 5,

		PatternWindow:       7 * 24 * time.Hour,
		RecentFailureWindow: time.Hour,
		RecentFailureLimit:  3,
		OriginSpreadLimit:   5,

		RecentFailureWeight: 3,
		NewOriginWeight:     2,
		OriginSpreadWeight:  2,
		LowSuccessWeight:    2,

		HighRiskCutoff:   6,
		MediumRiskCutoff: 4,
		LowRiskCutoff:    2,

		BotAgentPatterns: []string{
			"*bot*", "*crawler*", "*spider*", "*scraper*",
			"curl*", "wget*", "python-requests*", "*headless*",
		},
		MinAgentLength: 10,
		AllowedOrigins: []string{
			"keyward.io", "*.keyward.io",
			"localhost", "localhost:*", "127.0.0.1", "127.0.0.1:*",
		},
	}
}

// normalized fills zero fields with defaults. Nil pattern lists fall
// back to the default lists; explicitly empty ones mean no bot patterns
// and no trusted origins.
func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.BruteForceWindow <= 0 {
		c.BruteForceWindow = def.BruteForceWindow
	}
	if c.BruteForceThreshold <= 0 {
		c.BruteForceThreshold = def.BruteForceThreshold
	}
	if c.PatternWindow <= 0 {
		c.PatternWindow = def.PatternWindow
	}
	if c.RecentFailureWindow <= 0 {
		c.RecentFailureWindow = def.RecentFailureWindow
	}
	if c.RecentFailureLimit <= 0 {
		c.RecentFailureLimit = def.RecentFailureLimit
	}
	if c.OriginSpreadLimit <= 0 {
		c.OriginSpreadLimit = def.OriginSpreadLimit
	}
	if c.RecentFailureWeight <= 0 {
		c.RecentFailureWeight = def.RecentFailureWeight
	}
	if c.NewOriginWeight <= 0 {
		c.NewOriginWeight = def.NewOriginWeight
	}
	if c.OriginSpreadWeight <= 0 {
		c.OriginSpreadWeight = def.OriginSpreadWeight
	}
	if c.LowSuccessWeight <= 0 {
		c.LowSuccessWeight = def.LowSuccessWeight
	}
	if c.HighRiskCutoff <= 0 {
		c.HighRiskCutoff = def.HighRiskCutoff
	}
	if c.MediumRiskCutoff <= 0 {
		c.MediumRiskCutoff = def.MediumRiskCutoff
	}
	if c.LowRiskCutoff <= 0 {
		c.LowRiskCutoff = def.LowRiskCutoff
	}
	if c.BotAgentPatterns == nil {
		c.BotAgentPatterns = def.BotAgentPatterns
	}
	if c.MinAgentLength <= 0 {
		c.MinAgentLength = def.MinAgentLength
	}
	if c.AllowedOrigins == nil {
		c.AllowedOrigins = def.AllowedOrigins
	}
	return c
}

// Analyzer provides stateless risk heuristics over the audit trail. Every
// method is advisory: callers log analyzer errors and continue, so a
// scoring failure never blocks an otherwise-valid login.
type Analyzer struct {
	store audit.Store
	cfg   Config
	clock func() time.Time

	botGlobs    []compiledPattern
	originGlobs []compiledPattern
}

// NewAnalyzer creates an Analyzer. Zero config fields fall back to
// DefaultConfig values. Returns an error if a glob pattern fails to
// compile (configuration bug).
func NewAnalyzer(store audit.Store, cfg Config) (*Analyzer, error) {
	cfg = cfg.normalized()

	botGlobs, err := compilePatterns(cfg.BotAgentPatterns, "bot agent")
	if err != nil {
		return nil, err
	}
	originGlobs, err := compilePatterns(cfg.AllowedOrigins, "allowed origin", '.')
	if err != nil {
		return nil, err
	}

	return &Analyzer{
		store:       store,
		cfg:         cfg,
		clock:       time.Now,
		botGlobs:    botGlobs,
		originGlobs: originGlobs,
	}, nil
}

// BruteForceReport is the outcome of DetectBruteForce.
type BruteForceReport struct {
	IsBruteForce   bool
	FailedAttempts int64
}

// DetectBruteForce counts failed logins matching the email or the origin
// address within the configured window and flags when the count reaches
// the threshold. Counting by either key catches both a single origin
// spraying many accounts and many origins hammering one account.
func (a *Analyzer) DetectBruteForce(ctx context.Context, email, origin string) (BruteForceReport, error) {
	since := a.clock().Add(-a.cfg.BruteForceWindow)

	count, err := a.store.CountFailedLogins(ctx, NormalizeEmail(email), origin, since)
	if err != nil {
		return BruteForceReport{}, err
	}

	return BruteForceReport{
		IsBruteForce:   count >= a.cfg.BruteForceThreshold,
		FailedAttempts: count,
	}, nil
}

// LoginPattern is the outcome of AnalyzeLoginPattern over the trailing
// pattern window.
type LoginPattern struct {
	TotalAttempts   int
	SuccessCount    int
	FailCount       int
	UniqueOrigins   int
	IsNewOrigin     bool
	RecentFailCount int
	RiskScore       int
	RiskLevel       RiskLevel
}

// AnalyzeLoginPattern inspects the account's login history within the
// pattern window and scores it additively: recent failures, an unseen
// origin, origin spread, and a low success rate each add their configured
// weight. The score buckets into a RiskLevel via the configured cutoffs.
func (a *Analyzer) AnalyzeLoginPattern(ctx context.Context, accountID, origin string) (LoginPattern, error) {
	now := a.clock()

	history, err := a.store.LoginHistory(ctx, accountID, now.Add(-a.cfg.PatternWindow))
	if err != nil {
		return LoginPattern{}, err
	}

	pattern := LoginPattern{TotalAttempts: len(history)}

	origins := make(map[string]bool)
	recentCutoff := now.Add(-a.cfg.RecentFailureWindow)
	for _, event := range history {
		switch event.Action {
		case audit.ActionLoginSuccess:
			pattern.SuccessCount++
		case audit.ActionLoginFailed:
			pattern.FailCount++
			if event.CreatedAt.After(recentCutoff) {
				pattern.RecentFailCount++
			}
		}
		if event.OriginAddress != "" {
			origins[event.OriginAddress] = true
		}
	}
	pattern.UniqueOrigins = len(origins)
	pattern.IsNewOrigin = origin != "" && !origins[origin]

	if pattern.RecentFailCount > a.cfg.RecentFailureLimit {
		pattern.RiskScore += a.cfg.RecentFailureWeight
	}
	if pattern.IsNewOrigin {
		pattern.RiskScore += a.cfg.NewOriginWeight
	}
	if pattern.UniqueOrigins > a.cfg.OriginSpreadLimit {
		pattern.RiskScore += a.cfg.OriginSpreadWeight
	}
	if pattern.TotalAttempts > 0 && pattern.SuccessCount*2 < pattern.TotalAttempts {
		pattern.RiskScore += a.cfg.LowSuccessWeight
	}

	pattern.RiskLevel = a.bucketRisk(pattern.RiskScore)
	return pattern, nil
}

// bucketRisk maps a score to its level.
func (a *Analyzer) bucketRisk(score int) RiskLevel {
	switch {
	case score >= a.cfg.HighRiskCutoff:
		return RiskHigh
	case score >= a.cfg.MediumRiskCutoff:
		return RiskMedium
	case score >= a.cfg.LowRiskCutoff:
		return RiskLow
	default:
		return RiskMinimal
	}
}

// wrapPattern annotates glob compilation failures.
func wrapPattern(err error, kind, pattern string) error {
	return oops.Code("INVALID_CLIENT_PATTERN").
		With("kind", kind).
		With("pattern", pattern).
		Wrap(err)
}
