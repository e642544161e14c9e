// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

// Package config loads runtime settings from defaults, an optional YAML
// file, and command-line flags, in that order of precedence.
package config

import (
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/credential"
	"github.com/keyward/keyward/internal/security"
	"github.com/keyward/keyward/internal/session"
)

// Config is the root of the runtime configuration tree. YAML keys follow
// the koanf tags; the same structure is published as a JSON Schema by
// GenerateSchema.
type Config struct {
	Log           Log           `koanf:"log" json:"log,omitempty"`
	Database      Database      `koanf:"database" json:"database,omitempty"`
	Credential    Credential    `koanf:"credential" json:"credential,omitempty"`
	Session       Session       `koanf:"session" json:"session,omitempty"`
	Security      Security      `koanf:"security" json:"security,omitempty"`
	Audit         Audit         `koanf:"audit" json:"audit,omitempty"`
	Observability Observability `koanf:"observability" json:"observability,omitempty"`
}

// Log configures the structured logger.
type Log struct {
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
}

// Database configures PostgreSQL connectivity.
type Database struct {
	URL            string        `koanf:"url" json:"url,omitempty" jsonschema:"description=PostgreSQL connection URL"`
	ConnectTimeout time.Duration `koanf:"connect_timeout" json:"connect_timeout,omitempty" jsonschema:"oneof_type=string;integer"`
}

// Hash configures the Argon2id work factors. Memory is in KiB.
type Hash struct {
	Time    uint32 `koanf:"time" json:"time,omitempty" jsonschema:"minimum=1"`
	Memory  uint32 `koanf:"memory" json:"memory,omitempty" jsonschema:"minimum=8"`
	Threads uint8  `koanf:"threads" json:"threads,omitempty" jsonschema:"minimum=1"`
}

// Credential configures password hashing and token lifetimes.
type Credential struct {
	Hash            Hash          `koanf:"hash" json:"hash,omitempty"`
	VerificationTTL time.Duration `koanf:"verification_ttl" json:"verification_ttl,omitempty" jsonschema:"oneof_type=string;integer"`
	ResetTTL        time.Duration `koanf:"reset_ttl" json:"reset_ttl,omitempty" jsonschema:"oneof_type=string;integer"`
}

// Session configures session lifetimes.
type Session struct {
	Duration time.Duration `koanf:"duration" json:"duration,omitempty" jsonschema:"oneof_type=string;integer"`
}

// Security configures the login risk analyzer. Every analyzer threshold
// and weight is exposed so detection can be tuned without a rebuild.
type Security struct {
	BruteForceWindow    time.Duration `koanf:"brute_force_window" json:"brute_force_window,omitempty" jsonschema:"oneof_type=string;integer"`
	BruteForceThreshold int64         `koanf:"brute_force_threshold" json:"brute_force_threshold,omitempty" jsonschema:"minimum=1"`

	PatternWindow       time.Duration `koanf:"pattern_window" json:"pattern_window,omitempty" jsonschema:"oneof_type=string;integer"`
	RecentFailureWindow time.Duration `koanf:"recent_failure_window" json:"recent_failure_window,omitempty" jsonschema:"oneof_type=string;integer"`
	RecentFailureLimit  int           `koanf:"recent_failure_limit" json:"recent_failure_limit,omitempty"`
	OriginSpreadLimit   int           `koanf:"origin_spread_limit" json:"origin_spread_limit,omitempty"`

	RecentFailureWeight int `koanf:"recent_failure_weight" json:"recent_failure_weight,omitempty"`
	NewOriginWeight     int `koanf:"new_origin_weight" json:"new_origin_weight,omitempty"`
	OriginSpreadWeight  int `koanf:"origin_spread_weight" json:"origin_spread_weight,omitempty"`
	LowSuccessWeight    int `koanf:"low_success_weight" json:"low_success_weight,omitempty"`

	HighRiskCutoff   int `koanf:"high_risk_cutoff" json:"high_risk_cutoff,omitempty"`
	MediumRiskCutoff int `koanf:"medium_risk_cutoff" json:"medium_risk_cutoff,omitempty"`
	LowRiskCutoff    int `koanf:"low_risk_cutoff" json:"low_risk_cutoff,omitempty"`

	BotAgentPatterns []string `koanf:"bot_agent_patterns" json:"bot_agent_patterns,omitempty"`
	MinAgentLength   int      `koanf:"min_agent_length" json:"min_agent_length,omitempty"`
	AllowedOrigins   []string `koanf:"allowed_origins" json:"allowed_origins,omitempty"`
}

// Audit configures the audit sink and retention policy.
type Audit struct {
	BufferSize    int           `koanf:"buffer_size" json:"buffer_size,omitempty" jsonschema:"minimum=1"`
	BatchSize     int           `koanf:"batch_size" json:"batch_size,omitempty" jsonschema:"minimum=1"`
	FlushPeriod   time.Duration `koanf:"flush_period" json:"flush_period,omitempty" jsonschema:"oneof_type=string;integer"`
	RetainEvents  time.Duration `koanf:"retain_events" json:"retain_events,omitempty" jsonschema:"oneof_type=string;integer"`
	SweepInterval time.Duration `koanf:"sweep_interval" json:"sweep_interval,omitempty" jsonschema:"oneof_type=string;integer"`
}

// Observability configures the metrics/health HTTP server. An empty Addr
// disables it.
type Observability struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the configuration used when no file or flags override
// anything. Component defaults come from the packages that own them.
func Default() Config {
	hashParams := credential.DefaultParams()
	analyzer := security.DefaultConfig()
	recorder := audit.DefaultRecorderConfig()
	retention := audit.DefaultRetentionConfig()

	return Config{
		Log: Log{Level: "info", Format: "json"},
		Database: Database{
			ConnectTimeout: 10 * time.Second,
		},
		Credential: Credential{
			Hash: Hash{
				Time:    hashParams.Time,
				Memory:  hashParams.Memory,
				Threads: hashParams.Threads,
			},
			VerificationTTL: credential.DefaultVerificationTTL,
			ResetTTL:        credential.DefaultResetTTL,
		},
		Session: Session{Duration: session.DefaultDuration},
		Security: Security{
			BruteForceWindow:    analyzer.BruteForceWindow,
			BruteForceThreshold: analyzer.BruteForceThreshold,
			PatternWindow:       analyzer.PatternWindow,
			RecentFailureWindow: analyzer.RecentFailureWindow,
			RecentFailureLimit:  analyzer.RecentFailureLimit,
			OriginSpreadLimit:   analyzer.OriginSpreadLimit,
			RecentFailureWeight: analyzer.RecentFailureWeight,
			NewOriginWeight:     analyzer.NewOriginWeight,
			OriginSpreadWeight:  analyzer.OriginSpreadWeight,
			LowSuccessWeight:    analyzer.LowSuccessWeight,
			HighRiskCutoff:      analyzer.HighRiskCutoff,
			MediumRiskCutoff:    analyzer.MediumRiskCutoff,
			LowRiskCutoff:       analyzer.LowRiskCutoff,
			BotAgentPatterns:    analyzer.BotAgentPatterns,
			MinAgentLength:      analyzer.MinAgentLength,
			AllowedOrigins:      analyzer.AllowedOrigins,
		},
		Audit: Audit{
			BufferSize:    recorder.BufferSize,
			BatchSize:     recorder.BatchSize,
			FlushPeriod:   recorder.FlushPeriod,
			RetainEvents:  retention.RetainEvents,
			SweepInterval: retention.SweepInterval,
		},
		Observability: Observability{Addr: "127.0.0.1:9100"},
	}
}

// Load builds a Config by starting from Default, overlaying an optional
// YAML file, and finally overlaying flags that were explicitly set. Flag
// defaults only apply where neither the file nor an earlier layer set the
// key. The result is validated before it is returned.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	cfg := Default()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").
				With("path", path).
				Wrap(err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").
				With("source", "flags").
				Wrap(err)
		}
	}

	// Unmarshal overlays only keys present in the loaded layers, so
	// defaults survive for everything else.
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.Code("CONFIG_PARSE_FAILED").
			With("path", path).
			Wrap(err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints that the schema cannot express.
func (c Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level", "must be debug, info, warn, or error")
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format", "must be json or text")
	}

	if c.Database.URL == "" {
		return invalid("database.url", "is required")
	}
	if c.Database.ConnectTimeout <= 0 {
		return invalid("database.connect_timeout", "must be positive")
	}

	if c.Credential.Hash.Time == 0 {
		return invalid("credential.hash.time", "must be at least 1")
	}
	if c.Credential.Hash.Threads == 0 {
		return invalid("credential.hash.threads", "must be at least 1")
	}
	// Argon2 requires at least 8 KiB of memory per thread.
	if c.Credential.Hash.Memory < 8*uint32(c.Credential.Hash.Threads) {
		return invalid("credential.hash.memory", "must be at least 8 KiB per thread")
	}
	if c.Credential.VerificationTTL <= 0 {
		return invalid("credential.verification_ttl", "must be positive")
	}
	if c.Credential.ResetTTL <= 0 {
		return invalid("credential.reset_ttl", "must be positive")
	}

	if c.Session.Duration <= 0 {
		return invalid("session.duration", "must be positive")
	}

	if c.Security.BruteForceThreshold < 1 {
		return invalid("security.brute_force_threshold", "must be at least 1")
	}
	if c.Security.HighRiskCutoff < c.Security.MediumRiskCutoff ||
		c.Security.MediumRiskCutoff < c.Security.LowRiskCutoff ||
		c.Security.LowRiskCutoff < 1 {
		return invalid("security", "risk cutoffs must satisfy high >= medium >= low >= 1")
	}

	if c.Audit.BufferSize < 1 {
		return invalid("audit.buffer_size", "must be at least 1")
	}
	if c.Audit.BatchSize < 1 {
		return invalid("audit.batch_size", "must be at least 1")
	}
	if c.Audit.FlushPeriod <= 0 {
		return invalid("audit.flush_period", "must be positive")
	}
	if c.Audit.RetainEvents <= 0 {
		return invalid("audit.retain_events", "must be positive")
	}
	if c.Audit.SweepInterval <= 0 {
		return invalid("audit.sweep_interval", "must be positive")
	}

	return nil
}

func invalid(field, msg string) error {
	return oops.Code("INVALID_CONFIG").
		With("field", field).
		Errorf("%s %s", field, msg)
}

// HasherParams maps the hash section onto the credential package's
// Argon2id parameters.
func (c Credential) HasherParams() credential.Params {
	return credential.Params{
		Time:    c.Hash.Time,
		Memory:  c.Hash.Memory,
		Threads: c.Hash.Threads,
	}
}

// ServiceConfig maps the credential section onto the credential service
// configuration.
func (c Credential) ServiceConfig() credential.ServiceConfig {
	return credential.ServiceConfig{
		VerificationTTL: c.VerificationTTL,
		ResetTTL:        c.ResetTTL,
	}
}

// ServiceConfig maps the session section onto the session service
// configuration.
func (c Session) ServiceConfig() session.ServiceConfig {
	return session.ServiceConfig{Duration: c.Duration}
}

// AnalyzerConfig maps the security section onto the analyzer
// configuration.
func (c Security) AnalyzerConfig() security.Config {
	return security.Config{
		BruteForceWindow:    c.BruteForceWindow,
		BruteForceThreshold: c.BruteForceThreshold,
		PatternWindow:       c.PatternWindow,
		RecentFailureWindow: c.RecentFailureWindow,
		RecentFailureLimit:  c.RecentFailureLimit,
		OriginSpreadLimit:   c.OriginSpreadLimit,
		RecentFailureWeight: c.RecentFailureWeight,
		NewOriginWeight:     c.NewOriginWeight,
		OriginSpreadWeight:  c.OriginSpreadWeight,
		LowSuccessWeight:    c.LowSuccessWeight,
		HighRiskCutoff:      c.HighRiskCutoff,
		MediumRiskCutoff:    c.MediumRiskCutoff,
		LowRiskCutoff:       c.LowRiskCutoff,
		BotAgentPatterns:    c.BotAgentPatterns,
		MinAgentLength:      c.MinAgentLength,
		AllowedOrigins:      c.AllowedOrigins,
	}
}

// RecorderConfig maps the audit section onto the recorder configuration.
func (c Audit) RecorderConfig() audit.RecorderConfig {
	return audit.RecorderConfig{
		BufferSize:  c.BufferSize,
		BatchSize:   c.BatchSize,
		FlushPeriod: c.FlushPeriod,
	}
}

// RetentionConfig maps the audit section onto the retention policy.
func (c Audit) RetentionConfig() audit.RetentionConfig {
	return audit.RetentionConfig{
		RetainEvents:  c.RetainEvents,
		SweepInterval: c.SweepInterval,
	}
}
