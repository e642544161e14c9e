// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/audit"
	"github.com/keyward/keyward/internal/core"
	"github.com/keyward/keyward/internal/login"
)

var _ = Describe("Login Security Signals", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
	})

	Describe("Client analysis", func() {
		It("annotates scripted clients while the login still succeeds", func() {
			email := uniqueEmail("curl")
			registerVerified(ctx, email)

			result, err := env.Login.Login(ctx, email, testPassword, login.Client{
				OriginAddress: "203.0.113.50",
				Origin:        "keyward.io",
				Agent:         "curl/8.6.0",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Session).NotTo(BeNil(), "suspicion is advisory, never a block")
			Expect(result.Annotations.Client).NotTo(BeNil())
			Expect(result.Annotations.Client.Suspicious).To(BeTrue())
			Expect(result.Annotations.Client.Reasons).To(ContainElement(ContainSubstring("bot pattern")))
		})

		It("leaves an ordinary browser client unflagged", func() {
			email := uniqueEmail("browser")
			registerVerified(ctx, email)

			result, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Annotations.Client.Suspicious).To(BeFalse())
		})

		It("flags origins outside the allow list", func() {
			email := uniqueEmail("origin")
			registerVerified(ctx, email)

			result, err := env.Login.Login(ctx, email, testPassword, login.Client{
				OriginAddress: "198.51.100.7",
				Origin:        "phish.example.com",
				Agent:         browserAgent,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Annotations.Client.Suspicious).To(BeTrue())
			Expect(result.Annotations.Client.Reasons).To(ContainElement(ContainSubstring("allow list")))
		})
	})

	Describe("Brute force detection", func() {
		It("raises the flag once failures cross the threshold", func() {
			email := uniqueEmail("victim")
			registerVerified(ctx, email)
			origin := "203.0.113.77"
			since := time.Now().Add(-time.Minute)

			for range 5 {
				_, err := env.Login.Login(ctx, email, "Wrong1!Pass", login.Client{
					OriginAddress: origin,
					Origin:        "keyward.io",
					Agent:         browserAgent,
				})
				expectCode(err, "INVALID_CREDENTIALS")
			}

			Eventually(func() (int64, error) {
				return env.AuditStore.CountFailedLogins(ctx, email, origin, since)
			}).Should(BeNumerically(">=", 5))

			result, err := env.Login.Login(ctx, email, "Wrong1!Pass", login.Client{
				OriginAddress: origin,
				Origin:        "keyward.io",
				Agent:         browserAgent,
			})
			expectCode(err, "INVALID_CREDENTIALS")
			Expect(result.Annotations.BruteForce).NotTo(BeNil())
			Expect(result.Annotations.BruteForce.IsBruteForce).To(BeTrue())
			Expect(result.Annotations.BruteForce.FailedAttempts).To(BeNumerically(">=", 5))
		})

		It("stays quiet below the threshold", func() {
			email := uniqueEmail("calm")
			registerVerified(ctx, email)

			_, err := env.Login.Login(ctx, email, "Wrong1!Pass", browserClient("198.51.100.9"))
			expectCode(err, "INVALID_CREDENTIALS")

			result, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.9"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Annotations.BruteForce).NotTo(BeNil())
			Expect(result.Annotations.BruteForce.IsBruteForce).To(BeFalse())
		})
	})

	Describe("Login patterns", func() {
		It("distinguishes seen origins from new ones", func() {
			email := uniqueEmail("pattern")
			acct := registerVerified(ctx, email)

			_, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())

			Eventually(func() (int, error) {
				history, err := env.AuditStore.LoginHistory(ctx, acct.ID.String(), time.Now().Add(-time.Minute))
				return len(history), err
			}).Should(BeNumerically(">=", 1))

			seen, err := env.Analyzer.AnalyzeLoginPattern(ctx, acct.ID.String(), "198.51.100.7")
			Expect(err).NotTo(HaveOccurred())
			Expect(seen.IsNewOrigin).To(BeFalse())
			Expect(seen.SuccessCount).To(BeNumerically(">=", 1))

			fresh, err := env.Analyzer.AnalyzeLoginPattern(ctx, acct.ID.String(), "203.0.113.99")
			Expect(err).NotTo(HaveOccurred())
			Expect(fresh.IsNewOrigin).To(BeTrue())
			Expect(fresh.RiskScore).To(BeNumerically(">", seen.RiskScore))
		})

		It("annotates successful logins with the pattern", func() {
			email := uniqueEmail("annotate")
			registerVerified(ctx, email)

			result, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Annotations.Pattern).NotTo(BeNil())
		})
	})

	Describe("Audit retention", func() {
		It("sweeps only events past the retention window", func() {
			agedID := core.NewULID().String()
			recentID := core.NewULID().String()
			_, err := env.pool.Exec(ctx,
				"INSERT INTO audit_events (id, action, resource, created_at) VALUES ($1, 'login_failed', $2, NOW() - INTERVAL '120 days')",
				agedID, uniqueEmail("aged"))
			Expect(err).NotTo(HaveOccurred())
			_, err = env.pool.Exec(ctx,
				"INSERT INTO audit_events (id, action, resource, created_at) VALUES ($1, 'login_failed', $2, NOW())",
				recentID, uniqueEmail("recent"))
			Expect(err).NotTo(HaveOccurred())

			worker := audit.NewRetentionWorker(audit.RetentionConfig{RetainEvents: 90 * 24 * time.Hour}, env.AuditStore)
			deleted, err := worker.RunOnce(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(Equal(int64(1)))

			var count int
			err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE id = $1", agedID).Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE id = $1", recentID).Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(1))
		})
	})
})
