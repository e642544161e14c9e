// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/account"
	"github.com/keyward/keyward/internal/session"
)

var _ = Describe("Session Lifecycle", func() {
	var (
		ctx  context.Context
		acct *account.Account
	)

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
		acct = registerVerified(ctx, uniqueEmail("session"))
	})

	Describe("Creation and validation", func() {
		It("opens a session on login that then validates", func() {
			result, err := env.Login.Login(ctx, acct.Email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Account.ID).To(Equal(acct.ID))
			Expect(result.Session).NotTo(BeNil())

			v, err := env.Sessions.Validate(ctx, result.Session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeTrue())
			Expect(v.Session.AccountID).To(Equal(acct.ID))
			Expect(v.Session.OriginAddress).To(Equal("198.51.100.7"))
		})

		It("bumps last accessed on every validation", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())
			first := sess.LastAccessedAt

			time.Sleep(20 * time.Millisecond)

			v, err := env.Sessions.Validate(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Session.LastAccessedAt).To(BeTemporally(">", first))
		})

		It("reports unknown identifiers as not found without erroring", func() {
			v, err := env.Sessions.Validate(ctx, "0000000000000_unknown")
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeFalse())
			Expect(v.Reason).To(Equal(session.ReasonNotFound))
		})
	})

	Describe("Expiry", func() {
		It("expires lazily and deactivates the stored row", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{Duration: 50 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(80 * time.Millisecond)

			v, err := env.Sessions.Validate(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeFalse())
			Expect(v.Reason).To(Equal(session.ReasonExpired))

			var active bool
			err = env.pool.QueryRow(ctx, "SELECT active FROM sessions WHERE id = $1", sess.ID).Scan(&active)
			Expect(err).NotTo(HaveOccurred())
			Expect(active).To(BeFalse())
		})

		It("reports expiry even for sessions invalidated beforehand", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{Duration: 50 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
			Expect(env.Sessions.Invalidate(ctx, sess.ID)).To(Succeed())

			time.Sleep(80 * time.Millisecond)

			v, err := env.Sessions.Validate(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Reason).To(Equal(session.ReasonExpired))
		})
	})

	Describe("Extension", func() {
		It("extends from the current expiry, not from now", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{Duration: time.Hour})
			Expect(err).NotTo(HaveOccurred())

			extended, err := env.Sessions.Extend(ctx, sess.ID, 30)
			Expect(err).NotTo(HaveOccurred())
			Expect(extended.ExpiresAt).To(BeTemporally("~", sess.ExpiresAt.Add(30*24*time.Hour), time.Second))
		})

		It("rejects non-positive extensions", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Sessions.Extend(ctx, sess.ID, 0)
			expectCode(err, "VALIDATION_FAILED")
		})
	})

	Describe("Invalidation", func() {
		It("invalidates idempotently", func() {
			sess, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{})
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Sessions.Invalidate(ctx, sess.ID)).To(Succeed())

			v, err := env.Sessions.Validate(ctx, sess.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Reason).To(Equal(session.ReasonInactive))

			Expect(env.Sessions.Invalidate(ctx, sess.ID)).To(Succeed())
		})

		It("invalidates every session of the account at once", func() {
			for range 3 {
				_, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{})
				Expect(err).NotTo(HaveOccurred())
			}

			n, err := env.Sessions.InvalidateAllForAccount(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(3)))

			remaining, err := env.Sessions.ListActive(ctx, acct.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(remaining).To(BeEmpty())
		})
	})

	Describe("Cleanup", func() {
		It("removes only sessions that are past their expiry", func() {
			doomed, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{Duration: 50 * time.Millisecond})
			Expect(err).NotTo(HaveOccurred())
			survivor, err := env.Sessions.Create(ctx, acct.ID, session.CreateOptions{Duration: time.Hour})
			Expect(err).NotTo(HaveOccurred())

			time.Sleep(80 * time.Millisecond)

			n, err := env.Sessions.CleanupExpired(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))

			var count int
			err = env.pool.QueryRow(ctx, "SELECT COUNT(*) FROM sessions WHERE id = $1", doomed.ID).Scan(&count)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			v, err := env.Sessions.Validate(ctx, survivor.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeTrue())
		})
	})
})
