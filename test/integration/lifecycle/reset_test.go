// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/session"
)

var _ = Describe("Password Recovery", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
	})

	Describe("Reset requests", func() {
		It("issues a reset token for a registered address", func() {
			email := uniqueEmail("reset")
			registerVerified(ctx, email)

			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())
			Expect(token.Token).NotTo(BeEmpty())
			Expect(token.Hash).NotTo(Equal(token.Token))
		})

		It("returns no token for an unknown address without erroring", func() {
			token, err := env.Credentials.RequestPasswordReset(ctx, uniqueEmail("ghost"))
			Expect(err).NotTo(HaveOccurred())
			Expect(token.Token).To(BeEmpty(), "an attacker must not learn which addresses exist")
		})
	})

	Describe("Redemption", func() {
		It("rotates the password and revokes every session", func() {
			email := uniqueEmail("rotate")
			acct := registerVerified(ctx, email)

			first, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())
			second, err := env.Login.Login(ctx, email, testPassword, browserClient("203.0.113.4"))
			Expect(err).NotTo(HaveOccurred())

			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())

			reset, err := env.Credentials.ResetPassword(ctx, token.Token, altPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(reset.ID).To(Equal(acct.ID))

			_, err = env.Credentials.Authenticate(ctx, email, testPassword, "198.51.100.7")
			expectCode(err, "INVALID_CREDENTIALS")
			_, err = env.Credentials.Authenticate(ctx, email, altPassword, "198.51.100.7")
			Expect(err).NotTo(HaveOccurred())

			for _, sessionID := range []string{first.Session.ID, second.Session.ID} {
				v, err := env.Sessions.Validate(ctx, sessionID)
				Expect(err).NotTo(HaveOccurred())
				Expect(v.Valid).To(BeFalse())
				Expect(v.Reason).To(Equal(session.ReasonInactive))
			}
		})

		It("rejects a reset token the second time", func() {
			email := uniqueEmail("reuse")
			registerVerified(ctx, email)
			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.ResetPassword(ctx, token.Token, altPassword)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.ResetPassword(ctx, token.Token, "Again3!Fresh")
			expectCode(err, "INVALID_TOKEN")
		})

		It("rejects an expired reset token", func() {
			email := uniqueEmail("expired")
			acct := registerVerified(ctx, email)
			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.pool.Exec(ctx,
				"UPDATE accounts SET reset_expires_at = NOW() - INTERVAL '1 minute' WHERE id = $1",
				acct.ID.String())
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.ResetPassword(ctx, token.Token, altPassword)
			expectCode(err, "INVALID_TOKEN")
		})

		It("leaves the token redeemable after a weak replacement is rejected", func() {
			email := uniqueEmail("weakreset")
			registerVerified(ctx, email)
			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.ResetPassword(ctx, token.Token, "weak")
			expectCode(err, "VALIDATION_FAILED")

			_, err = env.Credentials.ResetPassword(ctx, token.Token, altPassword)
			Expect(err).NotTo(HaveOccurred())
		})

		It("lets exactly one concurrent redemption win", func() {
			email := uniqueEmail("race")
			registerVerified(ctx, email)
			token, err := env.Credentials.RequestPasswordReset(ctx, email)
			Expect(err).NotTo(HaveOccurred())

			const racers = 4
			var wg sync.WaitGroup
			errs := make([]error, racers)
			for i := range racers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = env.Credentials.ResetPassword(ctx, token.Token, fmt.Sprintf("Race%d!Winner", i))
				}()
			}
			wg.Wait()

			winner := -1
			for i, redeemErr := range errs {
				if redeemErr == nil {
					Expect(winner).To(Equal(-1), "two redemptions succeeded")
					winner = i
				} else {
					expectCode(redeemErr, "INVALID_TOKEN")
				}
			}
			Expect(winner).NotTo(Equal(-1), "no redemption succeeded")

			_, err = env.Credentials.Authenticate(ctx, email, fmt.Sprintf("Race%d!Winner", winner), "198.51.100.7")
			Expect(err).NotTo(HaveOccurred())
		})
	})

	Describe("Password change", func() {
		It("changes the password and keeps existing sessions", func() {
			email := uniqueEmail("change")
			acct := registerVerified(ctx, email)
			result, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Credentials.ChangePassword(ctx, acct.ID, testPassword, altPassword)).To(Succeed())

			_, err = env.Credentials.Authenticate(ctx, email, altPassword, "198.51.100.7")
			Expect(err).NotTo(HaveOccurred())

			// A change is the owner acting, not a recovery; other devices
			// stay logged in.
			v, err := env.Sessions.Validate(ctx, result.Session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeTrue())
		})

		It("rejects a wrong current password", func() {
			acct := registerVerified(ctx, uniqueEmail("wrongcur"))
			err := env.Credentials.ChangePassword(ctx, acct.ID, altPassword, "Again3!Fresh")
			expectCode(err, "INVALID_CREDENTIALS")
		})

		It("refuses on a deactivated account", func() {
			acct := registerVerified(ctx, uniqueEmail("gone"))
			Expect(env.Credentials.Deactivate(ctx, acct.ID)).To(Succeed())

			err := env.Credentials.ChangePassword(ctx, acct.ID, testPassword, altPassword)
			expectCode(err, "ACCOUNT_DEACTIVATED")
		})
	})
})
