// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyward Contributors

//go:build integration

package lifecycle_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/keyward/keyward/internal/session"
)

var _ = Describe("Account Registration and Credentials", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
		resetTables(ctx, env.pool)
	})

	Describe("Registration", func() {
		It("registers an account and issues a verification token", func() {
			email := uniqueEmail("register")

			acct, token, err := env.Credentials.Register(ctx, email, testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.Email).To(Equal(email))
			Expect(acct.Active).To(BeTrue())
			Expect(acct.Verified).To(BeFalse())

			Expect(token.Token).NotTo(BeEmpty())
			Expect(token.Hash).NotTo(Equal(token.Token), "only the hash may be stored")
			Expect(token.ExpiresAt).To(BeTemporally(">", time.Now()))
		})

		It("normalizes the email before storing it", func() {
			acct, _, err := env.Credentials.Register(ctx, "  Mixed.Case@KEYWARD.IO  ", testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(acct.Email).To(Equal("mixed.case@keyward.io"))
		})

		It("rejects a duplicate email regardless of case", func() {
			email := uniqueEmail("dupe")
			_, _, err := env.Credentials.Register(ctx, email, testPassword)
			Expect(err).NotTo(HaveOccurred())

			_, _, err = env.Credentials.Register(ctx, "  "+strings.ToUpper(email)+"  ", altPassword)
			expectCode(err, "DUPLICATE_ACCOUNT")
		})

		It("rejects passwords that fail the strength policy", func() {
			_, _, err := env.Credentials.Register(ctx, uniqueEmail("weak"), "Password1!")
			expectCode(err, "VALIDATION_FAILED")
		})
	})

	Describe("Email verification", func() {
		It("verifies the account with the issued token", func() {
			email := uniqueEmail("verify")
			acct, token, err := env.Credentials.Register(ctx, email, testPassword)
			Expect(err).NotTo(HaveOccurred())

			verified, err := env.Credentials.VerifyEmail(ctx, token.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(verified.ID).To(Equal(acct.ID))
			Expect(verified.Verified).To(BeTrue())
		})

		It("rejects a verification token the second time", func() {
			_, token, err := env.Credentials.Register(ctx, uniqueEmail("reuse"), testPassword)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.VerifyEmail(ctx, token.Token)
			Expect(err).NotTo(HaveOccurred())

			_, err = env.Credentials.VerifyEmail(ctx, token.Token)
			expectCode(err, "INVALID_TOKEN")
		})

		It("rejects a token that was never issued", func() {
			_, err := env.Credentials.VerifyEmail(ctx, "nonsense-token")
			expectCode(err, "INVALID_TOKEN")
		})
	})

	Describe("Authentication", func() {
		It("authenticates with the correct password", func() {
			email := uniqueEmail("auth")
			acct := registerVerified(ctx, email)

			got, err := env.Credentials.Authenticate(ctx, email, testPassword, "198.51.100.7")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal(acct.ID))
		})

		It("rejects the wrong password and records the failure", func() {
			email := uniqueEmail("wrongpw")
			registerVerified(ctx, email)
			since := time.Now().Add(-time.Minute)

			_, err := env.Credentials.Authenticate(ctx, email, altPassword, "198.51.100.7")
			expectCode(err, "INVALID_CREDENTIALS")

			Eventually(func() (int64, error) {
				return env.AuditStore.CountFailedLogins(ctx, email, "", since)
			}).Should(BeNumerically(">=", 1))
		})

		It("does not reveal whether an address is registered", func() {
			_, err := env.Credentials.Authenticate(ctx, uniqueEmail("ghost"), testPassword, "198.51.100.7")
			expectCode(err, "INVALID_CREDENTIALS")
		})
	})

	Describe("Deactivation", func() {
		It("closes the account and revokes its sessions", func() {
			email := uniqueEmail("deactivate")
			acct := registerVerified(ctx, email)

			result, err := env.Login.Login(ctx, email, testPassword, browserClient("198.51.100.7"))
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Session).NotTo(BeNil())

			Expect(env.Credentials.Deactivate(ctx, acct.ID)).To(Succeed())

			_, err = env.Credentials.Authenticate(ctx, email, testPassword, "198.51.100.7")
			expectCode(err, "INVALID_CREDENTIALS")

			v, err := env.Sessions.Validate(ctx, result.Session.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.Valid).To(BeFalse())
			Expect(v.Reason).To(Equal(session.ReasonInactive))
		})

		It("frees the address for a new registration", func() {
			email := uniqueEmail("refree")
			acct := registerVerified(ctx, email)
			Expect(env.Credentials.Deactivate(ctx, acct.ID)).To(Succeed())

			reborn, _, err := env.Credentials.Register(ctx, email, testPassword)
			Expect(err).NotTo(HaveOccurred())
			Expect(reborn.ID).NotTo(Equal(acct.ID))
		})
	})
})
