// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth_test

import (
	"context"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/internal/auth/authtest"
)

const (
	adminEmail    = "ops@tripdesk.example"
	adminPassword = "GoodPass1!"
	wrongPassword = "WrongPass1!"
)

type securityEnv struct {
	ctx      context.Context
	clock    *authtest.Clock
	repo     *authtest.MemoryAccountRepository
	outbox   *authtest.Outbox
	provider authtest.StaticProvider
	issuer   *auth.SessionIssuer
	svc      *auth.Service
	account  *auth.AdminAccount
}

func newSecurityEnv() *securityEnv {
	e := &securityEnv{
		ctx:      context.Background(),
		clock:    authtest.NewClock(time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)),
		repo:     authtest.NewMemoryAccountRepository(),
		outbox:   &authtest.Outbox{},
		provider: authtest.StaticProvider{},
	}
	hasher := auth.NewArgon2idHasherWithParams(cheapParams)

	var err error
	e.issuer, err = auth.NewSessionIssuer(testSecret, auth.WithSessionClock(e.clock.Now))
	Expect(err).NotTo(HaveOccurred())

	resets, err := auth.NewPasswordResetService(e.repo, hasher, e.outbox, auth.WithClock(e.clock.Now))
	Expect(err).NotTo(HaveOccurred())

	linker, err := auth.NewIdentityLinker(e.repo, auth.NewAllowList("new-hire@tripdesk.example"), auth.WithLinkerClock(e.clock.Now))
	Expect(err).NotTo(HaveOccurred())

	e.svc, err = auth.NewAuthService(e.repo, hasher, e.issuer,
		auth.WithClock(e.clock.Now),
		auth.WithPasswordReset(resets),
		auth.WithExternalIdentity(e.provider, linker))
	Expect(err).NotTo(HaveOccurred())

	created, err := e.svc.EnsureSeedAccount(e.ctx, adminEmail, adminPassword)
	Expect(err).NotTo(HaveOccurred())
	Expect(created).To(BeTrue())

	e.account, err = e.repo.GetByEmail(e.ctx, adminEmail)
	Expect(err).NotTo(HaveOccurred())
	return e
}

func (e *securityEnv) stored() *auth.AdminAccount {
	a, err := e.repo.GetByID(e.ctx, e.account.ID)
	Expect(err).NotTo(HaveOccurred())
	return a
}

func (e *securityEnv) failLogins(n int) {
	for i := 0; i < n; i++ {
		_, err := e.svc.Login(e.ctx, adminEmail, wrongPassword)
		Expect(err).To(HaveOccurred())
	}
}

func haveCode(code string) OmegaMatcher {
	return WithTransform(auth.Code, Equal(code))
}

var _ = Describe("Account security", func() {
	var e *securityEnv

	BeforeEach(func() {
		e = newSecurityEnv()
	})

	Describe("lockout", func() {
		It("locks after five consecutive failures, even for the correct password", func() {
			e.failLogins(auth.LockoutThreshold)

			_, err := e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).To(haveCode(auth.CodeAccountLocked))

			e.clock.Advance(auth.LockoutDuration - time.Second)
			_, err = e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).To(haveCode(auth.CodeAccountLocked))
		})

		It("reports the fifth failure itself as locked", func() {
			e.failLogins(auth.LockoutThreshold - 1)
			_, err := e.svc.Login(e.ctx, adminEmail, wrongPassword)
			Expect(err).To(haveCode(auth.CodeAccountLocked))
		})

		It("does not count attempts made while locked", func() {
			e.failLogins(auth.LockoutThreshold)
			e.failLogins(3)
			Expect(e.stored().LoginAttempts).To(Equal(auth.LockoutThreshold))
		})

		It("restarts the counter at one after the lock expires", func() {
			e.failLogins(auth.LockoutThreshold)
			e.clock.Advance(auth.LockoutDuration)

			_, err := e.svc.Login(e.ctx, adminEmail, wrongPassword)
			Expect(err).To(haveCode(auth.CodeInvalidCredentials))
			Expect(e.stored().LoginAttempts).To(Equal(1))
		})

		It("clears the counter and lock on success", func() {
			e.failLogins(3)
			_, err := e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())

			a := e.stored()
			Expect(a.LoginAttempts).To(BeZero())
			Expect(a.LockUntil).To(BeNil())
			Expect(a.LastLogin).NotTo(BeNil())
		})

		It("never exceeds the attempt count under concurrent failures", func() {
			const n = 4
			var wg sync.WaitGroup
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := e.svc.Login(e.ctx, adminEmail, wrongPassword)
					Expect(err).To(HaveOccurred())
				}()
			}
			wg.Wait()

			attempts := e.stored().LoginAttempts
			Expect(attempts).To(BeNumerically(">=", 1))
			Expect(attempts).To(BeNumerically("<=", n))
		})
	})

	Describe("password reset", func() {
		It("redeems a fresh token exactly once", func() {
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			mail, ok := e.outbox.Last()
			Expect(ok).To(BeTrue())
			Expect(mail.Email).To(Equal(adminEmail))

			_, err := e.svc.ResetPassword(e.ctx, mail.Token, "N3w-Passw0rd")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.svc.ResetPassword(e.ctx, mail.Token, "An0ther-Pass")
			Expect(err).To(haveCode(auth.CodeResetTokenInvalid))

			_, err = e.svc.Login(e.ctx, adminEmail, "N3w-Passw0rd")
			Expect(err).NotTo(HaveOccurred())
		})

		It("fails an expired token exactly like an unknown one", func() {
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			mail, _ := e.outbox.Last()
			e.clock.Advance(auth.ResetTokenExpiry + time.Second)

			_, expired := e.svc.ResetPassword(e.ctx, mail.Token, "N3w-Passw0rd")
			_, unknown := e.svc.ResetPassword(e.ctx, strings.Repeat("0", 64), "N3w-Passw0rd")
			Expect(expired).To(haveCode(auth.CodeResetTokenInvalid))
			Expect(unknown).To(haveCode(auth.CodeResetTokenInvalid))
			Expect(expired.Error()).To(Equal(unknown.Error()))
		})

		It("invalidates the earlier token when a new one is issued", func() {
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			first, _ := e.outbox.Last()
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())

			_, err := e.svc.ResetPassword(e.ctx, first.Token, "N3w-Passw0rd")
			Expect(err).To(haveCode(auth.CodeResetTokenInvalid))
		})

		It("keeps the token when the password fails policy", func() {
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			mail, _ := e.outbox.Last()

			_, err := e.svc.ResetPassword(e.ctx, mail.Token, "short1!")
			Expect(err).To(haveCode(auth.CodePasswordTooShort))
			_, err = e.svc.ResetPassword(e.ctx, mail.Token, "alllowercase1!")
			Expect(err).To(haveCode(auth.CodePasswordTooWeak))

			_, err = e.svc.ResetPassword(e.ctx, mail.Token, adminPassword+"x")
			Expect(err).NotTo(HaveOccurred())
		})

		It("unlocks a locked account", func() {
			e.failLogins(auth.LockoutThreshold)
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			mail, _ := e.outbox.Last()

			_, err := e.svc.ResetPassword(e.ctx, mail.Token, "N3w-Passw0rd")
			Expect(err).NotTo(HaveOccurred())
			_, err = e.svc.Login(e.ctx, adminEmail, "N3w-Passw0rd")
			Expect(err).NotTo(HaveOccurred())
		})

		It("refuses a token issued before the account was deactivated", func() {
			Expect(e.svc.ForgotPassword(e.ctx, adminEmail)).To(Succeed())
			mail, _ := e.outbox.Last()
			Expect(e.svc.SetActive(e.ctx, e.account.ID, false)).To(Succeed())

			_, err := e.svc.ResetPassword(e.ctx, mail.Token, "N3w-Passw0rd")
			Expect(err).To(haveCode(auth.CodeResetTokenInvalid))

			Expect(e.svc.SetActive(e.ctx, e.account.ID, true)).To(Succeed())
			_, err = e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())
		})

		It("sends nothing for unknown emails", func() {
			Expect(e.svc.ForgotPassword(e.ctx, "ghost@tripdesk.example")).To(Succeed())
			Expect(e.outbox.Sent()).To(BeEmpty())
		})
	})

	Describe("sessions", func() {
		It("distinguishes expired from tampered tokens", func() {
			result, err := e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())

			parts := strings.Split(result.Token, ".")
			sig := []byte(parts[2])
			mid := len(sig) / 2
			if sig[mid] == 'x' {
				sig[mid] = 'y'
			} else {
				sig[mid] = 'x'
			}
			_, _, err = e.svc.VerifySession(e.ctx, parts[0]+"."+parts[1]+"."+string(sig))
			Expect(err).To(haveCode(auth.CodeSessionInvalid))

			e.clock.Advance(auth.SessionTokenExpiry + time.Second)
			_, _, err = e.svc.VerifySession(e.ctx, result.Token)
			Expect(err).To(haveCode(auth.CodeSessionExpired))
		})

		It("rejects login and session on the next call after deactivation", func() {
			result, err := e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())
			_, _, err = e.svc.VerifySession(e.ctx, result.Token)
			Expect(err).NotTo(HaveOccurred())

			Expect(e.svc.SetActive(e.ctx, e.account.ID, false)).To(Succeed())

			_, err = e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).To(haveCode(auth.CodeAccountInactive))
			_, _, err = e.svc.VerifySession(e.ctx, result.Token)
			Expect(err).To(haveCode(auth.CodeSessionAccount))
		})

		It("records last_verified", func() {
			result, err := e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())
			e.clock.Advance(time.Hour)

			view, _, err := e.svc.VerifySession(e.ctx, result.Token)
			Expect(err).NotTo(HaveOccurred())
			Expect(view.LastVerified).NotTo(BeNil())
			Expect(*e.stored().LastVerified).To(Equal(e.clock.Now()))
		})
	})

	Describe("external identity", func() {
		It("links once and rejects a second external id for the same email", func() {
			e.provider["first"] = &auth.ExternalIdentity{ExternalID: "1", Email: adminEmail, EmailVerified: true}
			e.provider["second"] = &auth.ExternalIdentity{ExternalID: "2", Email: adminEmail, EmailVerified: true}

			result, err := e.svc.ExternalLogin(e.ctx, "first")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Account.ID).To(Equal(e.account.ID.String()))

			_, err = e.svc.ExternalLogin(e.ctx, "first")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.svc.ExternalLogin(e.ctx, "second")
			Expect(err).To(haveCode(auth.CodeIdentityConflict))
		})

		It("provisions allow-listed emails only", func() {
			e.provider["hire"] = &auth.ExternalIdentity{ExternalID: "g-7", Email: "New-Hire@tripdesk.example", EmailVerified: true}
			e.provider["stranger"] = &auth.ExternalIdentity{ExternalID: "g-8", Email: "stranger@tripdesk.example", EmailVerified: true}

			result, err := e.svc.ExternalLogin(e.ctx, "hire")
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Account.Email).To(Equal("new-hire@tripdesk.example"))
			Expect(result.Account.HasPassword).To(BeFalse())

			_, err = e.svc.ExternalLogin(e.ctx, "stranger")
			Expect(err).To(haveCode(auth.CodeUnauthorizedEmail))
			Expect(e.repo.Len()).To(Equal(2))
		})

		It("refuses unverified emails", func() {
			e.provider["unverified"] = &auth.ExternalIdentity{ExternalID: "g-9", Email: adminEmail}
			_, err := e.svc.ExternalLogin(e.ctx, "unverified")
			Expect(err).To(haveCode(auth.CodeEmailUnverified))
			Expect(e.stored().ExternalID).To(BeNil())
		})

		It("rejects password login for provisioned accounts", func() {
			e.provider["hire"] = &auth.ExternalIdentity{ExternalID: "g-7", Email: "new-hire@tripdesk.example", EmailVerified: true}
			_, err := e.svc.ExternalLogin(e.ctx, "hire")
			Expect(err).NotTo(HaveOccurred())

			_, err = e.svc.Login(e.ctx, "new-hire@tripdesk.example", adminPassword)
			Expect(err).To(haveCode(auth.CodeNoPassword))
		})
	})

	Describe("seed bootstrap", func() {
		It("is idempotent and keeps the existing password", func() {
			created, err := e.svc.EnsureSeedAccount(e.ctx, adminEmail, "Different1!")
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			_, err = e.svc.Login(e.ctx, adminEmail, adminPassword)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})
