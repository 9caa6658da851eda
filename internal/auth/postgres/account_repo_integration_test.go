// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

//go:build integration

package postgres_test

import (
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/tripdesk/tripdesk/internal/auth"
	authpg "github.com/tripdesk/tripdesk/internal/auth/postgres"
)

var _ = Describe("AccountRepository", func() {
	var (
		repo *authpg.AccountRepository
		now  time.Time
	)

	newAccount := func(email string) *auth.AdminAccount {
		account, err := auth.NewAdminAccount(email, auth.RoleAdmin, now)
		Expect(err).NotTo(HaveOccurred())
		Expect(repo.Create(env.ctx, account)).To(Succeed())
		return account
	}

	BeforeEach(func() {
		truncate()
		repo = authpg.NewAccountRepository(env.pool)
		now = time.Now().UTC().Truncate(time.Microsecond)
	})

	Describe("email uniqueness", func() {
		It("treats emails case-insensitively", func() {
			newAccount("ops@tripdesk.example")

			dup, err := auth.NewAdminAccount("ops@tripdesk.example", auth.RoleAdmin, now)
			Expect(err).NotTo(HaveOccurred())
			dup.Email = "OPS@tripdesk.example"
			Expect(repo.Create(env.ctx, dup)).To(MatchError(auth.ErrConflict))

			found, err := repo.GetByEmail(env.ctx, "Ops@TripDesk.Example")
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Email).To(Equal("ops@tripdesk.example"))
		})
	})

	Describe("external id uniqueness", func() {
		It("rejects linking a second account to the same subject", func() {
			first := newAccount("first@tripdesk.example")
			second := newAccount("second@tripdesk.example")
			subject := "google-123"

			identity := &auth.ExternalIdentity{ExternalID: subject}
			_, err := repo.LinkExternalIdentity(env.ctx, first.ID, identity, now)
			Expect(err).NotTo(HaveOccurred())

			_, err = repo.LinkExternalIdentity(env.ctx, second.ID, identity, now)
			Expect(err).To(MatchError(auth.ErrConflict))
		})
	})

	Describe("RedeemResetToken", func() {
		var (
			account *auth.AdminAccount
			token   string
		)

		BeforeEach(func() {
			account = newAccount("reset@tripdesk.example")
			var hash string
			var err error
			token, hash, err = auth.GenerateResetToken()
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.SetResetToken(env.ctx, account.ID, hash, now.Add(auth.ResetTokenExpiry))).To(Succeed())
		})

		It("consumes the token exactly once", func() {
			redeemed, err := repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "new-hash", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(redeemed.ID).To(Equal(account.ID))
			Expect(redeemed.PasswordHash).To(Equal("new-hash"))
			Expect(redeemed.ResetTokenHash).To(BeNil())
			Expect(redeemed.ResetTokenExpiry).To(BeNil())

			_, err = repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "other-hash", now)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("lets only one of many concurrent redemptions win", func() {
			const n = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
			)
			for range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "race-hash", now)
					if err == nil {
						mu.Lock()
						winners++
						mu.Unlock()
						return
					}
					Expect(err).To(MatchError(auth.ErrNotFound))
				}()
			}
			wg.Wait()
			Expect(winners).To(Equal(1))
		})

		It("refuses an expired token", func() {
			_, err := repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "new-hash", now.Add(auth.ResetTokenExpiry+time.Second))
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("invalidates the earlier token when a new one is issued", func() {
			_, newHash, err := auth.GenerateResetToken()
			Expect(err).NotTo(HaveOccurred())
			Expect(repo.SetResetToken(env.ctx, account.ID, newHash, now.Add(auth.ResetTokenExpiry))).To(Succeed())

			_, err = repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "new-hash", now)
			Expect(err).To(MatchError(auth.ErrNotFound))
		})

		It("refuses a token held by an inactive account", func() {
			Expect(repo.SetActive(env.ctx, account.ID, false)).To(Succeed())

			_, err := repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "new-hash", now)
			Expect(err).To(MatchError(auth.ErrNotFound))

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.HasPassword()).To(BeFalse())
		})

		It("clears an active lockout", func() {
			for range auth.LockoutThreshold {
				account.RecordFailure(now)
			}
			Expect(repo.RecordLoginFailure(env.ctx, account.ID, account.LoginAttempts, account.LockUntil, now)).To(Succeed())

			redeemed, err := repo.RedeemResetToken(env.ctx, auth.HashResetToken(token), "new-hash", now)
			Expect(err).NotTo(HaveOccurred())
			Expect(redeemed.LoginAttempts).To(BeZero())
			Expect(redeemed.LockUntil).To(BeNil())
		})
	})

	Describe("LinkExternalIdentity", func() {
		It("lets only one of many concurrent identities link an unlinked account", func() {
			account := newAccount("ops@tripdesk.example")
			const n = 8
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners []string
			)
			for i := range n {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					subject := fmt.Sprintf("google-%d", i)
					_, err := repo.LinkExternalIdentity(env.ctx, account.ID, &auth.ExternalIdentity{ExternalID: subject}, now)
					if err == nil {
						mu.Lock()
						winners = append(winners, subject)
						mu.Unlock()
						return
					}
					Expect(err).To(MatchError(auth.ErrConflict))
				}()
			}
			wg.Wait()
			Expect(winners).To(HaveLen(1))

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ExternalID).To(HaveValue(Equal(winners[0])))
		})

		It("refreshes the profile for the same identity and keeps sparse fields", func() {
			account := newAccount("ops@tripdesk.example")
			_, err := repo.LinkExternalIdentity(env.ctx, account.ID,
				&auth.ExternalIdentity{ExternalID: "google-1", GivenName: "Ada", FamilyName: "Lovelace"}, now)
			Expect(err).NotTo(HaveOccurred())

			linked, err := repo.LinkExternalIdentity(env.ctx, account.ID,
				&auth.ExternalIdentity{ExternalID: "google-1", GivenName: "Augusta"}, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(linked.GivenName).To(Equal("Augusta"))
			Expect(linked.FamilyName).To(Equal("Lovelace"))
			Expect(linked.EmailVerified).To(BeTrue())
		})

		It("refuses an inactive account", func() {
			account := newAccount("ops@tripdesk.example")
			Expect(repo.SetActive(env.ctx, account.ID, false)).To(Succeed())

			_, err := repo.LinkExternalIdentity(env.ctx, account.ID, &auth.ExternalIdentity{ExternalID: "google-1"}, now)
			Expect(err).To(MatchError(auth.ErrConflict))
		})

		It("leaves the lockout counters alone", func() {
			account := newAccount("ops@tripdesk.example")
			until := now.Add(auth.LockoutDuration)
			Expect(repo.RecordLoginFailure(env.ctx, account.ID, auth.LockoutThreshold, &until, now)).To(Succeed())

			linked, err := repo.LinkExternalIdentity(env.ctx, account.ID, &auth.ExternalIdentity{ExternalID: "google-1"}, now)
			Expect(err).NotTo(HaveOccurred())
			Expect(linked.LoginAttempts).To(Equal(auth.LockoutThreshold))
			Expect(linked.IsLocked(now)).To(BeTrue())
		})
	})

	Describe("login bookkeeping", func() {
		It("never releases a live lock on a stale failure write", func() {
			account := newAccount("ops@tripdesk.example")
			until := now.Add(auth.LockoutDuration)
			Expect(repo.RecordLoginFailure(env.ctx, account.ID, auth.LockoutThreshold, &until, now)).To(Succeed())

			Expect(repo.RecordLoginFailure(env.ctx, account.ID, 2, nil, now)).To(Succeed())

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.LoginAttempts).To(Equal(auth.LockoutThreshold))
			Expect(stored.IsLocked(now)).To(BeTrue())
		})

		It("restarts the counter once the lock has expired", func() {
			account := newAccount("ops@tripdesk.example")
			expired := now.Add(-time.Minute)
			Expect(repo.RecordLoginFailure(env.ctx, account.ID, auth.LockoutThreshold, &expired, now.Add(-auth.LockoutDuration))).To(Succeed())

			Expect(repo.RecordLoginFailure(env.ctx, account.ID, 1, nil, now)).To(Succeed())

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.LoginAttempts).To(Equal(1))
			Expect(stored.LockUntil).To(BeNil())
		})

		It("keeps the identity link and password when recording a failure", func() {
			account := newAccount("ops@tripdesk.example")
			Expect(repo.UpdatePassword(env.ctx, account.ID, "stored-hash")).To(Succeed())
			_, err := repo.LinkExternalIdentity(env.ctx, account.ID, &auth.ExternalIdentity{ExternalID: "google-1"}, now)
			Expect(err).NotTo(HaveOccurred())

			Expect(repo.RecordLoginFailure(env.ctx, account.ID, 1, nil, now)).To(Succeed())

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ExternalID).To(HaveValue(Equal("google-1")))
			Expect(stored.PasswordHash).To(Equal("stored-hash"))
		})

		It("clears counters and sets last_login on success", func() {
			account := newAccount("ops@tripdesk.example")
			Expect(repo.RecordLoginFailure(env.ctx, account.ID, 3, nil, now)).To(Succeed())

			Expect(repo.RecordLoginSuccess(env.ctx, account.ID, now)).To(Succeed())

			stored, err := repo.GetByID(env.ctx, account.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.LoginAttempts).To(BeZero())
			Expect(stored.LastLogin).To(HaveValue(BeTemporally("==", now)))
		})
	})

	Describe("SetActive and List", func() {
		It("deactivates and lists accounts by email", func() {
			b := newAccount("b@tripdesk.example")
			newAccount("a@tripdesk.example")

			Expect(repo.SetActive(env.ctx, b.ID, false)).To(Succeed())

			accounts, err := repo.List(env.ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(accounts).To(HaveLen(2))
			Expect(accounts[0].Email).To(Equal("a@tripdesk.example"))
			Expect(accounts[1].IsActive).To(BeFalse())
		})
	})
})
