// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/internal/auth/postgres"
)

// NewAccountCmd creates the account command.
func NewAccountCmd() *cobra.Command {
	return newAccountCmd(nil)
}

func newAccountCmd(deps *Deps) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "account",
		Short: "List and (de)activate admin accounts",
	}
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultCommandTimeout, "timeout for database operations")

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List admin accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withAccounts(cmd, deps, timeout, func(ctx context.Context, repo *postgres.AccountRepository, _ *auth.Service) error {
				accounts, err := repo.List(ctx)
				if err != nil {
					return err
				}
				return printAccounts(cmd, accounts, time.Now())
			})
		},
	})

	for _, active := range []bool{true, false} {
		use, short := "activate ID", "Allow an account to sign in"
		if !active {
			use, short = "deactivate ID", "Block an account and revoke its sessions"
		}
		cmd.AddCommand(&cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, err := ulid.ParseStrict(args[0])
				if err != nil {
					return oops.Code(auth.CodeValidation).With("account_id", args[0]).Wrap(err)
				}
				return withAccounts(cmd, deps, timeout, func(ctx context.Context, _ *postgres.AccountRepository, svc *auth.Service) error {
					if err := svc.SetActive(ctx, id, active); err != nil {
						return err
					}
					cmd.Printf("Account %s active=%t\n", id, active)
					return nil
				})
			},
		})
	}

	return cmd
}

func withAccounts(cmd *cobra.Command, deps *Deps, timeout time.Duration, fn func(context.Context, *postgres.AccountRepository, *auth.Service) error) error {
	deps = deps.withDefaults()
	rt, err := loadRuntime(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	if err := rt.secrets.RequireDatabase(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	pool, err := deps.PoolOpener(ctx, rt.secrets.DatabaseURL, rt.poolOptions()...)
	if err != nil {
		return err
	}
	defer pool.Close()

	repo := postgres.NewAccountRepository(pool)
	svc, err := offlineService(repo, rt.logger)
	if err != nil {
		return err
	}
	return fn(ctx, repo, svc)
}

func printAccounts(cmd *cobra.Command, accounts []*auth.AdminAccount, now time.Time) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tROLE\tACTIVE\tLOCKED\tLOGIN\tLAST LOGIN")
	for _, a := range accounts {
		login := "password"
		switch {
		case a.HasPassword() && a.ExternalID != nil:
			login = "password+google"
		case a.ExternalID != nil:
			login = "google"
		case !a.HasPassword():
			login = "none"
		}
		lastLogin := "-"
		if a.LastLogin != nil {
			lastLogin = a.LastLogin.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%t\t%s\t%s\n",
			a.ID, a.Email, a.Role, a.IsActive, a.Lockout(now).IsLocked, login, lastLogin)
	}
	return w.Flush()
}
