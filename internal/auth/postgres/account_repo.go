// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package postgres implements the auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// poolIface is the subset of *pgxpool.Pool the repository uses.
type poolIface interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const accountColumns = `id, email, password_hash, role, is_active,
		       login_attempts, lock_until, external_id, email_verified,
		       given_name, family_name, avatar_url,
		       reset_token_hash, reset_token_expiry,
		       last_login, last_verified, created_at, updated_at`

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool poolIface
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool poolIface) *AccountRepository {
	return &AccountRepository{pool: pool}
}

// Create stores a new account.
func (r *AccountRepository) Create(ctx context.Context, account *auth.AdminAccount) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO admin_accounts (
			id, email, password_hash, role, is_active,
			login_attempts, lock_until, external_id, email_verified,
			given_name, family_name, avatar_url,
			last_login, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		account.ID.String(),
		auth.NormalizeEmail(account.Email),
		nullString(account.PasswordHash),
		string(account.Role),
		account.IsActive,
		account.LoginAttempts,
		account.LockUntil,
		account.ExternalID,
		account.EmailVerified,
		account.GivenName,
		account.FamilyName,
		account.AvatarURL,
		account.LastLogin,
		account.CreatedAt,
		account.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return oops.Code("ACCOUNT_CONFLICT").
				With("email", account.Email).
				Wrap(auth.ErrConflict)
		}
		return oops.Code("ACCOUNT_CREATE_FAILED").
			With("operation", "insert account").
			With("email", account.Email).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves an account by ID.
func (r *AccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM admin_accounts
		WHERE id = $1
	`, id.String())

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_ID_FAILED").
			With("operation", "get account by id").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// GetByEmail retrieves an account by email (case-insensitive).
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*auth.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+accountColumns+`
		FROM admin_accounts
		WHERE LOWER(email) = LOWER($1)
	`, auth.NormalizeEmail(email))

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("email", email).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_GET_BY_EMAIL_FAILED").
			With("operation", "get account by email").
			With("email", email).
			Wrap(err)
	}
	return account, nil
}

// RecordLoginFailure stores the failure counter and lock. A lock that is
// still live at now is kept, so concurrent failures never shorten it.
func (r *AccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, attempts int, lockUntil *time.Time, now time.Time) error {
	return r.execByID(ctx, "ACCOUNT_RECORD_FAILURE_FAILED", "record login failure", id, `
		UPDATE admin_accounts SET
			login_attempts = CASE WHEN lock_until > $4 THEN login_attempts ELSE $2 END,
			lock_until = CASE WHEN lock_until > $4 THEN lock_until ELSE $3 END,
			updated_at = $4
		WHERE id = $1
	`, attempts, lockUntil, now)
}

// RecordLoginSuccess clears the failure counter and lock and sets last_login.
func (r *AccountRepository) RecordLoginSuccess(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.execByID(ctx, "ACCOUNT_RECORD_SUCCESS_FAILED", "record login success", id, `
		UPDATE admin_accounts SET
			login_attempts = 0,
			lock_until = NULL,
			last_login = $2,
			updated_at = $2
		WHERE id = $1
	`, at)
}

// LinkExternalIdentity binds an external identity to an active account that
// is unlinked or already holds the same external ID. Two links racing for an
// unlinked account serialize on the row lock; the loser sees the winner's
// external_id and matches no row.
func (r *AccountRepository) LinkExternalIdentity(ctx context.Context, id ulid.ULID, identity *auth.ExternalIdentity, at time.Time) (*auth.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE admin_accounts SET
			external_id = $2,
			email_verified = TRUE,
			given_name = COALESCE(NULLIF($3, ''), given_name),
			family_name = COALESCE(NULLIF($4, ''), family_name),
			avatar_url = COALESCE(NULLIF($5, ''), avatar_url),
			last_login = $6,
			updated_at = $6
		WHERE id = $1 AND is_active AND (external_id IS NULL OR external_id = $2)
		RETURNING `+accountColumns,
		id.String(),
		identity.ExternalID,
		identity.GivenName,
		identity.FamilyName,
		identity.AvatarURL,
		at,
	)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_LINK_CONFLICT").
			With("id", id.String()).
			Wrap(auth.ErrConflict)
	}
	if err != nil {
		if isUniqueViolation(err) {
			return nil, oops.Code("ACCOUNT_CONFLICT").
				With("id", id.String()).
				Wrap(auth.ErrConflict)
		}
		return nil, oops.Code("ACCOUNT_LINK_FAILED").
			With("operation", "link external identity").
			With("id", id.String()).
			Wrap(err)
	}
	return account, nil
}

// UpdatePassword updates only the password hash.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return r.execByID(ctx, "ACCOUNT_UPDATE_PASSWORD_FAILED", "update password", id, `
		UPDATE admin_accounts SET password_hash = $2, updated_at = NOW()
		WHERE id = $1
	`, passwordHash)
}

// SetResetToken stores a reset token hash and expiry, replacing any previous one.
func (r *AccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return r.execByID(ctx, "ACCOUNT_SET_RESET_TOKEN_FAILED", "set reset token", id, `
		UPDATE admin_accounts
		SET reset_token_hash = $2, reset_token_expiry = $3, updated_at = NOW()
		WHERE id = $1
	`, tokenHash, expiresAt)
}

// RedeemResetToken consumes a live reset token of an active account in one
// statement. Concurrent redemptions of the same token race on the row lock;
// the loser matches no row because the winner cleared the hash.
func (r *AccountRepository) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.AdminAccount, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE admin_accounts SET
			password_hash = $2,
			reset_token_hash = NULL,
			reset_token_expiry = NULL,
			login_attempts = 0,
			lock_until = NULL,
			updated_at = $3
		WHERE reset_token_hash = $1 AND reset_token_expiry > $3 AND is_active
		RETURNING `+accountColumns, tokenHash, passwordHash, now)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("RESET_TOKEN_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_REDEEM_RESET_FAILED").
			With("operation", "redeem reset token").
			Wrap(err)
	}
	return account, nil
}

// SetActive toggles the active flag.
func (r *AccountRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	return r.execByID(ctx, "ACCOUNT_SET_ACTIVE_FAILED", "set active", id, `
		UPDATE admin_accounts SET is_active = $2, updated_at = NOW()
		WHERE id = $1
	`, active)
}

// RecordVerified sets last_verified.
func (r *AccountRepository) RecordVerified(ctx context.Context, id ulid.ULID, at time.Time) error {
	return r.execByID(ctx, "ACCOUNT_RECORD_VERIFIED_FAILED", "record verified", id, `
		UPDATE admin_accounts SET last_verified = $2
		WHERE id = $1
	`, at)
}

// List returns all accounts ordered by email.
func (r *AccountRepository) List(ctx context.Context) ([]*auth.AdminAccount, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM admin_accounts
		ORDER BY email
	`)
	if err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "list accounts").
			Wrap(err)
	}
	defer rows.Close()

	var accounts []*auth.AdminAccount
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, oops.Code("ACCOUNT_LIST_FAILED").
				With("operation", "scan account").
				Wrap(err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("ACCOUNT_LIST_FAILED").
			With("operation", "iterate accounts").
			Wrap(err)
	}
	return accounts, nil
}

// execByID runs a single-row update keyed by id ($1) and maps zero affected
// rows to auth.ErrNotFound.
func (r *AccountRepository) execByID(ctx context.Context, code, operation string, id ulid.ULID, sql string, args ...any) error {
	result, err := r.pool.Exec(ctx, sql, append([]any{id.String()}, args...)...)
	if err != nil {
		return oops.Code(code).
			With("operation", operation).
			With("id", id.String()).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("ACCOUNT_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// scanAccount scans a single row into an AdminAccount.
// Callers are responsible for handling pgx.ErrNoRows.
func scanAccount(row pgx.Row) (*auth.AdminAccount, error) {
	var (
		idStr        string
		passwordHash *string
		role         string
		a            auth.AdminAccount
	)

	err := row.Scan(
		&idStr,
		&a.Email,
		&passwordHash,
		&role,
		&a.IsActive,
		&a.LoginAttempts,
		&a.LockUntil,
		&a.ExternalID,
		&a.EmailVerified,
		&a.GivenName,
		&a.FamilyName,
		&a.AvatarURL,
		&a.ResetTokenHash,
		&a.ResetTokenExpiry,
		&a.LastLogin,
		&a.LastVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("ACCOUNT_SCAN_FAILED").
			With("operation", "scan account").
			Wrap(err)
	}

	a.ID, err = ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("ACCOUNT_INVALID_ID").
			With("operation", "parse account id").
			With("id", idStr).
			Wrap(err)
	}
	a.Role = auth.Role(role)
	if a.Role != auth.RoleAdmin && a.Role != auth.RoleSuperAdmin {
		return nil, oops.Code("ACCOUNT_INVALID_ROLE").
			With("id", idStr).
			With("role", role).
			Errorf("stored role is not recognized")
	}
	if passwordHash != nil {
		a.PasswordHash = *passwordHash
	}
	return &a, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Compile-time interface check.
var _ auth.AccountRepository = (*AccountRepository)(nil)
