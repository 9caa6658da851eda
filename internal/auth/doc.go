// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package auth provides account security for the Tripdesk admin console.
//
// # Domain Types
//
// AdminAccount is the only persisted type. Create it with NewAdminAccount,
// which validates and normalizes the email. Password hashes are only ever
// computed by AdminAccount.SetPassword. Each flow writes only the columns it
// owns: login touches the failure counter, lock and last_login; linking
// touches the external identity and profile in one conditional statement.
//
// # Services
//
//   - Service - login, session verification, external login, seed bootstrap
//   - PasswordResetService - reset token issue and redemption
//   - IdentityLinker - binds external identities to accounts
//   - SessionIssuer - signs and verifies stateless session tokens
//
// Services are created with New* constructors that validate dependencies.
// Errors carry stable oops codes; Classify maps a code to the Category the
// transport renders.
package auth
