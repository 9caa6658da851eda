// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// asOops fails t unless err is a non-nil oops error.
func asOops(t testing.TB, err error, want string) oops.OopsError {
	t.Helper()
	require.Errorf(t, err, "expected an error with %s", want)
	oopsErr, ok := oops.AsOops(err)
	require.Truef(t, ok, "expected an oops error with %s, got %T: %v", want, err, err)
	return oopsErr
}

// AssertErrorCode checks the deepest oops code carried by err.
func AssertErrorCode(t testing.TB, err error, code string) {
	t.Helper()
	oopsErr := asOops(t, err, "code "+code)
	assert.Equalf(t, code, oopsErr.Code(), "error: %v", err)
}

// AssertErrorContext checks a single oops context value.
func AssertErrorContext(t testing.TB, err error, key string, value any) {
	t.Helper()
	oopsErr := asOops(t, err, "context key "+key)
	ctx := oopsErr.Context()
	if assert.Containsf(t, ctx, key, "error: %v", err) {
		assert.Equalf(t, value, ctx[key], "context %q of error: %v", key, err)
	}
}

// AssertErrorFields checks the code and any number of context pairs, given
// in the same flat key, value order oops.With takes.
func AssertErrorFields(t testing.TB, err error, code string, kv ...any) {
	t.Helper()
	require.Zerof(t, len(kv)%2, "context pairs must come in key, value order, got %d values", len(kv))
	AssertErrorCode(t, err, code)
	for i := 0; i < len(kv); i += 2 {
		key, ok := kv[i].(string)
		require.Truef(t, ok, "context key at position %d must be a string, got %T", i, kv[i])
		AssertErrorContext(t, err, key, kv[i+1])
	}
}
