// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

package database

import (
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/tomtom215/custodia/internal/logging"
)

// Store errors. Handlers map these onto NOT_FOUND and CONFLICT envelope
// codes; anything else becomes INTERNAL_ERROR.
var (
	// ErrNotFound indicates the requested row does not exist in this tenant.
	ErrNotFound = errors.New("record not found")

	// ErrConflict indicates a uniqueness or state conflict (duplicate person
	// code, double check-in, invalid ticket transition).
	ErrConflict = errors.New("record conflict")
)

// closeWithLog closes a resource and logs any error.
// Use this for cleanup operations where errors should be acknowledged but
// not fail the operation.
func closeWithLog(closer io.Closer, resourceType string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.Warn().Str("type", resourceType).Err(err).Msg("Failed to close resource")
	}
}

// closeQuietly closes a resource and explicitly ignores any error.
// Use this for cleanup in error paths where Close() errors are not actionable.
func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // cleanup is best-effort
	}
}

// checkRowsAffected verifies that at least one row was affected, returning
// ErrNotFound with context otherwise.
func checkRowsAffected(result sql.Result, what string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	}
	return nil
}
