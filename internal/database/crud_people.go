// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Workforce registry operations. Phone and bank account values are
// encrypted before they reach the database and decrypted after scanning,
// so callers only ever see plaintext.

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/custodia/internal/metrics"
	"github.com/tomtom215/custodia/internal/models"
)

// CreatePerson inserts a new person. Code is unique per tenant.
func (db *DB) CreatePerson(ctx context.Context, tenantID string, person *models.Person) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if person.ID == "" {
		person.ID = uuid.New().String()
	}
	person.TenantID = tenantID
	now := time.Now()
	person.CreatedAt = now
	person.UpdatedAt = now

	phone, bankAccount, err := db.encryptPersonFields(person.Phone, person.BankAccount)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO people (id, tenant_id, code, name, email, phone, bank_account, role, site, active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	start := time.Now()
	_, err = db.conn.ExecContext(ctx, query,
		person.ID, tenantID, person.Code, person.Name, person.Email,
		nullIfEmpty(phone), nullIfEmpty(bankAccount),
		string(person.Role), person.Site, person.Active,
		person.CreatedAt, person.UpdatedAt,
	)
	metrics.RecordDBQuery("insert", "people", time.Since(start), err)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: person code %q already exists", ErrConflict, person.Code)
		}
		return fmt.Errorf("failed to insert person: %w", err)
	}
	return nil
}

// GetPerson retrieves a person by ID within a tenant.
func (db *DB) GetPerson(ctx context.Context, tenantID, id string) (*models.Person, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, code, name, email, phone, bank_account, role, site, active, created_at, updated_at
		FROM people WHERE tenant_id = ? AND id = ?
	`, tenantID, id)

	person, err := db.scanPerson(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person %q", ErrNotFound, id)
	}
	return person, err
}

// GetPersonByCode retrieves a person by their per-tenant code.
func (db *DB) GetPersonByCode(ctx context.Context, tenantID, code string) (*models.Person, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx, `
		SELECT id, tenant_id, code, name, email, phone, bank_account, role, site, active, created_at, updated_at
		FROM people WHERE tenant_id = ? AND code = ?
	`, tenantID, code)

	person, err := db.scanPerson(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: person code %q", ErrNotFound, code)
	}
	return person, err
}

// UpdatePerson applies a partial update. Nil request fields are unchanged.
func (db *DB) UpdatePerson(ctx context.Context, tenantID, id string, req *models.PersonUpdateRequest) (*models.Person, error) {
	person, err := db.GetPerson(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		person.Name = *req.Name
	}
	if req.Email != nil {
		person.Email = *req.Email
	}
	if req.Phone != nil {
		person.Phone = *req.Phone
	}
	if req.BankAccount != nil {
		person.BankAccount = *req.BankAccount
	}
	if req.Role != nil {
		person.Role = *req.Role
	}
	if req.Site != nil {
		person.Site = *req.Site
	}
	if req.Active != nil {
		person.Active = *req.Active
	}
	person.UpdatedAt = time.Now()

	phone, bankAccount, err := db.encryptPersonFields(person.Phone, person.BankAccount)
	if err != nil {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx, `
		UPDATE people SET name = ?, email = ?, phone = ?, bank_account = ?, role = ?, site = ?, active = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`, person.Name, person.Email, nullIfEmpty(phone), nullIfEmpty(bankAccount),
		string(person.Role), person.Site, person.Active, person.UpdatedAt,
		tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update person: %w", err)
	}
	if err := checkRowsAffected(result, "person"); err != nil {
		return nil, err
	}
	return person, nil
}

// DeletePerson removes a person from the registry.
func (db *DB) DeletePerson(ctx context.Context, tenantID, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM people WHERE tenant_id = ? AND id = ?`, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to delete person: %w", err)
	}
	return checkRowsAffected(result, "person")
}

// ListPeople returns a filtered, paginated page of people plus the total
// count matching the filter.
func (db *DB) ListPeople(ctx context.Context, tenantID string, filter models.PersonFilter) ([]models.Person, int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := "WHERE tenant_id = ?"
	args := []interface{}{tenantID}

	if filter.Site != "" {
		where += " AND site = ?"
		args = append(args, filter.Site)
	}
	if filter.Role != "" {
		where += " AND role = ?"
		args = append(args, string(filter.Role))
	}
	if filter.Active != nil {
		where += " AND active = ?"
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		where += " AND (code ILIKE ? OR name ILIKE ?)"
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	var total int64
	if err := db.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM people "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count people: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	query := `
		SELECT id, tenant_id, code, name, email, phone, bank_account, role, site, active, created_at, updated_at
		FROM people ` + where + ` ORDER BY code LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := db.conn.QueryContext(ctx, query, args...)
	metrics.RecordDBQuery("select", "people", time.Since(start), err)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query people: %w", err)
	}
	defer rows.Close()

	people := []models.Person{}
	for rows.Next() {
		person, err := db.scanPerson(rows.Scan)
		if err != nil {
			return nil, 0, err
		}
		people = append(people, *person)
	}
	return people, total, rows.Err()
}

// encryptPersonFields encrypts the sensitive person columns for storage.
func (db *DB) encryptPersonFields(phone, bankAccount string) (string, string, error) {
	encPhone, err := db.crypto.Encrypt(phone)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt phone: %w", err)
	}
	encBank, err := db.crypto.Encrypt(bankAccount)
	if err != nil {
		return "", "", fmt.Errorf("failed to encrypt bank account: %w", err)
	}
	return encPhone, encBank, nil
}

// scanPerson scans one person row and decrypts the sensitive columns.
// scan is row.Scan or rows.Scan.
func (db *DB) scanPerson(scan func(dest ...interface{}) error) (*models.Person, error) {
	var p models.Person
	var role string
	var phone, bankAccount sql.NullString

	err := scan(&p.ID, &p.TenantID, &p.Code, &p.Name, &p.Email,
		&phone, &bankAccount, &role, &p.Site, &p.Active,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan person: %w", err)
	}

	p.Role = models.PersonRole(role)

	if p.Phone, err = db.crypto.Decrypt(phone.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt phone for person %s: %w", p.ID, err)
	}
	if p.BankAccount, err = db.crypto.Decrypt(bankAccount.String); err != nil {
		return nil, fmt.Errorf("failed to decrypt bank account for person %s: %w", p.ID, err)
	}
	return &p, nil
}

// pageBounds converts 1-based page/limit into SQL LIMIT/OFFSET with defaults.
func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	if page < 1 {
		page = 1
	}
	return limit, (page - 1) * limit
}
