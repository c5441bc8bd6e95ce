/**
 * @description
 * This file implements the data access layer for the QuotaWatch backend. It
 * contains all the SQL queries and logic for interacting with the database.
 *
 * The balance write path (RecordCheckResult) runs in a single transaction so
 * the credential's cached balance and its history entry commit together, and
 * stays idempotent under job redelivery: the UPDATE is last-write-wins and
 * the history INSERT is append-only.
 */
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/quotawatch/backend/internal/domain"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Repository handles database operations for the backend.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// ---- users ----

// CreateUser inserts a new user and returns the stored row.
func (r *Repository) CreateUser(ctx context.Context, email, passwordHash string) (*domain.User, error) {
	query := `
        INSERT INTO users (email, password_hash)
        VALUES ($1, $2)
        RETURNING id, email, password_hash, is_active, created_at
    `
	var u domain.User
	err := r.db.QueryRow(ctx, query, email, passwordHash).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByEmail looks a user up by email.
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
        SELECT id, email, password_hash, is_active, created_at
        FROM users
        WHERE email = $1
    `
	var u domain.User
	err := r.db.QueryRow(ctx, query, email).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// FindUserByID looks a user up by primary key.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*domain.User, error) {
	query := `
        SELECT id, email, password_hash, is_active, created_at
        FROM users
        WHERE id = $1
    `
	var u domain.User
	err := r.db.QueryRow(ctx, query, id).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// ---- platforms ----

// ListPlatforms returns the full platform catalog.
func (r *Repository) ListPlatforms(ctx context.Context) ([]domain.Platform, error) {
	query := `
        SELECT id, name, slug, adapter_key, created_at
        FROM platforms
        ORDER BY id
    `
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var platforms []domain.Platform
	for rows.Next() {
		var p domain.Platform
		if err := rows.Scan(&p.ID, &p.Name, &p.Slug, &p.AdapterKey, &p.CreatedAt); err != nil {
			return nil, err
		}
		platforms = append(platforms, p)
	}
	return platforms, rows.Err()
}

// FindPlatformByID looks a platform up by primary key.
func (r *Repository) FindPlatformByID(ctx context.Context, id int64) (*domain.Platform, error) {
	query := `
        SELECT id, name, slug, adapter_key, created_at
        FROM platforms
        WHERE id = $1
    `
	var p domain.Platform
	err := r.db.QueryRow(ctx, query, id).
		Scan(&p.ID, &p.Name, &p.Slug, &p.AdapterKey, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertPlatform seeds one catalog row, keyed by slug. Safe to re-run.
func (r *Repository) UpsertPlatform(ctx context.Context, name, slug, adapterKey string) error {
	query := `
        INSERT INTO platforms (name, slug, adapter_key)
        VALUES ($1, $2, $3)
        ON CONFLICT (slug) DO NOTHING
    `
	_, err := r.db.Exec(ctx, query, name, slug, adapterKey)
	return err
}

// ---- credentials ----

const credentialColumns = `
    id, name, encrypted_secret, metadata, last_known_balance, last_checked,
    user_id, platform_id, created_at, updated_at`

func scanCredential(row pgx.Row) (*domain.Credential, error) {
	var c domain.Credential
	err := row.Scan(
		&c.ID, &c.Name, &c.EncryptedSecret, &c.Metadata, &c.LastKnownBalance,
		&c.LastChecked, &c.UserID, &c.PlatformID, &c.CreatedAt, &c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCredential stores a new credential. The secret must already be
// encrypted; plaintext never reaches this layer.
func (r *Repository) CreateCredential(ctx context.Context, c *domain.Credential) (*domain.Credential, error) {
	query := `
        INSERT INTO credentials (name, encrypted_secret, metadata, user_id, platform_id)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING` + credentialColumns
	return scanCredential(r.db.QueryRow(ctx, query,
		c.Name, c.EncryptedSecret, c.Metadata, c.UserID, c.PlatformID))
}

// FindCredentialByID looks a credential up by primary key.
func (r *Repository) FindCredentialByID(ctx context.Context, id int64) (*domain.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE id = $1`
	return scanCredential(r.db.QueryRow(ctx, query, id))
}

// FindCredentialForUser looks a credential up, scoped to its owner.
func (r *Repository) FindCredentialForUser(ctx context.Context, id, userID int64) (*domain.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE id = $1 AND user_id = $2`
	return scanCredential(r.db.QueryRow(ctx, query, id, userID))
}

// ListCredentialsByUser returns all credentials owned by one user.
func (r *Repository) ListCredentialsByUser(ctx context.Context, userID int64) ([]domain.Credential, error) {
	query := `SELECT` + credentialColumns + ` FROM credentials WHERE user_id = $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creds []domain.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, err
		}
		creds = append(creds, *c)
	}
	return creds, rows.Err()
}

// ListCredentialIDs enumerates every monitored credential id for the
// scheduler fan-out.
func (r *Repository) ListCredentialIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM credentials ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteCredential removes a credential owned by the given user. History and
// notification rules go with it via ON DELETE CASCADE.
func (r *Repository) DeleteCredential(ctx context.Context, id, userID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM credentials WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordCheckResult persists the outcome of one completed balance check: the
// credential's cached balance and checked timestamp plus one history record,
// committed atomically.
func (r *Repository) RecordCheckResult(ctx context.Context, credentialID int64, balance float64, checkedAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	updateQuery := `
        UPDATE credentials
        SET last_known_balance = $1,
            last_checked = $2,
            updated_at = NOW()
        WHERE id = $3
    `
	if _, err := tx.Exec(ctx, updateQuery, balance, checkedAt, credentialID); err != nil {
		return fmt.Errorf("update credential balance: %w", err)
	}

	insertQuery := `
        INSERT INTO balance_records (credential_id, balance, timestamp)
        VALUES ($1, $2, $3)
    `
	if _, err := tx.Exec(ctx, insertQuery, credentialID, balance, checkedAt); err != nil {
		return fmt.Errorf("append balance record: %w", err)
	}

	return tx.Commit(ctx)
}

// ListBalanceHistory returns the most recent history records for a
// credential, newest first.
func (r *Repository) ListBalanceHistory(ctx context.Context, credentialID int64, limit int) ([]domain.BalanceRecord, error) {
	query := `
        SELECT id, credential_id, balance, timestamp
        FROM balance_records
        WHERE credential_id = $1
        ORDER BY timestamp DESC
        LIMIT $2
    `
	rows, err := r.db.Query(ctx, query, credentialID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.BalanceRecord
	for rows.Next() {
		var rec domain.BalanceRecord
		if err := rows.Scan(&rec.ID, &rec.CredentialID, &rec.Balance, &rec.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ---- notification rules ----

// FindRuleByCredentialID returns the credential's alert rule, if any.
func (r *Repository) FindRuleByCredentialID(ctx context.Context, credentialID int64) (*domain.NotificationRule, error) {
	query := `
        SELECT id, credential_id, threshold_amount, channel, channel_address, created_at
        FROM notification_rules
        WHERE credential_id = $1
    `
	var rule domain.NotificationRule
	err := r.db.QueryRow(ctx, query, credentialID).
		Scan(&rule.ID, &rule.CredentialID, &rule.ThresholdAmount, &rule.Channel, &rule.ChannelAddress, &rule.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// UpsertRule creates or replaces the single alert rule for a credential.
func (r *Repository) UpsertRule(ctx context.Context, rule *domain.NotificationRule) (*domain.NotificationRule, error) {
	query := `
        INSERT INTO notification_rules (credential_id, threshold_amount, channel, channel_address)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (credential_id) DO UPDATE
        SET threshold_amount = EXCLUDED.threshold_amount,
            channel = EXCLUDED.channel,
            channel_address = EXCLUDED.channel_address
        RETURNING id, credential_id, threshold_amount, channel, channel_address, created_at
    `
	var stored domain.NotificationRule
	err := r.db.QueryRow(ctx, query,
		rule.CredentialID, rule.ThresholdAmount, rule.Channel, rule.ChannelAddress).
		Scan(&stored.ID, &stored.CredentialID, &stored.ThresholdAmount, &stored.Channel, &stored.ChannelAddress, &stored.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &stored, nil
}

// DeleteRule removes the credential's alert rule.
func (r *Repository) DeleteRule(ctx context.Context, credentialID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM notification_rules WHERE credential_id = $1`, credentialID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
