/**
 * @description
 * Core domain models for the QuotaWatch backend. These structs mirror the
 * database schema and are shared by the API, the worker, and the scheduler.
 */
package domain

import "time"

// User is an account that owns monitored credentials.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
}

// Platform is a static catalog entry for a supported API provider.
// Rows are seeded once and treated as read-only afterwards.
type Platform struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Slug       string    `json:"slug"`
	AdapterKey string    `json:"adapter_key"`
	CreatedAt  time.Time `json:"created_at"`
}

// Credential is a user-owned platform secret under balance monitoring.
// The plaintext secret never persists; only EncryptedSecret is stored.
type Credential struct {
	ID               int64          `json:"id"`
	Name             string         `json:"name"`
	EncryptedSecret  string         `json:"-"`
	Metadata         map[string]any `json:"metadata"`
	LastKnownBalance *float64       `json:"last_known_balance"`
	LastChecked      *time.Time     `json:"last_checked"`
	UserID           int64          `json:"user_id"`
	PlatformID       int64          `json:"platform_id"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// BalanceRecord is one append-only history point from a completed check.
type BalanceRecord struct {
	ID           int64     `json:"id"`
	CredentialID int64     `json:"credential_id"`
	Balance      float64   `json:"balance"`
	Timestamp    time.Time `json:"timestamp"`
}

// Notification channels supported by the dispatcher.
const (
	ChannelEmail   = "email"
	ChannelWebhook = "webhook"
)

// NotificationRule configures the low-balance alert for one credential.
// At most one rule exists per credential.
type NotificationRule struct {
	ID              int64     `json:"id"`
	CredentialID    int64     `json:"credential_id"`
	ThresholdAmount float64   `json:"threshold_amount"`
	Channel         string    `json:"channel"`
	ChannelAddress  string    `json:"channel_address"`
	CreatedAt       time.Time `json:"created_at"`
}

// BalanceFetchResult is the transient outcome of one adapter fetch.
// IsEstimate marks values derived by subtraction rather than read directly.
type BalanceFetchResult struct {
	Balance    float64 `json:"balance"`
	IsEstimate bool    `json:"is_estimate"`
}
