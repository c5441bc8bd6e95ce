/**
 * @description
 * Per-credential check workflow. One CheckCredential call is one job: load
 * the credential and its platform, decrypt the secret, fetch the balance
 * through the platform's adapter, persist balance plus history atomically,
 * and enqueue a notification when the balance sits at or below the
 * configured threshold.
 *
 * Each job is an independent unit of failure. Errors propagate to the queue
 * consumer, which decides between redelivery and dropping; a concurrently
 * deleted credential is the one non-error early return.
 */
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/quotawatch/backend/internal/adapters"
	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/internal/store"
	"github.com/quotawatch/backend/pkg/rabbitmq"
)

// CheckStore defines the database operations needed by the check workflow.
type CheckStore interface {
	FindCredentialByID(ctx context.Context, id int64) (*domain.Credential, error)
	FindPlatformByID(ctx context.Context, id int64) (*domain.Platform, error)
	RecordCheckResult(ctx context.Context, credentialID int64, balance float64, checkedAt time.Time) error
	FindRuleByCredentialID(ctx context.Context, credentialID int64) (*domain.NotificationRule, error)
}

// Decryptor recovers the plaintext secret from its stored form.
type Decryptor interface {
	Decrypt(ciphertext string) (string, error)
}

// AdapterResolver maps a platform adapter key to a ready adapter instance.
type AdapterResolver interface {
	Resolve(key, secret string, metadata map[string]any) (adapters.BalanceAdapter, error)
}

// CheckService runs check-credential jobs.
type CheckService struct {
	repo     CheckStore
	crypto   Decryptor
	registry AdapterResolver
	tasks    rabbitmq.Publisher
	logger   *slog.Logger
}

// NewCheckService creates the check workflow with its dependencies.
func NewCheckService(repo CheckStore, crypto Decryptor, registry AdapterResolver, tasks rabbitmq.Publisher, logger *slog.Logger) *CheckService {
	return &CheckService{
		repo:     repo,
		crypto:   crypto,
		registry: registry,
		tasks:    tasks,
		logger:   logger,
	}
}

// CheckCredential refreshes one credential's balance.
func (s *CheckService) CheckCredential(ctx context.Context, credentialID int64) error {
	cred, err := s.repo.FindCredentialByID(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		// Deleted while the job was queued; nothing to do.
		s.logger.Info("credential no longer exists, skipping check", "credential_id", credentialID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load credential %d: %w", credentialID, err)
	}

	platform, err := s.repo.FindPlatformByID(ctx, cred.PlatformID)
	if errors.Is(err, store.ErrNotFound) {
		s.logger.Info("platform no longer exists, skipping check",
			"credential_id", credentialID, "platform_id", cred.PlatformID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load platform %d: %w", cred.PlatformID, err)
	}

	secret, err := s.crypto.Decrypt(cred.EncryptedSecret)
	if err != nil {
		return err
	}

	adapter, err := s.registry.Resolve(platform.AdapterKey, secret, cred.Metadata)
	if err != nil {
		return err
	}

	result, err := adapter.FetchBalance(ctx)
	if err != nil {
		return err
	}

	checkedAt := time.Now().UTC()
	if err := s.repo.RecordCheckResult(ctx, credentialID, result.Balance, checkedAt); err != nil {
		return fmt.Errorf("persist check result for credential %d: %w", credentialID, err)
	}

	s.logger.Info("credential checked",
		"credential_id", credentialID,
		"platform", platform.Slug,
		"balance", result.Balance,
		"is_estimate", result.IsEstimate)

	rule, err := s.repo.FindRuleByCredentialID(ctx, credentialID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load notification rule for credential %d: %w", credentialID, err)
	}

	// Level-triggered: the alert fires on every check at or below the
	// threshold, using the balance just fetched.
	if result.Balance > rule.ThresholdAmount {
		return nil
	}

	task := domain.SendNotificationTask{
		CredentialID: credentialID,
		Balance:      result.Balance,
		Threshold:    rule.ThresholdAmount,
		Channel:      rule.Channel,
		Address:      rule.ChannelAddress,
	}
	if err := s.tasks.Publish(ctx, domain.TaskSendNotification, task); err != nil {
		return fmt.Errorf("enqueue notification for credential %d: %w", credentialID, err)
	}

	s.logger.Info("low balance notification enqueued",
		"credential_id", credentialID,
		"balance", result.Balance,
		"threshold", rule.ThresholdAmount)
	return nil
}
