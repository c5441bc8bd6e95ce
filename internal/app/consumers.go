/**
 * @description
 * Queue consumers for the two task kinds. Each consumer decodes the JSON
 * payload, runs the corresponding workflow, and maps the result onto the
 * broker acknowledgment: success acks, transient failures requeue for
 * redelivery, and failures no retry can fix are dropped. A malformed payload
 * is dropped for the same reason.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/pkg/rabbitmq"
)

// jobTimeout bounds one job end to end; individual network calls carry their
// own 30-second limits underneath it.
const jobTimeout = 2 * time.Minute

// classify maps a job error onto the broker acknowledgment.
func classify(err error) rabbitmq.Outcome {
	var cfgErr *domain.ConfigurationError
	var decErr *domain.DecryptionError
	var unkErr *domain.UnknownAdapterError
	if errors.As(err, &cfgErr) || errors.As(err, &decErr) || errors.As(err, &unkErr) {
		return rabbitmq.Drop
	}
	// Fetch, delivery and storage failures are worth redelivering.
	return rabbitmq.Retry
}

// CheckConsumer feeds check-credential tasks into the check workflow.
type CheckConsumer struct {
	checker *CheckService
	logger  *slog.Logger
}

// NewCheckConsumer creates a consumer for the check queue.
func NewCheckConsumer(checker *CheckService, logger *slog.Logger) *CheckConsumer {
	return &CheckConsumer{checker: checker, logger: logger}
}

// HandleMessage processes one check-credential delivery.
func (c *CheckConsumer) HandleMessage(body []byte) rabbitmq.Outcome {
	var task domain.CheckCredentialTask
	if err := json.Unmarshal(body, &task); err != nil {
		c.logger.Error("check consumer: malformed payload", "error", err)
		return rabbitmq.Drop
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := c.checker.CheckCredential(ctx, task.CredentialID); err != nil {
		outcome := classify(err)
		c.logger.Error("check job failed",
			"credential_id", task.CredentialID,
			"retryable", outcome == rabbitmq.Retry,
			"error", err)
		return outcome
	}
	return rabbitmq.Ack
}

// NotificationConsumer feeds send-notification tasks into the dispatcher.
type NotificationConsumer struct {
	notifier *Notifier
	logger   *slog.Logger
}

// NewNotificationConsumer creates a consumer for the notification queue.
func NewNotificationConsumer(notifier *Notifier, logger *slog.Logger) *NotificationConsumer {
	return &NotificationConsumer{notifier: notifier, logger: logger}
}

// HandleMessage processes one send-notification delivery.
func (c *NotificationConsumer) HandleMessage(body []byte) rabbitmq.Outcome {
	var task domain.SendNotificationTask
	if err := json.Unmarshal(body, &task); err != nil {
		c.logger.Error("notification consumer: malformed payload", "error", err)
		return rabbitmq.Drop
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := c.notifier.Notify(ctx, task); err != nil {
		outcome := classify(err)
		c.logger.Error("notification job failed",
			"credential_id", task.CredentialID,
			"channel", task.Channel,
			"retryable", outcome == rabbitmq.Retry,
			"error", err)
		return outcome
	}
	return rabbitmq.Ack
}
