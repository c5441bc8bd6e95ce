/**
 * @description
 * Scheduled job implementations for the scheduler binary.
 */
package app

import (
	"context"
	"log/slog"

	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/pkg/rabbitmq"
)

// CredentialEnumerator defines the database operations needed by the fan-out.
type CredentialEnumerator interface {
	ListCredentialIDs(ctx context.Context) ([]int64, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	repo   CredentialEnumerator
	tasks  rabbitmq.Publisher
	logger *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(repo CredentialEnumerator, tasks rabbitmq.Publisher, logger *slog.Logger) *Jobs {
	return &Jobs{repo: repo, tasks: tasks, logger: logger}
}

// EnqueueAllChecks enumerates every monitored credential and enqueues one
// check job per id. Enqueues are independent: one failure never blocks the
// remaining credentials.
func (j *Jobs) EnqueueAllChecks() {
	j.logger.Info("starting balance check fan-out")
	ctx := context.Background()

	ids, err := j.repo.ListCredentialIDs(ctx)
	if err != nil {
		j.logger.Error("failed to enumerate credentials", "error", err)
		return
	}

	if len(ids) == 0 {
		j.logger.Info("no credentials to check")
		return
	}

	enqueued := 0
	for _, id := range ids {
		task := domain.CheckCredentialTask{CredentialID: id}
		if err := j.tasks.Publish(ctx, domain.TaskCheckCredential, task); err != nil {
			j.logger.Error("failed to enqueue check", "credential_id", id, "error", err)
			continue
		}
		enqueued++
	}

	j.logger.Info("balance check fan-out finished", "credentials", len(ids), "enqueued", enqueued)
}
