package app

import (
	"context"
	"errors"
	"testing"

	"github.com/quotawatch/backend/internal/domain"
)

type enumeratorStub struct {
	ids []int64
	err error
}

func (s *enumeratorStub) ListCredentialIDs(ctx context.Context) ([]int64, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ids, nil
}

// failingPublisher fails publishes for the ids in failFor but records the rest.
type failingPublisher struct {
	failFor   map[int64]bool
	published []int64
}

func (p *failingPublisher) Publish(ctx context.Context, routingKey string, body interface{}) error {
	task := body.(domain.CheckCredentialTask)
	if p.failFor[task.CredentialID] {
		return errors.New("broker unavailable")
	}
	p.published = append(p.published, task.CredentialID)
	return nil
}

func (p *failingPublisher) Close() {}

func TestEnqueueAllChecks_OneTaskPerCredential(t *testing.T) {
	repo := &enumeratorStub{ids: []int64{1, 2, 3}}
	tasks := &publisherStub{}
	jobs := NewJobs(repo, tasks, discardLogger())

	jobs.EnqueueAllChecks()

	if len(tasks.published) != 3 {
		t.Fatalf("expected 3 check tasks, got %d", len(tasks.published))
	}
	for i, want := range []int64{1, 2, 3} {
		if tasks.published[i].routingKey != domain.TaskCheckCredential {
			t.Fatalf("unexpected routing key %q", tasks.published[i].routingKey)
		}
		task := tasks.published[i].body.(domain.CheckCredentialTask)
		if task.CredentialID != want {
			t.Fatalf("task %d carries credential %d, want %d", i, task.CredentialID, want)
		}
	}
}

func TestEnqueueAllChecks_OneFailureDoesNotBlockTheRest(t *testing.T) {
	repo := &enumeratorStub{ids: []int64{1, 2, 3, 4}}
	tasks := &failingPublisher{failFor: map[int64]bool{2: true}}
	jobs := NewJobs(repo, tasks, discardLogger())

	jobs.EnqueueAllChecks()

	if len(tasks.published) != 3 {
		t.Fatalf("expected 3 successful enqueues, got %d", len(tasks.published))
	}
	for _, id := range tasks.published {
		if id == 2 {
			t.Fatal("credential 2 should have failed to enqueue")
		}
	}
}

func TestEnqueueAllChecks_EnumerationFailureEnqueuesNothing(t *testing.T) {
	repo := &enumeratorStub{err: errors.New("db down")}
	tasks := &publisherStub{}
	jobs := NewJobs(repo, tasks, discardLogger())

	jobs.EnqueueAllChecks()

	if len(tasks.published) != 0 {
		t.Fatalf("expected no tasks, got %d", len(tasks.published))
	}
}

func TestEnqueueAllChecks_NoCredentials(t *testing.T) {
	jobs := NewJobs(&enumeratorStub{}, &publisherStub{}, discardLogger())
	jobs.EnqueueAllChecks()
}
