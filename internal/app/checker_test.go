package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/quotawatch/backend/internal/adapters"
	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type checkStoreStub struct {
	credential *domain.Credential
	platform   *domain.Platform
	rule       *domain.NotificationRule

	recorded        []float64
	recordErr       error
	ruleLookupCalls int
}

func (s *checkStoreStub) FindCredentialByID(ctx context.Context, id int64) (*domain.Credential, error) {
	if s.credential == nil {
		return nil, store.ErrNotFound
	}
	return s.credential, nil
}

func (s *checkStoreStub) FindPlatformByID(ctx context.Context, id int64) (*domain.Platform, error) {
	if s.platform == nil {
		return nil, store.ErrNotFound
	}
	return s.platform, nil
}

func (s *checkStoreStub) RecordCheckResult(ctx context.Context, credentialID int64, balance float64, checkedAt time.Time) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.recorded = append(s.recorded, balance)
	return nil
}

func (s *checkStoreStub) FindRuleByCredentialID(ctx context.Context, credentialID int64) (*domain.NotificationRule, error) {
	s.ruleLookupCalls++
	if s.rule == nil {
		return nil, store.ErrNotFound
	}
	return s.rule, nil
}

type publisherStub struct {
	published []publishedTask
	err       error
}

type publishedTask struct {
	routingKey string
	body       interface{}
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, publishedTask{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherStub) Close() {}

type decryptorStub struct {
	plaintext string
	err       error
}

func (d *decryptorStub) Decrypt(ciphertext string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return d.plaintext, nil
}

type adapterStub struct {
	result domain.BalanceFetchResult
	err    error
}

func (a *adapterStub) FetchBalance(ctx context.Context) (domain.BalanceFetchResult, error) {
	return a.result, a.err
}

type resolverStub struct {
	adapter adapters.BalanceAdapter
	err     error

	gotKey    string
	gotSecret string
}

func (r *resolverStub) Resolve(key, secret string, metadata map[string]any) (adapters.BalanceAdapter, error) {
	r.gotKey = key
	r.gotSecret = secret
	if r.err != nil {
		return nil, r.err
	}
	return r.adapter, nil
}

func testCredential() *domain.Credential {
	return &domain.Credential{
		ID:              7,
		Name:            "prod key",
		EncryptedSecret: "ciphertext",
		PlatformID:      1,
		UserID:          1,
	}
}

func testPlatform() *domain.Platform {
	return &domain.Platform{ID: 1, Name: "OpenRouter", Slug: "openrouter", AdapterKey: "openrouter"}
}

func TestCheckCredential_MissingCredentialIsNotAnError(t *testing.T) {
	repo := &checkStoreStub{}
	tasks := &publisherStub{}
	svc := NewCheckService(repo, &decryptorStub{}, &resolverStub{}, tasks, discardLogger())

	if err := svc.CheckCredential(context.Background(), 99); err != nil {
		t.Fatalf("expected nil for deleted credential, got %v", err)
	}
	if len(tasks.published) != 0 {
		t.Fatal("expected no tasks for deleted credential")
	}
}

func TestCheckCredential_MissingPlatformIsNotAnError(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential()}
	svc := NewCheckService(repo, &decryptorStub{}, &resolverStub{}, &publisherStub{}, discardLogger())

	if err := svc.CheckCredential(context.Background(), 7); err != nil {
		t.Fatalf("expected nil for missing platform, got %v", err)
	}
}

func TestCheckCredential_DecryptionErrorPropagates(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform()}
	decErr := &domain.DecryptionError{Err: errors.New("key rotated")}
	svc := NewCheckService(repo, &decryptorStub{err: decErr}, &resolverStub{}, &publisherStub{}, discardLogger())

	err := svc.CheckCredential(context.Background(), 7)
	var got *domain.DecryptionError
	if !errors.As(err, &got) {
		t.Fatalf("expected DecryptionError, got %v", err)
	}
	if len(repo.recorded) != 0 {
		t.Fatal("expected no persistence after decryption failure")
	}
}

func TestCheckCredential_UnknownAdapterPropagates(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform()}
	resolver := &resolverStub{err: &domain.UnknownAdapterError{Key: "openrouter"}}
	svc := NewCheckService(repo, &decryptorStub{plaintext: "sk"}, resolver, &publisherStub{}, discardLogger())

	err := svc.CheckCredential(context.Background(), 7)
	var got *domain.UnknownAdapterError
	if !errors.As(err, &got) {
		t.Fatalf("expected UnknownAdapterError, got %v", err)
	}
}

func TestCheckCredential_FetchErrorPropagatesWithoutPersistence(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform()}
	resolver := &resolverStub{adapter: &adapterStub{err: &domain.AdapterFetchError{Platform: "openrouter", Err: errors.New("502")}}}
	svc := NewCheckService(repo, &decryptorStub{plaintext: "sk"}, resolver, &publisherStub{}, discardLogger())

	err := svc.CheckCredential(context.Background(), 7)
	var got *domain.AdapterFetchError
	if !errors.As(err, &got) {
		t.Fatalf("expected AdapterFetchError, got %v", err)
	}
	if len(repo.recorded) != 0 {
		t.Fatal("expected no persistence after fetch failure")
	}
	if repo.ruleLookupCalls != 0 {
		t.Fatal("expected no rule lookup after fetch failure")
	}
}

func TestCheckCredential_PersistsAndUsesDecryptedSecret(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform()}
	resolver := &resolverStub{adapter: &adapterStub{result: domain.BalanceFetchResult{Balance: 55.5}}}
	svc := NewCheckService(repo, &decryptorStub{plaintext: "sk-plain"}, resolver, &publisherStub{}, discardLogger())

	if err := svc.CheckCredential(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolver.gotKey != "openrouter" || resolver.gotSecret != "sk-plain" {
		t.Fatalf("adapter resolved with key=%q secret=%q", resolver.gotKey, resolver.gotSecret)
	}
	if len(repo.recorded) != 1 || repo.recorded[0] != 55.5 {
		t.Fatalf("expected one recorded balance of 55.5, got %v", repo.recorded)
	}
}

func TestCheckCredential_EnqueuesNotificationAtOrBelowThreshold(t *testing.T) {
	rule := &domain.NotificationRule{CredentialID: 7, ThresholdAmount: 10, Channel: domain.ChannelEmail, ChannelAddress: "me@example.com"}

	cases := []struct {
		name        string
		balance     float64
		wantEnqueue bool
	}{
		{"below threshold", 4.5, true},
		{"exactly at threshold", 10, true},
		{"above threshold", 10.01, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &checkStoreStub{credential: testCredential(), platform: testPlatform(), rule: rule}
			tasks := &publisherStub{}
			resolver := &resolverStub{adapter: &adapterStub{result: domain.BalanceFetchResult{Balance: tc.balance}}}
			svc := NewCheckService(repo, &decryptorStub{plaintext: "sk"}, resolver, tasks, discardLogger())

			if err := svc.CheckCredential(context.Background(), 7); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if !tc.wantEnqueue {
				if len(tasks.published) != 0 {
					t.Fatalf("expected no notification, got %d", len(tasks.published))
				}
				return
			}

			if len(tasks.published) != 1 {
				t.Fatalf("expected exactly one notification, got %d", len(tasks.published))
			}
			if tasks.published[0].routingKey != domain.TaskSendNotification {
				t.Fatalf("unexpected routing key %q", tasks.published[0].routingKey)
			}
			task := tasks.published[0].body.(domain.SendNotificationTask)
			if task.Balance != tc.balance || task.Threshold != 10 {
				t.Fatalf("notification carries balance=%v threshold=%v", task.Balance, task.Threshold)
			}
			if task.Channel != domain.ChannelEmail || task.Address != "me@example.com" {
				t.Fatalf("notification carries channel=%q address=%q", task.Channel, task.Address)
			}
		})
	}
}

func TestCheckCredential_NoRuleMeansNoNotification(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform()}
	tasks := &publisherStub{}
	resolver := &resolverStub{adapter: &adapterStub{result: domain.BalanceFetchResult{Balance: 0.01}}}
	svc := NewCheckService(repo, &decryptorStub{plaintext: "sk"}, resolver, tasks, discardLogger())

	if err := svc.CheckCredential(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks.published) != 0 {
		t.Fatal("expected no notification without a rule")
	}
}

func TestCheckCredential_PersistFailurePropagates(t *testing.T) {
	repo := &checkStoreStub{credential: testCredential(), platform: testPlatform(), recordErr: errors.New("db down")}
	resolver := &resolverStub{adapter: &adapterStub{result: domain.BalanceFetchResult{Balance: 5}}}
	svc := NewCheckService(repo, &decryptorStub{plaintext: "sk"}, resolver, &publisherStub{}, discardLogger())

	if err := svc.CheckCredential(context.Background(), 7); err == nil {
		t.Fatal("expected persistence error to propagate")
	}
	if repo.ruleLookupCalls != 0 {
		t.Fatal("expected no rule lookup after persistence failure")
	}
}
