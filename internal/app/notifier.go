/**
 * @description
 * Notification dispatcher. One Notify call is one job: load the credential
 * for its display name, build the alert text, and deliver it over the rule's
 * channel. Email goes through one authenticated SMTP session; webhook goes
 * through one JSON POST with a bounded timeout. Transport failures surface
 * as NotificationDeliveryError so the queue can redeliver; an unrecognized
 * channel is logged and dropped because retrying bad configuration is
 * pointless.
 */
package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"time"

	"github.com/quotawatch/backend/internal/config"
	"github.com/quotawatch/backend/internal/domain"
	"github.com/quotawatch/backend/internal/store"
)

const webhookTimeout = 30 * time.Second

// NotifyStore defines the database operations needed by the dispatcher.
type NotifyStore interface {
	FindCredentialByID(ctx context.Context, id int64) (*domain.Credential, error)
}

// Mailer sends one plain-text message to one recipient.
type Mailer interface {
	Send(to, subject, body string) error
}

// Notifier delivers low-balance alerts.
type Notifier struct {
	repo       NotifyStore
	mailer     Mailer
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNotifier creates the dispatcher with its dependencies.
func NewNotifier(repo NotifyStore, mailer Mailer, logger *slog.Logger) *Notifier {
	return &Notifier{
		repo:       repo,
		mailer:     mailer,
		httpClient: &http.Client{Timeout: webhookTimeout},
		logger:     logger,
	}
}

// Notify delivers one alert described by the task payload.
func (n *Notifier) Notify(ctx context.Context, task domain.SendNotificationTask) error {
	cred, err := n.repo.FindCredentialByID(ctx, task.CredentialID)
	if errors.Is(err, store.ErrNotFound) {
		n.logger.Info("credential no longer exists, dropping notification", "credential_id", task.CredentialID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load credential %d: %w", task.CredentialID, err)
	}

	message := buildAlertMessage(cred.Name, task.Balance, task.Threshold)

	switch task.Channel {
	case domain.ChannelEmail:
		return n.sendEmail(task, message)
	case domain.ChannelWebhook:
		return n.sendWebhook(ctx, cred.Name, task, message)
	default:
		// Invalid configuration; a retry would fail the same way.
		n.logger.Warn("unknown notification channel, dropping alert",
			"credential_id", task.CredentialID, "channel", task.Channel)
		return nil
	}
}

func buildAlertMessage(name string, balance, threshold float64) string {
	return fmt.Sprintf(
		"Alert: API credential balance is low.\n\nCredential: %s\nCurrent balance: $%.2f\nThreshold: $%.2f\n\nPlease top up soon.",
		name, balance, threshold,
	)
}

func (n *Notifier) sendEmail(task domain.SendNotificationTask, message string) error {
	if err := n.mailer.Send(task.Address, "QuotaWatch: credential balance is low", message); err != nil {
		return &domain.NotificationDeliveryError{Channel: domain.ChannelEmail, Err: err}
	}
	n.logger.Info("email alert sent", "credential_id", task.CredentialID, "to", task.Address)
	return nil
}

type webhookPayload struct {
	CredentialID   int64   `json:"credential_id"`
	CredentialName string  `json:"credential_name"`
	Balance        float64 `json:"balance"`
	Threshold      float64 `json:"threshold"`
	Message        string  `json:"message"`
}

func (n *Notifier) sendWebhook(ctx context.Context, credentialName string, task domain.SendNotificationTask, message string) error {
	payload := webhookPayload{
		CredentialID:   task.CredentialID,
		CredentialName: credentialName,
		Balance:        task.Balance,
		Threshold:      task.Threshold,
		Message:        message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return &domain.NotificationDeliveryError{Channel: domain.ChannelWebhook, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, task.Address, bytes.NewReader(body))
	if err != nil {
		return &domain.NotificationDeliveryError{Channel: domain.ChannelWebhook, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return &domain.NotificationDeliveryError{Channel: domain.ChannelWebhook, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &domain.NotificationDeliveryError{
			Channel: domain.ChannelWebhook,
			Err:     fmt.Errorf("unexpected status %d from %s", resp.StatusCode, task.Address),
		}
	}

	n.logger.Info("webhook alert sent", "credential_id", task.CredentialID, "url", task.Address)
	return nil
}

// SMTPMailer delivers mail over one authenticated SMTP session per message.
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewSMTPMailer builds a mailer from the SMTP configuration block.
func NewSMTPMailer(cfg *config.Config) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		username: cfg.SMTPUser,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
	}
}

// Send opens a session, authenticates when credentials are configured,
// delivers the message, and closes the session.
func (m *SMTPMailer) Send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.from, to, subject, body)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)

	var auth smtp.Auth
	if m.username != "" && m.password != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	return smtp.SendMail(addr, auth, m.from, []string{to}, []byte(msg))
}
