/**
 * @description
 * Task payloads carried over the work queue. Two job kinds exist:
 * check-credential and send-notification. Payloads are JSON-encoded and must
 * stay backward compatible because redelivered messages may be old.
 */
package domain

// Routing keys for the task exchange.
const (
	TaskCheckCredential  = "task.check_credential"
	TaskSendNotification = "task.send_notification"
)

// CheckCredentialTask asks a worker to refresh one credential's balance.
type CheckCredentialTask struct {
	CredentialID int64 `json:"credential_id"`
}

// SendNotificationTask asks a worker to deliver one low-balance alert.
// Balance and threshold are snapshotted at enqueue time so the alert reflects
// the check that triggered it, not whatever the row holds at delivery time.
type SendNotificationTask struct {
	CredentialID int64   `json:"credential_id"`
	Balance      float64 `json:"balance"`
	Threshold    float64 `json:"threshold"`
	Channel      string  `json:"channel"`
	Address      string  `json:"address"`
}
