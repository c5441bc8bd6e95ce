/**
 * @description
 * Typed error taxonomy for check and notification jobs. Consumers use these
 * types to decide whether a failed job should be redelivered: fetch and
 * delivery failures are transient, while configuration, decryption and
 * unknown-adapter failures cannot be fixed by retrying.
 */
package domain

import "fmt"

// ConfigurationError reports a missing or invalid required setting, such as
// an absent total_grant in credential metadata.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// DecryptionError reports ciphertext that is malformed or was produced under
// a different master key.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decryption failed: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

// UnknownAdapterError reports a platform whose adapter key is not registered.
type UnknownAdapterError struct {
	Key string
}

func (e *UnknownAdapterError) Error() string {
	return fmt.Sprintf("unknown adapter key: %q", e.Key)
}

// AdapterFetchError reports a network or parsing failure against an external
// platform. Retryable.
type AdapterFetchError struct {
	Platform string
	Err      error
}

func (e *AdapterFetchError) Error() string {
	return fmt.Sprintf("balance fetch failed for %s: %v", e.Platform, e.Err)
}

func (e *AdapterFetchError) Unwrap() error { return e.Err }

// NotificationDeliveryError reports a transport failure while delivering an
// alert. Retryable.
type NotificationDeliveryError struct {
	Channel string
	Err     error
}

func (e *NotificationDeliveryError) Error() string {
	return fmt.Sprintf("notification delivery failed over %s: %v", e.Channel, e.Err)
}

func (e *NotificationDeliveryError) Unwrap() error { return e.Err }
