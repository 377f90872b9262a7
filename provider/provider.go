package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Gateway acknowledgment bodies. The gateway treats anything other than the
// literal success string as a delivery failure and schedules a resend.
const (
	AckSuccess = "success"
	AckFailure = "fail"
)

var (
	// ErrSigning indicates the request could not be signed (malformed key
	// material or a rejected digest). Fatal to the enclosing request; a
	// malformed key will not become valid on retry.
	ErrSigning = errors.New("provider: signing failed")

	// ErrMalformedPayload indicates a notification is structurally invalid
	// (required fields missing) before any signature check was attempted.
	ErrMalformedPayload = errors.New("provider: malformed notification payload")
)

// PayURLRequest carries the business fields for one outbound order request
type PayURLRequest struct {
	OrderID string
	Amount  string
	Subject string
}

// Notification is the trusted view of a webhook payload, available only
// after signature verification succeeded
type Notification struct {
	OrderID     string
	TradeStatus string
	Raw         map[string]string
}

// ConfigField represents a required configuration field for a payment provider
type ConfigField struct {
	Key         string `json:"key"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

// PaymentProvider defines the interface a payment gateway integration must implement
type PaymentProvider interface {
	// Initialize sets up the provider with credentials and configuration
	Initialize(config map[string]string) error

	// GetRequiredConfig returns the configuration fields required for this provider
	GetRequiredConfig() []ConfigField

	// BuildPayURL serializes, signs and assembles the final gateway URL for
	// an order. Pure apart from reading the provider credentials.
	BuildPayURL(ctx context.Context, request PayURLRequest) (string, error)

	// VerifyNotification checks the gateway signature on a webhook payload.
	// The bool is the cryptographic verdict: false with a nil error is the
	// expected outcome for a tampered or corrupted signature. A non-nil
	// error means the payload was structurally unusable.
	VerifyNotification(payload map[string]string) (bool, *Notification, error)
}

// ProviderFactory is a function type that creates a new PaymentProvider
type ProviderFactory func() PaymentProvider

// ValidateConfigFields validates configuration against provided field definitions
func ValidateConfigFields(providerName string, config map[string]string, requiredFields []ConfigField) error {
	for _, field := range requiredFields {
		if !field.Required {
			continue
		}

		value, exists := config[field.Key]
		if !exists {
			return fmt.Errorf("%s: required field '%s' is missing", providerName, field.Key)
		}

		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s: required field '%s' cannot be empty", providerName, field.Key)
		}
	}

	return nil
}
