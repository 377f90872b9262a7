package order

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle state of an order
type Status string

const (
	StatusPending Status = "PENDING"
	StatusPaid    Status = "PAID"
)

// Alipay trade statuses delivered in async notifications
const (
	TradeSuccess      = "TRADE_SUCCESS"
	TradeFinished     = "TRADE_FINISHED"
	TradeWaitBuyerPay = "WAIT_BUYER_PAY"
	TradeClosed       = "TRADE_CLOSED"
)

var (
	// ErrDuplicateOrder is returned when creating an order whose id already exists
	ErrDuplicateOrder = errors.New("order: duplicate order id")

	// ErrUnknownOrder is returned when an order id is not in the store
	ErrUnknownOrder = errors.New("order: unknown order id")
)

// Order represents a single payment order.
// OrderID is immutable once created; Status moves PENDING -> PAID exactly
// once, and LicenseKey is assigned at that transition and never overwritten.
type Order struct {
	OrderID    string     `json:"orderId"`
	Amount     string     `json:"amount"`
	Subject    string     `json:"subject"`
	Status     Status     `json:"status"`
	LicenseKey string     `json:"licenseKey,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
}

// NewOrderID mints a collision-resistant order id of the form
// ORD_<unix-timestamp>_<8 random hex chars>.
func NewOrderID() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("order: random suffix: %w", err)
	}
	return fmt.Sprintf("ORD_%d_%s", time.Now().Unix(), hex.EncodeToString(suffix)), nil
}

// DeriveLicenseKey derives the license key issued for a paid order.
// Deterministic in the order id so redelivered notifications cannot mint
// a different key.
func DeriveLicenseKey(orderID string) string {
	tail := orderID
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	return "PRO-" + strings.ToUpper(tail)
}

// IsTerminalTradeStatus reports whether a gateway trade status means the
// payment is finally settled.
func IsTerminalTradeStatus(tradeStatus string) bool {
	return tradeStatus == TradeSuccess || tradeStatus == TradeFinished
}
