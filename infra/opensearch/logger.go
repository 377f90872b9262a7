package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"
)

// Payment event types
const (
	EventOrderCreated     = "order_created"
	EventNotifyVerified   = "notify_verified"
	EventNotifyRejected   = "notify_rejected"
	EventOrderPaid        = "order_paid"
	EventNotifyReplayed   = "notify_replayed"
	EventOrderCreateError = "order_create_error"
)

// PaymentEvent represents a structured payment event document
type PaymentEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Event       string    `json:"event"`
	OrderID     string    `json:"order_id,omitempty"`
	TradeStatus string    `json:"trade_status,omitempty"`
	RequestID   string    `json:"request_id"`
	ClientIP    string    `json:"client_ip,omitempty"`
	Amount      string    `json:"amount,omitempty"`
	Verified    bool      `json:"verified,omitempty"`
	Error       string    `json:"error,omitempty"`
}

// Logger handles OpenSearch event logging operations
type Logger struct {
	client *Client
}

// NewLogger creates a new OpenSearch logger
func NewLogger(client *Client) *Logger {
	return &Logger{
		client: client,
	}
}

// LogEvent indexes a payment event document
func (l *Logger) LogEvent(ctx context.Context, event PaymentEvent) error {
	if l == nil || !l.client.IsEnabled() {
		return nil // Logging disabled
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.RequestID == "" {
		event.RequestID = uuid.New().String()
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	req := opensearchapi.IndexRequest{
		Index: PaymentIndex,
		Body:  bytes.NewReader(eventJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return fmt.Errorf("failed to index event: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("opensearch error: %s", res.String())
	}

	return nil
}

// SearchEvents searches payment events for an order, newest first
func (l *Logger) SearchEvents(ctx context.Context, orderID string, size int) ([]PaymentEvent, error) {
	if l == nil || !l.client.IsEnabled() {
		return nil, fmt.Errorf("logging is disabled")
	}

	if size <= 0 || size > 1000 {
		size = 100
	}

	searchQuery := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"order_id": orderID},
		},
		"sort": []map[string]any{
			{"timestamp": map[string]string{"order": "desc"}},
		},
		"size": size,
	}

	queryJSON, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	req := opensearchapi.SearchRequest{
		Index: []string{PaymentIndex},
		Body:  bytes.NewReader(queryJSON),
	}

	res, err := req.Do(ctx, l.client.GetClient())
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("opensearch error: %s", res.String())
	}

	var result struct {
		Hits struct {
			Hits []struct {
				Source PaymentEvent `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	events := make([]PaymentEvent, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		events = append(events, hit.Source)
	}

	return events, nil
}
