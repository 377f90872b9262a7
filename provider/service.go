package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/payhub/alipay-broker/infra/logger"
	"github.com/payhub/alipay-broker/infra/opensearch"
	"github.com/payhub/alipay-broker/order"
)

// OrderRequest is the client-facing request to create a payment order
type OrderRequest struct {
	Amount  string `json:"amount" validate:"required,amount"`
	Subject string `json:"subject" validate:"required,min=1,max=256"`
}

// CreateOrderResponse is returned to the client after a successful order creation
type CreateOrderResponse struct {
	OrderID string `json:"orderId"`
	PayURL  string `json:"payUrl"`
}

// NotificationOutcome describes how an inbound webhook was resolved. Ack is
// the literal body to return to the gateway; it is AckSuccess only after the
// state transition (or its legitimate no-op) has completed.
type NotificationOutcome struct {
	Ack         string
	OrderID     string
	TradeStatus string
	Order       *order.Order
	Transition  bool
}

// PaymentService wires the payment provider, the order store and event
// logging together. It owns the order lifecycle: only its notification path
// may move an order to PAID, and the creation path only inserts PENDING rows.
type PaymentService struct {
	providers       map[string]PaymentProvider
	defaultProvider string
	store           order.Store
	events          *opensearch.Logger
	mu              sync.RWMutex
}

// NewPaymentService creates a new payment service around an order store
func NewPaymentService(store order.Store, events *opensearch.Logger) *PaymentService {
	return &PaymentService{
		providers: make(map[string]PaymentProvider),
		store:     store,
		events:    events,
	}
}

// AddProvider creates, initializes and registers a provider by name
func (s *PaymentService) AddProvider(name string, config map[string]string) error {
	p, err := CreateProvider(name)
	if err != nil {
		return err
	}

	if err := p.Initialize(config); err != nil {
		return fmt.Errorf("failed to initialize provider %s: %w", name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers[name] = p
	if s.defaultProvider == "" {
		s.defaultProvider = name
	}

	return nil
}

// SetDefaultProvider sets the provider used when no name is given
func (s *PaymentService) SetDefaultProvider(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[name]; !exists {
		return fmt.Errorf("provider %s is not added", name)
	}
	s.defaultProvider = name

	return nil
}

func (s *PaymentService) getProvider(name string) (PaymentProvider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if name == "" {
		name = s.defaultProvider
	}

	p, exists := s.providers[name]
	if !exists {
		return nil, fmt.Errorf("provider %s is not added", name)
	}

	return p, nil
}

// CreateOrder mints a fresh order id, records the PENDING order and builds
// the signed gateway pay URL. If the URL cannot be built the order record is
// not exposed to the caller; the creation either fully succeeds or fails.
func (s *PaymentService) CreateOrder(ctx context.Context, providerName string, request OrderRequest) (*CreateOrderResponse, error) {
	p, err := s.getProvider(providerName)
	if err != nil {
		return nil, err
	}

	orderID, err := order.NewOrderID()
	if err != nil {
		return nil, err
	}

	if _, err := s.store.Create(orderID, request.Amount, request.Subject); err != nil {
		return nil, fmt.Errorf("failed to create order record: %w", err)
	}

	payURL, err := p.BuildPayURL(ctx, PayURLRequest{
		OrderID: orderID,
		Amount:  request.Amount,
		Subject: request.Subject,
	})
	if err != nil {
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:   opensearch.EventOrderCreateError,
			OrderID: orderID,
			Amount:  request.Amount,
			Error:   err.Error(),
		})
		return nil, err
	}

	logger.Info("Order created", logger.LogContext{
		OrderID: orderID,
		Fields:  map[string]any{"amount": request.Amount, "subject": request.Subject},
	})
	s.logEvent(ctx, opensearch.PaymentEvent{
		Event:   opensearch.EventOrderCreated,
		OrderID: orderID,
		Amount:  request.Amount,
	})

	return &CreateOrderResponse{
		OrderID: orderID,
		PayURL:  payURL,
	}, nil
}

// OrderStatus returns the current order record for the status poll
func (s *PaymentService) OrderStatus(orderID string) (*order.Order, error) {
	return s.store.Get(orderID)
}

// HandleNotification verifies an inbound webhook and drives the order
// lifecycle. Verification is a total gate: no order state is touched before
// the signature check passes. The returned outcome always carries an ack
// body, AckFailure for every rejected path.
func (s *PaymentService) HandleNotification(ctx context.Context, providerName string, payload map[string]string) (*NotificationOutcome, error) {
	rejected := &NotificationOutcome{Ack: AckFailure}

	p, err := s.getProvider(providerName)
	if err != nil {
		return rejected, err
	}

	verified, notification, err := p.VerifyNotification(payload)
	if err != nil {
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event: opensearch.EventNotifyRejected,
			Error: err.Error(),
		})
		return rejected, err
	}
	if !verified {
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:       opensearch.EventNotifyRejected,
			OrderID:     payload["out_trade_no"],
			TradeStatus: payload["trade_status"],
		})
		return rejected, errors.New("notification signature verification failed")
	}

	outcome := &NotificationOutcome{
		OrderID:     notification.OrderID,
		TradeStatus: notification.TradeStatus,
	}

	if !order.IsTerminalTradeStatus(notification.TradeStatus) {
		// Authentic but non-terminal (e.g. WAIT_BUYER_PAY): no transition,
		// ack so the gateway stops redelivering this event
		o, err := s.store.Get(notification.OrderID)
		if err != nil {
			return rejected, err
		}
		outcome.Ack = AckSuccess
		outcome.Order = o
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:       opensearch.EventNotifyVerified,
			OrderID:     notification.OrderID,
			TradeStatus: notification.TradeStatus,
			Verified:    true,
		})
		return outcome, nil
	}

	o, changed, err := s.store.TransitionToPaid(notification.OrderID, order.DeriveLicenseKey)
	if err != nil {
		// Unknown order ids are rejected without creating any record
		return rejected, err
	}

	outcome.Ack = AckSuccess
	outcome.Order = o
	outcome.Transition = changed

	if changed {
		logger.Info("Order paid", logger.LogContext{
			OrderID: o.OrderID,
			Fields:  map[string]any{"trade_status": notification.TradeStatus},
		})
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:       opensearch.EventOrderPaid,
			OrderID:     o.OrderID,
			TradeStatus: notification.TradeStatus,
			Verified:    true,
		})
	} else {
		logger.Info("Duplicate terminal notification ignored", logger.LogContext{
			OrderID: o.OrderID,
		})
		s.logEvent(ctx, opensearch.PaymentEvent{
			Event:       opensearch.EventNotifyReplayed,
			OrderID:     o.OrderID,
			TradeStatus: notification.TradeStatus,
			Verified:    true,
		})
	}

	return outcome, nil
}

func (s *PaymentService) logEvent(ctx context.Context, event opensearch.PaymentEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.LogEvent(ctx, event); err != nil {
		logger.Warn("Failed to index payment event", logger.LogContext{
			Fields: map[string]any{"event": event.Event, "error": err.Error()},
		})
	}
}
