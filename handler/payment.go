package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/payhub/alipay-broker/infra/logger"
	"github.com/payhub/alipay-broker/infra/middle"
	"github.com/payhub/alipay-broker/infra/response"
	"github.com/payhub/alipay-broker/order"
	"github.com/payhub/alipay-broker/provider"
)

// PaymentServiceInterface defines the interface for payment operations
type PaymentServiceInterface interface {
	CreateOrder(ctx context.Context, providerName string, request provider.OrderRequest) (*provider.CreateOrderResponse, error)
	OrderStatus(orderID string) (*order.Order, error)
	HandleNotification(ctx context.Context, providerName string, payload map[string]string) (*provider.NotificationOutcome, error)
}

// PaymentHandler handles payment related HTTP requests
type PaymentHandler struct {
	paymentService PaymentServiceInterface
	validate       *validator.Validate
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentService PaymentServiceInterface, validate *validator.Validate) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		validate:       validate,
	}
}

// CreateOrder handles order creation requests and returns the signed pay URL
func (h *PaymentHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var req provider.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		response.Error(w, http.StatusBadRequest, "Validation error", err)
		return
	}

	providerName := chi.URLParam(r, "provider")

	resp, err := h.paymentService.CreateOrder(ctx, providerName, req)
	if err != nil {
		logger.Error("Order creation failed", err, logger.LogContext{
			Fields: map[string]any{"client_ip": middle.GetClientIP(r)},
		})
		response.Error(w, http.StatusInternalServerError, "Order creation failed", err)
		return
	}

	response.Success(w, http.StatusCreated, "Order created", resp)
}

// GetOrderStatus handles status polls for an order
func (h *PaymentHandler) GetOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")
	if orderID == "" {
		response.Error(w, http.StatusBadRequest, "Missing order ID", nil)
		return
	}

	o, err := h.paymentService.OrderStatus(orderID)
	if err != nil {
		if errors.Is(err, order.ErrUnknownOrder) {
			response.Error(w, http.StatusNotFound, "Order not found", err)
			return
		}
		response.Error(w, http.StatusInternalServerError, "Failed to get order status", err)
		return
	}

	response.Success(w, http.StatusOK, "Order status retrieved", o)
}

// HandleNotify receives the gateway's async payment notification. The body
// of the response is the protocol-level acknowledgment: the literal string
// "success" is written only after the state transition (or its legitimate
// no-op) has completed; anything else makes the gateway resend.
func (h *PaymentHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	providerName := chi.URLParam(r, "provider")

	payload, err := parseNotifyPayload(r)
	if err != nil {
		logger.Warn("Unparseable notification body", logger.LogContext{
			Fields: map[string]any{"client_ip": middle.GetClientIP(r), "error": err.Error()},
		})
		response.WriteText(w, http.StatusOK, provider.AckFailure)
		return
	}

	outcome, err := h.paymentService.HandleNotification(ctx, providerName, payload)
	if err != nil {
		logger.Warn("Notification rejected", logger.LogContext{
			OrderID: payload["out_trade_no"],
			Fields: map[string]any{
				"client_ip":    middle.GetClientIP(r),
				"trade_status": payload["trade_status"],
				"error":        err.Error(),
			},
		})
	}

	response.WriteText(w, http.StatusOK, outcome.Ack)
}

// parseNotifyPayload extracts the notification fields. Alipay posts
// form-urlencoded bodies; JSON is accepted for manual testing.
func parseNotifyPayload(r *http.Request) (map[string]string, error) {
	contentType := r.Header.Get("Content-Type")

	if contentType != "" && !strings.HasPrefix(contentType, "application/x-www-form-urlencoded") {
		payload := make(map[string]string)
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	payload := make(map[string]string)
	for key, values := range r.Form {
		if len(values) > 0 {
			payload[key] = values[0]
		}
	}
	return payload, nil
}
