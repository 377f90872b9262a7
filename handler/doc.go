// Package handler provides HTTP request handlers for the Alipay order broker.
//
// The handlers bridge the HTTP layer with the payment service: order
// creation returns a signed gateway pay URL, status polls report the
// order lifecycle, and the notify endpoint answers the gateway's async
// payment notifications.
//
// # Payment Handler
//
// The PaymentHandler manages order-related HTTP requests:
//
//	paymentHandler := handler.NewPaymentHandler(paymentService, validator)
//
//	// Routes
//	r.Post("/v1/orders", paymentHandler.CreateOrder)
//	r.Get("/v1/orders/{orderID}", paymentHandler.GetOrderStatus)
//	r.Post("/notify/{provider}", paymentHandler.HandleNotify)
//
// The notify endpoint is special: its response body is the gateway
// acknowledgment protocol. It writes the literal string "success" once
// the notification has been verified and the order state settled, and
// "fail" for anything else. The gateway retries until it reads
// "success", so the handler never acks before the work is durable.
//
// # Health Handler
//
// The HealthHandler reports order store reachability, registered
// providers and runtime statistics:
//
//	healthHandler := handler.NewHealthHandler(store, openSearchEnabled)
//	r.Get("/health", healthHandler.CheckHealth)
package handler
