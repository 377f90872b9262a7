package v1

import (
	"github.com/go-chi/chi/v5"

	"github.com/payhub/alipay-broker/handler"
)

// Routes registers all API routes
func Routes(r chi.Router, paymentHandler *handler.PaymentHandler) {
	// Order routes
	r.Route("/orders", func(r chi.Router) {
		// General order routes (uses default provider)
		r.Post("/", paymentHandler.CreateOrder)
		r.Get("/{orderID}", paymentHandler.GetOrderStatus)

		// Provider-specific order creation
		r.Post("/{provider}", paymentHandler.CreateOrder)
	})
}
