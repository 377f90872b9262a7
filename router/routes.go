package router

import (
	"github.com/go-chi/chi/v5"

	"github.com/payhub/alipay-broker/handler"
	"github.com/payhub/alipay-broker/infra/middle"
	v1 "github.com/payhub/alipay-broker/router/v1"

	// Import for side-effect registration
	_ "github.com/payhub/alipay-broker/provider/alipay"
)

func Routes(r chi.Router, paymentHandler *handler.PaymentHandler) {
	r.Route("/v1", func(r chi.Router) {
		// Add authentication middleware only to API routes
		r.Use(middle.AuthMiddleware())

		v1.Routes(r, paymentHandler)
	})
}
