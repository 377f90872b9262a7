package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/payhub/alipay-broker/handler"
	"github.com/payhub/alipay-broker/infra/config"
	"github.com/payhub/alipay-broker/infra/logger"
	"github.com/payhub/alipay-broker/infra/middle"
	"github.com/payhub/alipay-broker/infra/opensearch"
	"github.com/payhub/alipay-broker/infra/response"
	"github.com/payhub/alipay-broker/infra/validate"
	"github.com/payhub/alipay-broker/order"
	"github.com/payhub/alipay-broker/provider"
	"github.com/payhub/alipay-broker/router"

	// Import for side-effect registration
	_ "github.com/payhub/alipay-broker/provider/alipay"
)

var (
	PORT             string
	openSearchLogger *opensearch.Logger
)

func init() {
	// Load Env; a missing .env file is fine when variables come from the process environment
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	// init conf
	_ = config.App()
	validate.CustomValidate()

	PORT = config.GetEnv("APP_PORT", "9999")

	// Fail fast on missing gateway credentials: a broker that cannot sign
	// or verify must not accept traffic
	requiredEnvVars := []string{"ALIPAY_APP_ID", "ALIPAY_APP_PRIVATE_KEY", "ALIPAY_PUBLIC_KEY"}
	for _, name := range requiredEnvVars {
		if os.Getenv(name) == "" {
			log.Fatalf("Missing required environment variable: %s", name)
		}
	}

	// Initialize OpenSearch client and logger
	cfg := config.GetAppConfig()
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}
	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	appConfig := config.GetAppConfig()

	// Order store: SQLite when a path is configured, in-memory otherwise
	var store order.Store
	if appConfig.OrderDBPath != "" {
		sqliteStore, err := order.NewSQLiteStore(appConfig.OrderDBPath)
		if err != nil {
			log.Fatalf("Failed to open order database %s: %v", appConfig.OrderDBPath, err)
		}
		defer sqliteStore.Close()
		store = sqliteStore
		log.Printf("Order store: sqlite (%s)", appConfig.OrderDBPath)
	} else {
		store = order.NewMemoryStore()
		log.Println("Order store: in-memory (orders are lost on restart)")
	}

	// Payment service with the Alipay provider
	paymentService := provider.NewPaymentService(store, openSearchLogger)

	alipayConfig := config.GetAlipayConfig()
	if err := paymentService.AddProvider("alipay", map[string]string{
		"appId":           alipayConfig.AppID,
		"appPrivateKey":   alipayConfig.AppPrivateKey,
		"alipayPublicKey": alipayConfig.AlipayPublicKey,
		"gatewayUrl":      alipayConfig.GatewayURL,
		"notifyUrl":       alipayConfig.NotifyURL,
	}); err != nil {
		log.Fatalf("Failed to register alipay provider: %v", err)
	}
	if err := paymentService.SetDefaultProvider("alipay"); err != nil {
		log.Fatalf("Failed to set default provider: %v", err)
	}
	log.Println("Registered payment provider: alipay")

	// Handlers
	paymentHandler := handler.NewPaymentHandler(paymentService, config.App().Validator)
	healthHandler := handler.NewHealthHandler(store, openSearchLogger != nil)

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter()
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware())

	// CORS: lock the API down to the extension when its ID is configured
	allowedOrigins := []string{"*"}
	if appConfig.ExtensionID != "" {
		allowedOrigins = []string{"chrome-extension://" + appConfig.ExtensionID}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: false,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Health check endpoint (no auth required)
	r.Get("/health", healthHandler.CheckHealth)

	// Notification routes for payment gateways (no auth required; the
	// signature check inside the handler is the authentication)
	r.Route("/notify", func(r chi.Router) {
		r.Post("/{provider}", paymentHandler.HandleNotify)
	})

	// API routes with authentication
	router.Routes(r, paymentHandler)

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Code: http.StatusNotFound, Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", PORT),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	// Run the HTTP server in a goroutine
	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", PORT)

	// Block until a signal is received
	<-ctx.Done()

	log.Println("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
