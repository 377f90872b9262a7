package config

import (
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

type CKey string

type Config struct {
	Validator *validator.Validate
	SecretKey string
}

// AppConfig represents the application configuration
type AppConfig struct {
	Port             string
	BaseURL          string
	OpenSearchURL    string
	OpenSearchUser   string
	OpenSearchPass   string
	EnableLogging    bool
	LoggingLevel     string
	OrderDBPath      string
	ExtensionID      string
	LogRetentionDays int
}

// AlipayConfig holds the credentials and endpoints for the Alipay gateway
type AlipayConfig struct {
	AppID           string
	AppPrivateKey   string
	AlipayPublicKey string
	GatewayURL      string
	NotifyURL       string
}

var (
	instance             *Config
	appConfigInstance    *AppConfig
	alipayConfigInstance *AlipayConfig
)

func App() *Config {
	if instance == nil {
		instance = &Config{
			Validator: validator.New(),
			// the secret key will change every time the application is restarted.
			SecretKey: uuid.New().String(),
		}
	}
	return instance
}

// GetAppConfig returns the application configuration
func GetAppConfig() *AppConfig {
	if appConfigInstance == nil {
		appConfigInstance = &AppConfig{
			Port:             GetEnv("APP_PORT", "9999"),
			BaseURL:          GetEnv("APP_URL", "http://localhost:9999"),
			OpenSearchURL:    GetEnv("OPENSEARCH_URL", "http://localhost:9200"),
			OpenSearchUser:   GetEnv("OPENSEARCH_USER", ""),
			OpenSearchPass:   GetEnv("OPENSEARCH_PASSWORD", ""),
			EnableLogging:    GetBoolEnv("ENABLE_OPENSEARCH_LOGGING", false),
			LoggingLevel:     GetEnv("LOGGING_LEVEL", "info"),
			OrderDBPath:      GetEnv("ORDER_DB_PATH", ""),
			ExtensionID:      GetEnv("EXTENSION_ID", ""),
			LogRetentionDays: GetIntEnv("LOG_RETENTION_DAYS", 30),
		}
	}
	return appConfigInstance
}

// GetAlipayConfig returns the Alipay gateway configuration
func GetAlipayConfig() *AlipayConfig {
	if alipayConfigInstance == nil {
		baseURL := GetAppConfig().BaseURL
		alipayConfigInstance = &AlipayConfig{
			AppID:           GetEnv("ALIPAY_APP_ID", ""),
			AppPrivateKey:   GetEnv("ALIPAY_APP_PRIVATE_KEY", ""),
			AlipayPublicKey: GetEnv("ALIPAY_PUBLIC_KEY", ""),
			GatewayURL:      GetEnv("ALIPAY_GATEWAY_URL", "https://openapi.alipay.com/gateway.do"),
			NotifyURL:       GetEnv("ALIPAY_NOTIFY_URL", baseURL+"/notify/alipay"),
		}
	}
	return alipayConfigInstance
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetBoolEnv returns the boolean value of an environment variable or a default value
func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// GetIntEnv returns the integer value of an environment variable or a default value
func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
