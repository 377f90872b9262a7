package handler

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/payhub/alipay-broker/infra/response"
	"github.com/payhub/alipay-broker/order"
	"github.com/payhub/alipay-broker/provider"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store             order.Store
	openSearchEnabled bool
	startTime         time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status    string                    `json:"status"`
	Version   string                    `json:"version"`
	Timestamp time.Time                 `json:"timestamp"`
	Uptime    string                    `json:"uptime"`
	Store     *StoreHealth              `json:"store"`
	Providers []string                  `json:"providers"`
	System    *SystemHealth             `json:"system"`
	Services  map[string]*ServiceHealth `json:"services"`
}

// StoreHealth represents order store health status
type StoreHealth struct {
	Status       string        `json:"status"`
	Reachable    bool          `json:"reachable"`
	ResponseTime time.Duration `json:"response_time_ms"`
	Error        string        `json:"error,omitempty"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Alloc      string `json:"alloc"`
	Sys        string `json:"sys"`
	GCRuns     uint32 `json:"gc_runs"`
	GoRoutines int    `json:"goroutines"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status      string `json:"status"`
	Healthy     bool   `json:"healthy"`
	Description string `json:"description,omitempty"`
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store order.Store, openSearchEnabled bool) *HealthHandler {
	return &HealthHandler{
		store:             store,
		openSearchEnabled: openSearchEnabled,
		startTime:         time.Now(),
	}
}

// CheckHealth reports store reachability, registered providers and runtime stats
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	health := &HealthStatus{
		Version:   "1.0.0",
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).String(),
		Store:     h.checkStoreHealth(),
		Providers: provider.GetProviderNames(),
		System:    h.checkSystemHealth(),
		Services:  h.checkServicesHealth(),
	}

	health.Status = "healthy"
	statusCode := http.StatusOK
	if !health.Store.Reachable {
		health.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

// checkStoreHealth probes the order store with a lookup that is expected
// to miss; anything other than ErrUnknownOrder means the store is broken
func (h *HealthHandler) checkStoreHealth() *StoreHealth {
	storeHealth := &StoreHealth{Status: "unknown"}

	if h.store == nil {
		storeHealth.Status = "not_configured"
		storeHealth.Error = "Order store not configured"
		return storeHealth
	}

	start := time.Now()
	_, err := h.store.Get("ORD_healthcheck_probe")
	storeHealth.ResponseTime = time.Since(start)

	if err != nil && !errors.Is(err, order.ErrUnknownOrder) {
		storeHealth.Status = "unhealthy"
		storeHealth.Error = err.Error()
		return storeHealth
	}

	storeHealth.Reachable = true
	if storeHealth.ResponseTime > time.Second {
		storeHealth.Status = "degraded"
	} else {
		storeHealth.Status = "healthy"
	}
	return storeHealth
}

func (h *HealthHandler) checkSystemHealth() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Alloc:      formatBytes(memStats.Alloc),
		Sys:        formatBytes(memStats.Sys),
		GCRuns:     memStats.NumGC,
		GoRoutines: runtime.NumGoroutine(),
	}
}

func (h *HealthHandler) checkServicesHealth() map[string]*ServiceHealth {
	services := make(map[string]*ServiceHealth)

	if h.openSearchEnabled {
		services["opensearch_logger"] = &ServiceHealth{
			Status:      "healthy",
			Healthy:     true,
			Description: "Payment event logging to OpenSearch",
		}
	} else {
		services["opensearch_logger"] = &ServiceHealth{
			Status:      "not_configured",
			Description: "OpenSearch logging not configured",
		}
	}

	return services
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
