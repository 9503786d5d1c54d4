package monitoring

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

type HealthCheckFunc func(ctx context.Context) error

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

// HealthChecker runs the registered dependency probes on demand.
type HealthChecker struct {
	mu      sync.RWMutex
	probes  map[string]HealthCheckFunc
	timeout time.Duration
}

func NewHealthChecker(timeout time.Duration) *HealthChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthChecker{
		probes:  make(map[string]HealthCheckFunc),
		timeout: timeout,
	}
}

func (h *HealthChecker) Register(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.probes[name] = check
}

// Run executes every probe concurrently, each bounded by the checker timeout.
func (h *HealthChecker) Run(ctx context.Context) []HealthCheck {
	h.mu.RLock()
	names := make([]string, 0, len(h.probes))
	for name := range h.probes {
		names = append(names, name)
	}
	probes := make(map[string]HealthCheckFunc, len(h.probes))
	for name, probe := range h.probes {
		probes[name] = probe
	}
	h.mu.RUnlock()
	sort.Strings(names)

	results := make([]HealthCheck, len(names))
	var group errgroup.Group
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
			defer cancel()

			result := HealthCheck{Name: name, Status: StatusHealthy, LastRun: time.Now().UTC()}
			if err := probes[name](checkCtx); err != nil {
				result.Status = StatusUnhealthy
				result.Message = err.Error()
			}
			results[i] = result
			return nil
		})
	}
	_ = group.Wait()
	return results
}

func healthy(checks []HealthCheck) bool {
	for _, check := range checks {
		if check.Status != StatusHealthy {
			return false
		}
	}
	return true
}

func HealthHandler(checker *HealthChecker, metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := checker.Run(c.Request.Context())

		overall, status := StatusHealthy, http.StatusOK
		if !healthy(checks) {
			overall, status = StatusUnhealthy, http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overall,
			"timestamp": time.Now().UTC(),
			"checks":    checks,
			"uptime":    metrics.Uptime().Round(time.Second).String(),
		})
	}
}

func ReadinessHandler(checker *HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(checker.Run(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{"status": "ready", "timestamp": time.Now().UTC()})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "timestamp": time.Now().UTC()})
	}
}

func LivenessHandler(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now().UTC(),
			"uptime":    metrics.Uptime().Round(time.Second).String(),
		})
	}
}

// Register mounts the monitoring endpoints on router.
func Register(router gin.IRoutes, metrics *Metrics, checker *HealthChecker, extra map[string]StatsFunc) {
	router.GET("/healthz", HealthHandler(checker, metrics))
	router.GET("/readyz", ReadinessHandler(checker))
	router.GET("/livez", LivenessHandler(metrics))
	router.GET("/metrics", MetricsHandler(metrics, extra))
}
