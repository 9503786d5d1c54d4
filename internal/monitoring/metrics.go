package monitoring

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics aggregates request counters for the /metrics endpoint.
type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ns"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[int]int64    `json:"status_codes"`
	Routes          map[string]int64 `json:"route_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		StatusCodes: make(map[int]int64),
		Routes:      make(map[string]int64),
		StartTime:   time.Now(),
	}
}

// Middleware counts every request by status and matched route. Requests
// that match no route are grouped under "unmatched" so probing for random
// paths cannot grow the map.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.mu.Lock()
		m.ActiveRequests++
		m.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		m.RequestCount++
		m.ActiveRequests--
		m.totalDuration += duration
		m.RequestDuration = m.totalDuration / time.Duration(m.RequestCount)
		m.LastRequest = time.Now()
		if statusCode >= http.StatusInternalServerError {
			m.ErrorCount++
		}
		m.StatusCodes[statusCode]++
		m.Routes[c.Request.Method+" "+route]++
	}
}

// Snapshot returns a copy that is safe to serialise while requests continue.
func (m *Metrics) Snapshot() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &Metrics{
		RequestCount:    m.RequestCount,
		RequestDuration: m.RequestDuration,
		ActiveRequests:  m.ActiveRequests,
		ErrorCount:      m.ErrorCount,
		StatusCodes:     make(map[int]int64, len(m.StatusCodes)),
		Routes:          make(map[string]int64, len(m.Routes)),
		StartTime:       m.StartTime,
		LastRequest:     m.LastRequest,
	}
	for k, v := range m.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	for k, v := range m.Routes {
		snapshot.Routes[k] = v
	}
	return snapshot
}

func (m *Metrics) Uptime() time.Duration {
	return time.Since(m.StartTime)
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	MemoryUsage    MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	Alloc      uint64 `json:"alloc_mb"`
	TotalAlloc uint64 `json:"total_alloc_mb"`
	Sys        uint64 `json:"sys_mb"`
	NumGC      uint32 `json:"num_gc"`
}

func (m *Metrics) System() SystemMetrics {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return SystemMetrics{
		Uptime: m.Uptime().Round(time.Second).String(),
		MemoryUsage: MemoryStats{
			Alloc:      bToMb(mem.Alloc),
			TotalAlloc: bToMb(mem.TotalAlloc),
			Sys:        bToMb(mem.Sys),
			NumGC:      mem.NumGC,
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// StatsFunc contributes an extra section to the /metrics response.
type StatsFunc func() map[string]interface{}

// MetricsHandler serves the request counters, runtime figures and any
// extra sections such as cache statistics.
func MetricsHandler(metrics *Metrics, extra map[string]StatsFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		response := gin.H{
			"application": metrics.Snapshot(),
			"system":      metrics.System(),
			"timestamp":   time.Now().UTC(),
		}
		for name, stats := range extra {
			response[name] = stats()
		}
		c.JSON(http.StatusOK, response)
	}
}
