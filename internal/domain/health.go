package domain

// ============================================================
// Health & Metrics API Responses
// ============================================================

// HealthStatus is returned by GET /healthz.
type HealthStatus struct {
	Status   string          `json:"status"` // healthy, degraded, unhealthy
	Services []ServiceHealth `json:"services"`
}

// ServiceHealth represents the health of an individual backing service.
type ServiceHealth struct {
	Name        string `json:"name"`
	Status      string `json:"status"`
	LatencyMs   int64  `json:"latencyMs"`
	LastChecked string `json:"lastChecked"`
	Error       string `json:"error,omitempty"`
}

// CacheStats is returned by GET /v1/metrics/cache.
type CacheStats struct {
	Queries       []QueryCacheStats `json:"queries"`
	Invalidations float64           `json:"invalidations"`
}

// QueryCacheStats is the hit/miss counters of one cached query.
type QueryCacheStats struct {
	Name     string  `json:"name"`
	Hits     float64 `json:"hits"`
	Misses   float64 `json:"misses"`
	HitRatio float64 `json:"hitRatio"`
}
