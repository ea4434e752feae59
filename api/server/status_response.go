package server

// StatusResponse is the body of /status.
type StatusResponse struct {
	Status       string      `json:"status"`
	Node         string      `json:"node,omitempty"`
	Uptime       int64       `json:"uptime_seconds"`
	BlockHeight  uint64      `json:"block_height"`
	TipHash      string      `json:"tip_hash"`
	Participants int         `json:"participants"`
	PHIAssets    int         `json:"phi_assets"`
	Difficulty   int         `json:"difficulty"`
	HaltReason   string      `json:"halt_reason,omitempty"`
	Version      string      `json:"version"`
	APIVersion   string      `json:"api_version"`
	LastBlock    string      `json:"last_block_time"`
	Metrics      NodeMetrics `json:"metrics"`
}

// LivenessResponse for /health/liveness
type LivenessResponse struct {
	Alive bool `json:"alive"`
}

// ReadinessResponse for /health/readiness
type ReadinessResponse struct {
	Ready  bool   `json:"ready"`
	Reason string `json:"reason,omitempty"`
}

// VersionResponse for /version
type VersionResponse struct {
	Version    string `json:"version"`
	APIVersion string `json:"api_version"`
}
