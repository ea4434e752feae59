package server

import (
	"net/http"
)

// nodeStatus derives a one-word state from the metrics.
func nodeStatus(m NodeMetrics) string {
	switch {
	case m.Halted:
		return "halted"
	case m.BlockHeight == 0:
		return "initializing"
	}
	return "healthy"
}

// HandleStatus responds to /status with node status
func (s *Server) HandleStatus(w http.ResponseWriter, r *http.Request) {
	metrics := s.GetNodeMetrics()
	st := s.net.Status()

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:       nodeStatus(metrics),
		Node:         s.NodeName,
		Uptime:       metrics.UptimeSeconds,
		BlockHeight:  st.Height,
		TipHash:      st.TipHash,
		Participants: st.Participants,
		PHIAssets:    st.PHIAssets,
		Difficulty:   st.Difficulty,
		HaltReason:   st.HaltReason,
		Version:      NodeVersion(),
		APIVersion:   APIVersion(),
		LastBlock:    metrics.LastBlockTime,
		Metrics:      metrics,
	})
}

func (s *Server) HandleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: NodeVersion(), APIVersion: APIVersion()})
}
