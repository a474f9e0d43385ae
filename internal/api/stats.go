package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total       int            `json:"total"`
	ByPartition map[string]int `json:"by_partition"`
	ByFamily    map[string]int `json:"by_family"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		s.logger.Error("get entity stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:       stats.Total,
		ByPartition: stats.CountByPartition,
		ByFamily:    stats.CountByFamily,
	})
}
