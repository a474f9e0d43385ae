package api

import (
	"net/http"
)

type healthResponse struct {
	Status     string `json:"status"`
	Operations int    `json:"operations"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:     "ok",
		Operations: len(s.orch.Catalog().Specs()),
	})
}
