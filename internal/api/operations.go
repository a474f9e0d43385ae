package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/orchestrator"
)

const maxBodySize = 1 << 20 // 1 MB

// operationRequest is the RESTCONF body for POST /restconf/operations/{rpc}.
type operationRequest struct {
	Input map[string]any `json:"input"`
}

type operationResponse struct {
	Output map[string]any `json:"output"`
}

// operationSummary describes one catalog entry for GET /v1/operations.
type operationSummary struct {
	Name            string         `json:"name"`
	Family          string         `json:"family"`
	KeyPaths        []string       `json:"key_paths"`
	ObservedActions []model.Action `json:"observed_actions,omitempty"`
	ObserveAlways   bool           `json:"observe_always,omitempty"`
	DeleteActions   []model.Action `json:"delete_actions,omitempty"`
	AsyncOperation  string         `json:"async_operation"`
}

// operationName strips an optional "<module>:" prefix from an RPC name.
func operationName(rpc string) string {
	if i := strings.LastIndex(rpc, ":"); i >= 0 {
		return rpc[i+1:]
	}
	return rpc
}

func (s *Server) handleInvokeOperation(w http.ResponseWriter, r *http.Request) {
	name := operationName(chi.URLParam(r, "rpc"))
	if _, ok := s.orch.Catalog().Lookup(name); !ok {
		s.writeError(w, http.StatusNotFound, "unknown operation "+name)
		return
	}

	var req operationRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	input, err := model.Normalize(req.Input)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := s.orch.Execute(r.Context(), name, input)
	if errors.Is(err, orchestrator.ErrUnknownOperation) {
		s.writeError(w, http.StatusNotFound, "unknown operation "+name)
		return
	}
	if err != nil {
		s.logger.Error("execute operation", "operation", name, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to execute operation")
		return
	}

	s.writeJSON(w, http.StatusOK, operationResponse{Output: resp.Output()})
}

func (s *Server) handleListOperations(w http.ResponseWriter, _ *http.Request) {
	specs := s.orch.Catalog().Specs()
	out := make([]operationSummary, len(specs))
	for i, spec := range specs {
		out[i] = operationSummary{
			Name:            spec.Name,
			Family:          spec.Family,
			KeyPaths:        spec.KeyPaths,
			ObservedActions: spec.ObservedActions,
			ObserveAlways:   spec.ObserveAlways,
			DeleteActions:   spec.DeleteActions,
			AsyncOperation:  spec.AsyncName(),
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListProcedures(w http.ResponseWriter, _ *http.Request) {
	if s.procedures == nil {
		s.writeJSON(w, http.StatusOK, []any{})
		return
	}
	s.writeJSON(w, http.StatusOK, s.procedures.List())
}
