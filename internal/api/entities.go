package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/topoctl/internal/model"
	"github.com/seantiz/topoctl/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// listEntitiesResponse wraps the paginated list response.
type listEntitiesResponse struct {
	Partition model.Partition `json:"partition"`
	Entities  []*model.Entity `json:"entities"`
	Total     int             `json:"total"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	partition, err := model.ParsePartition(r.URL.Query().Get("partition"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	entities, total, err := s.store.List(r.Context(), partition, family, limit, offset)
	if err != nil {
		s.logger.Error("list entities", "family", family, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list entities")
		return
	}
	if entities == nil {
		entities = []*model.Entity{}
	}

	s.writeJSON(w, http.StatusOK, listEntitiesResponse{
		Partition: partition,
		Entities:  entities,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	family := chi.URLParam(r, "family")
	key := chi.URLParam(r, "key")
	partition, err := model.ParsePartition(r.URL.Query().Get("partition"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	e, err := s.store.Get(r.Context(), partition, family, key)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "entity not found")
		return
	}
	if err != nil {
		s.logger.Error("get entity", "family", family, "key", key, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get entity")
		return
	}

	s.writeJSON(w, http.StatusOK, e)
}
