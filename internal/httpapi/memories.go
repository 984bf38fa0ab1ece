package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/secretary/internal/memory"
)

type createMemoryRequest struct {
	Category string `json:"category"`
	Content  string `json:"content"`
}

type updateMemoryRequest struct {
	Category string `json:"category,omitempty"`
	Content  string `json:"content"`
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	catParam := strings.TrimSpace(r.URL.Query().Get("category"))

	var (
		records []memory.Record
		err     error
	)
	if catParam == "" {
		records, err = s.store.ListAll(r.Context())
	} else {
		cat, ok := memory.ParseCategory(strings.ToLower(catParam))
		if !ok {
			respondError(w, http.StatusBadRequest, "invalid_category", "unknown category "+catParam)
			return
		}
		records, err = s.store.ListByCategory(r.Context(), cat, 0)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if records == nil {
		records = []memory.Record{}
	}
	respondJSON(w, http.StatusOK, records)
}

func (s *Server) handleCreateMemory(w http.ResponseWriter, r *http.Request) {
	var req createMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	cat, ok := memory.ParseCategory(strings.ToLower(strings.TrimSpace(req.Category)))
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_category", "unknown category "+req.Category)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	record, err := s.store.Create(r.Context(), memory.Record{
		Category: cat,
		Content:  strings.TrimSpace(req.Content),
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

func (s *Server) handleUpdateMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req updateMemoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "content is required")
		return
	}

	existing, err := s.store.Get(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no such memory record")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}

	// Category is immutable after creation.
	if req.Category != "" && !strings.EqualFold(req.Category, string(existing.Category)) {
		respondError(w, http.StatusConflict, "category_immutable", "record category cannot be changed")
		return
	}

	content := strings.TrimSpace(req.Content)
	record, err := s.store.Update(r.Context(), id, memory.Update{Content: &content})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (s *Server) handleDeleteMemory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.store.Delete(r.Context(), id)
	if errors.Is(err, memory.ErrNotFound) {
		respondError(w, http.StatusNotFound, "not_found", "no such memory record")
		return
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
