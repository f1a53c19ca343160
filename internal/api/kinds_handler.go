package api

import (
	"net/http"
	"time"

	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/types"
)

type kindResponse struct {
	Name     types.ChannelKind `json:"name"`
	Template string            `json:"template"`
	PaceMs   int64             `json:"pace_ms"`
}

type putKindRequest struct {
	Template *string `json:"template"`
	PaceMs   *int64  `json:"pace_ms"`
}

func toKindResponse(k outbox.Kind) kindResponse {
	return kindResponse{Name: k.Name, Template: k.Template, PaceMs: k.Pace.Milliseconds()}
}

func (s *Server) handleListKinds(w http.ResponseWriter, _ *http.Request) {
	kinds := s.outbox.Kinds()
	resp := make([]kindResponse, 0, len(kinds))
	for _, k := range kinds {
		resp = append(resp, toKindResponse(k))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handlePutKind changes an existing kind's pace, or registers a kind when a
// template is given.
func (s *Server) handlePutKind(w http.ResponseWriter, r *http.Request) {
	name := types.ParseChannelKind(r.PathValue("name"))

	var req putKindRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PaceMs != nil && *req.PaceMs < 0 {
		http.Error(w, "pace_ms must not be negative", http.StatusBadRequest)
		return
	}

	existing, ok := s.outbox.Kind(name)
	switch {
	case req.Template != nil:
		pace := outbox.DefaultPace
		if ok {
			pace = existing.Pace
		}
		if req.PaceMs != nil {
			pace = time.Duration(*req.PaceMs) * time.Millisecond
		}
		s.outbox.AddChannelKind(name, *req.Template, pace)
	case !ok:
		http.Error(w, "unknown channel kind; template is required to add one", http.StatusNotFound)
		return
	case req.PaceMs == nil:
		http.Error(w, "at least one field is required", http.StatusBadRequest)
		return
	default:
		if err := s.outbox.SetPace(name, time.Duration(*req.PaceMs)*time.Millisecond); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	k, _ := s.outbox.Kind(name)
	writeJSON(w, http.StatusOK, toKindResponse(k))
}
