package api

import (
	"net/http"

	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/types"
)

type sendMessageRequest struct {
	Kind   string   `json:"kind"`
	Target string   `json:"target"`
	Lines  []string `json:"lines"`
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	kind := types.ParseChannelKind(req.Kind)
	if kind == "" {
		http.Error(w, "kind is required", http.StatusBadRequest)
		return
	}
	if _, ok := s.outbox.Kind(kind); !ok {
		http.Error(w, "unknown channel kind", http.StatusBadRequest)
		return
	}
	if len(req.Lines) == 0 {
		http.Error(w, "lines is required", http.StatusBadRequest)
		return
	}
	if kind == types.ChannelWhisper && req.Target == "" {
		http.Error(w, "target is required for whisper", http.StatusBadRequest)
		return
	}

	s.outbox.Enqueue(outbox.NewMessage(kind, req.Lines...).To(req.Target))
	w.WriteHeader(http.StatusAccepted)
}
