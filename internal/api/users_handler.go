package api

import (
	"net/http"
	"strings"
)

func (s *Server) handleListBlacklist(w http.ResponseWriter, r *http.Request) {
	names, err := s.blacklist.ListBlacklisted(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (s *Server) handleBlacklist(w http.ResponseWriter, r *http.Request) {
	s.setBlacklist(w, r, true)
}

func (s *Server) handleUnblacklist(w http.ResponseWriter, r *http.Request) {
	s.setBlacklist(w, r, false)
}

func (s *Server) setBlacklist(w http.ResponseWriter, r *http.Request, blacklisted bool) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}
	if err := s.blacklist.SetBlacklist(r.Context(), name, blacklisted); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.logger.Info("blacklist changed via api", "user", name, "blacklisted", blacklisted)
	w.WriteHeader(http.StatusNoContent)
}
