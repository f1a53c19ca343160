package api

import (
	"errors"
	"net/http"

	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/types"
)

type commandResponse struct {
	Name         string              `json:"name"`
	Aliases      []string            `json:"aliases"`
	Description  string              `json:"description"`
	RequiredArgs int                 `json:"required_args"`
	Permission   string              `json:"permission"`
	Channels     []types.ChannelKind `json:"channels"`
	CooldownMs   int64               `json:"cooldown_ms"`
	Active       bool                `json:"active"`
}

func toCommandResponse(spec *command.Spec) commandResponse {
	aliases := spec.Aliases
	if aliases == nil {
		aliases = []string{}
	}
	return commandResponse{
		Name:         spec.Name,
		Aliases:      aliases,
		Description:  spec.Description,
		RequiredArgs: spec.RequiredArgs,
		Permission:   spec.Permission,
		Channels:     spec.Channels,
		CooldownMs:   spec.Cooldown.Milliseconds(),
		Active:       spec.Active,
	}
}

func (s *Server) handleListCommands(w http.ResponseWriter, _ *http.Request) {
	entries := s.commands.All()
	resp := make([]commandResponse, 0, len(entries))
	for _, e := range entries {
		resp = append(resp, toCommandResponse(e.Spec))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateCommand(w http.ResponseWriter, r *http.Request) {
	var req command.Override
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Empty() {
		http.Error(w, "at least one field is required", http.StatusBadRequest)
		return
	}
	if req.RequiredArgs != nil && *req.RequiredArgs < 0 {
		http.Error(w, "required_args must not be negative", http.StatusBadRequest)
		return
	}
	if req.CooldownMs != nil && *req.CooldownMs < 0 {
		http.Error(w, "cooldown_ms must not be negative", http.StatusBadRequest)
		return
	}

	spec, err := s.commands.Update(r.PathValue("name"), req.Apply)
	switch {
	case errors.Is(err, command.ErrUnknownCommand):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, command.ErrAliasConflict):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.logger.Info("command updated via api", "command", spec.Name)
	writeJSON(w, http.StatusOK, toCommandResponse(spec))
}
