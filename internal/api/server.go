// Package api is the local admin HTTP API: it lists and patches commands,
// queues outbound chat, tunes channel kinds and manages the blacklist.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/types"
)

// Commands is the registry surface the API needs.
type Commands interface {
	All() []*command.Entry
	Update(name string, fn func(command.Spec) command.Spec) (*command.Spec, error)
}

// Outbox is the outbound queue surface the API needs.
type Outbox interface {
	Enqueue(msg *outbox.Message)
	Kind(name types.ChannelKind) (outbox.Kind, bool)
	Kinds() []outbox.Kind
	AddChannelKind(name types.ChannelKind, template string, pace time.Duration)
	SetPace(name types.ChannelKind, pace time.Duration) error
}

// Blacklist manages blacklisted players.
type Blacklist interface {
	SetBlacklist(ctx context.Context, username string, blacklisted bool) error
	ListBlacklisted(ctx context.Context) ([]string, error)
}

// Server exposes the admin API.
type Server struct {
	commands  Commands
	outbox    Outbox
	blacklist Blacklist
	logger    *slog.Logger
	server    *http.Server
	listener  net.Listener
}

// NewServer creates a new API server.
func NewServer(commands Commands, out Outbox, blacklist Blacklist, logger *slog.Logger) *Server {
	return &Server{
		commands:  commands,
		outbox:    out,
		blacklist: blacklist,
		logger:    logger,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/commands", s.handleListCommands)
	mux.HandleFunc("PATCH /api/commands/{name}", s.handleUpdateCommand)
	mux.HandleFunc("POST /api/messages", s.handleSendMessage)
	mux.HandleFunc("GET /api/channel-kinds", s.handleListKinds)
	mux.HandleFunc("PUT /api/channel-kinds/{name}", s.handlePutKind)
	mux.HandleFunc("GET /api/blacklist", s.handleListBlacklist)
	mux.HandleFunc("PUT /api/users/{name}/blacklist", s.handleBlacklist)
	mux.HandleFunc("DELETE /api/users/{name}/blacklist", s.handleUnblacklist)
	return mux
}

// Start starts the HTTP server on the given address.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", "error", err)
		}
	}()

	s.logger.Info("api server started", "addr", ln.Addr().String())
	return nil
}

// Addr returns the listening address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
