package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockmindJS/blockmind/internal/api"
	"github.com/blockmindJS/blockmind/internal/bridge"
	"github.com/blockmindJS/blockmind/internal/builtin"
	"github.com/blockmindJS/blockmind/internal/chat"
	"github.com/blockmindJS/blockmind/internal/classifier"
	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/config"
	"github.com/blockmindJS/blockmind/internal/cooldown"
	"github.com/blockmindJS/blockmind/internal/db"
	"github.com/blockmindJS/blockmind/internal/dispatcher"
	"github.com/blockmindJS/blockmind/internal/logging"
	"github.com/blockmindJS/blockmind/internal/outbox"
	"github.com/blockmindJS/blockmind/internal/specdir"
	"github.com/blockmindJS/blockmind/internal/types"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"s"},
		Short:   "Connect to the bridge and start answering commands",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := configLoad()
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, logging.NewLogger(cfg.LogLevel, cfg.LogFormat))
		},
	}
}

// transport is a chat.Transport with its own connection loop.
type transport interface {
	chat.Transport
	Run(ctx context.Context) error
}

// apiServer is the interface used by serve() to decouple from api.Server for testing.
type apiServer interface {
	Start(addr string) error
	Stop(ctx context.Context) error
}

var (
	configLoad     = config.Load
	newSQLiteStore = func(path string) (db.Store, error) {
		return db.NewSQLiteStore(path)
	}
	newTransport = func(cfg *config.Config, logger *slog.Logger) transport {
		return bridge.NewClient(cfg.BridgeURL, cfg.BridgeToken, logger, bridge.WithRedialInterval(cfg.BridgeRedial))
	}
	newAPIServer = func(commands api.Commands, out api.Outbox, blacklist api.Blacklist, logger *slog.Logger) apiServer {
		return api.NewServer(commands, out, blacklist, logger)
	}
)

const shutdownTimeout = 5 * time.Second

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting blockmind", "db_path", cfg.DBPath, "server", cfg.ServerHost)

	classify, err := classifier.ForHost(cfg.ServerHost)
	if err != nil {
		return err
	}

	store, err := newSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer store.Close()

	if err := db.Seed(ctx, store, cfg.Groups, cfg.Members); err != nil {
		return fmt.Errorf("seeding permissions: %w", err)
	}

	conn := newTransport(cfg, logging.Component(logger, "bridge"))

	out := outbox.New(conn, outbox.DefaultKinds(), logging.Component(logger, "outbox"))
	if err := applyChannelKinds(out, cfg.ChannelKinds); err != nil {
		return err
	}

	reg := command.NewRegistry(logging.Component(logger, "registry"))
	deps := builtin.Deps{
		Commands:     reg,
		Store:        store,
		Queue:        out,
		Prefix:       cfg.CommandPrefix,
		ReplyTimeout: cfg.ReplyTimeout,
	}
	if err := builtin.Register(reg, deps); err != nil {
		return err
	}
	if err := applyCommandOverrides(reg, cfg.Commands); err != nil {
		return err
	}

	if cfg.CommandsDir != "" {
		loader := specdir.NewLoader(cfg.CommandsDir, reg, builtin.Handlers(deps), logging.Component(logger, "specdir"))
		if err := loader.Start(ctx, cfg.CommandsPoll); err != nil {
			return fmt.Errorf("loading commands_dir: %w", err)
		}
		defer loader.Stop() //nolint:errcheck
	}

	tracker := cooldown.NewTracker(cfg.CooldownSweep, logging.Component(logger, "cooldown")).
		WithWindows(reg.Cooldown)
	if err := tracker.Start(ctx); err != nil {
		return err
	}
	defer tracker.Stop() //nolint:errcheck

	notifier := command.NewChatNotifier(out, cfg.Messages, cfg.NotifyBlacklisted, logger)
	pipeline := command.NewPipeline(tracker, notifier, logging.Component(logger, "pipeline"))

	disp := dispatcher.New(dispatcher.Options{
		Classifier: classify,
		Commands:   reg,
		Users:      store,
		Executor:   pipeline,
		Out:        out,
		Prefix:     cfg.CommandPrefix,
		Logger:     logging.Component(logger, "dispatcher"),
	})
	unsubscribe := disp.Attach(ctx, conn)
	defer disp.Wait()
	defer unsubscribe()

	if cfg.APIAddr != "" {
		srv := newAPIServer(reg, out, store, logging.Component(logger, "api"))
		if err := srv.Start(cfg.APIAddr); err != nil {
			return fmt.Errorf("starting api server: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Stop(stopCtx); err != nil {
				logger.Error("api server stop error", "error", err)
			}
		}()
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := out.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("outbox stopped", "error", err)
		}
	}()
	go func() {
		defer wg.Done()
		if err := conn.Run(ctx); err != nil {
			logger.Error("bridge stopped", "error", err)
		}
	}()

	logger.Info("blockmind ready", "commands", len(reg.All()), "prefix", cfg.CommandPrefix)
	<-ctx.Done()
	logger.Info("shutting down")
	wg.Wait()
	return nil
}

// applyChannelKinds layers configured kinds over the defaults. A kind with a
// template is (re)registered; one without only changes the pace of an
// existing kind.
func applyChannelKinds(out *outbox.Outbox, kinds map[string]config.ChannelKindConfig) error {
	names := make([]string, 0, len(kinds))
	for n := range kinds {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		k := kinds[n]
		name := types.ParseChannelKind(n)
		existing, ok := out.Kind(name)

		pace := outbox.DefaultPace
		if ok {
			pace = existing.Pace
		}
		if k.PaceMs != nil {
			pace = time.Duration(*k.PaceMs) * time.Millisecond
		}

		switch {
		case k.Template != nil:
			out.AddChannelKind(name, *k.Template, pace)
		case ok:
			if err := out.SetPace(name, pace); err != nil {
				return err
			}
		default:
			return fmt.Errorf("channel kind %q: template is required for a new kind", n)
		}
	}
	return nil
}

func applyCommandOverrides(reg *command.Registry, overrides map[string]command.Override) error {
	names := make([]string, 0, len(overrides))
	for n := range overrides {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, n := range names {
		if _, err := reg.Update(n, overrides[n].Apply); err != nil {
			return fmt.Errorf("applying override for %q: %w", n, err)
		}
	}
	return nil
}
