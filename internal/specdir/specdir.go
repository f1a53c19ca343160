// Package specdir keeps the command registry in sync with a directory of
// JSON command definitions.
package specdir

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tailscale/hujson"

	"github.com/blockmindJS/blockmind/internal/command"
	"github.com/blockmindJS/blockmind/internal/types"
)

// DefaultPollInterval is used when Start is given no interval.
const DefaultPollInterval = 5 * time.Second

// ErrUnknownHandler is returned for a definition naming a handler that does not exist.
var ErrUnknownHandler = errors.New("unknown handler")

// Registrar is the registry mutation API. *command.Registry satisfies it.
type Registrar interface {
	Register(spec command.Spec, handler command.Handler) error
	Unregister(names ...string) int
	Lookup(name string) (*command.Entry, bool)
}

// Definition is one command in a definition file.
type Definition struct {
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases"`
	Description  string   `json:"description"`
	Handler      string   `json:"handler"`
	Reply        []string `json:"reply"`
	RequiredArgs int      `json:"required_args"`
	Permission   string   `json:"permission"`
	Channels     []string `json:"channels"`
	CooldownMs   int64    `json:"cooldown_ms"`
	Active       *bool    `json:"active"`
}

// Spec converts the definition into a command spec. Missing channels mean
// every chat kind; a missing active flag means active.
func (d Definition) Spec() command.Spec {
	spec := command.Spec{
		Name:         d.Name,
		Aliases:      d.Aliases,
		Description:  d.Description,
		RequiredArgs: d.RequiredArgs,
		Permission:   d.Permission,
		Cooldown:     time.Duration(d.CooldownMs) * time.Millisecond,
		Active:       d.Active == nil || *d.Active,
	}
	if len(d.Channels) == 0 {
		spec.Channels = slices.Clone(types.ChatKinds)
	}
	for _, c := range d.Channels {
		spec.Channels = append(spec.Channels, types.ParseChannelKind(c))
	}
	return spec
}

type fileState struct {
	modTime time.Time
	size    int64
	names   []string
	// refused holds the names of definitions skipped because another
	// source owned one of their names.
	refused [][]string
}

// Loader registers the commands found in a directory and unregisters them
// again when their file changes or disappears. A file never replaces a
// command owned by a built-in or by another file; it is retried once every
// conflicting name is free again.
type Loader struct {
	dir      string
	reg      Registrar
	handlers map[string]command.Handler
	logger   *slog.Logger

	mu    sync.Mutex
	files map[string]fileState

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewLoader creates a Loader for dir. handlers maps the "handler" field of
// a definition to code.
func NewLoader(dir string, reg Registrar, handlers map[string]command.Handler, logger *slog.Logger) *Loader {
	return &Loader{
		dir:      dir,
		reg:      reg,
		handlers: handlers,
		logger:   logger,
		files:    make(map[string]fileState),
	}
}

// Sync scans the directory once. Files that fail to load are logged and
// keep whatever they registered before.
func (l *Loader) Sync() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return fmt.Errorf("reading %s: %w", l.dir, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	seen := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() || !isDefinitionFile(e.Name()) {
			continue
		}
		path := filepath.Join(l.dir, e.Name())
		seen[path] = true

		info, err := e.Info()
		if err != nil {
			l.logger.Warn("stat command file", "file", path, "error", err)
			continue
		}
		prev, known := l.files[path]
		if known && prev.modTime.Equal(info.ModTime()) && prev.size == info.Size() && !l.retryable(path, prev.refused) {
			continue
		}

		st, err := l.load(path, prev.names)
		if err != nil {
			l.logger.Error("loading command file", "file", path, "error", err)
			st = prev
		}
		st.modTime, st.size = info.ModTime(), info.Size()
		l.files[path] = st
	}

	var gone []string
	for path := range l.files {
		if !seen[path] {
			gone = append(gone, path)
		}
	}
	sort.Strings(gone)
	for _, path := range gone {
		names := l.release(path, l.files[path].names)
		delete(l.files, path)
		l.logger.Info("command file removed", "file", path, "commands", names)
	}
	if len(gone) == 0 {
		return nil
	}

	// Names released above may unblock definitions refused earlier.
	paths := slices.Sorted(maps.Keys(l.files))
	for _, path := range paths {
		st := l.files[path]
		if !l.retryable(path, st.refused) {
			continue
		}
		next, err := l.load(path, st.names)
		if err != nil {
			l.logger.Error("loading command file", "file", path, "error", err)
			continue
		}
		next.modTime, next.size = st.modTime, st.size
		l.files[path] = next
	}
	return nil
}

// owner returns the source of the command answering to name.
func (l *Loader) owner(name string) (string, bool) {
	e, ok := l.reg.Lookup(name)
	if !ok {
		return "", false
	}
	return e.Spec.Source, true
}

// claimable reports whether every name is free or already owned by path.
func (l *Loader) claimable(path string, names []string) bool {
	for _, n := range names {
		if src, ok := l.owner(n); ok && src != path {
			return false
		}
	}
	return true
}

func (l *Loader) retryable(path string, refused [][]string) bool {
	for _, names := range refused {
		if l.claimable(path, names) {
			return true
		}
	}
	return false
}

// release unregisters the names path still owns and returns them. Names
// taken over since by another source are left alone.
func (l *Loader) release(path string, names []string) []string {
	var owned []string
	for _, n := range names {
		if src, ok := l.owner(n); ok && src == path {
			owned = append(owned, n)
		}
	}
	if len(owned) > 0 {
		l.reg.Unregister(owned...)
	}
	return owned
}

// load registers every definition in path, then unregisters commands the
// file used to define but no longer does. The returned state carries the
// primary names now owned by the file and the definitions it was refused.
func (l *Loader) load(path string, previous []string) (fileState, error) {
	defs, err := ReadFile(path)
	if err != nil {
		return fileState{}, err
	}

	type pending struct {
		spec    command.Spec
		handler command.Handler
	}
	var specs []pending
	for _, d := range defs {
		h, err := l.handlerFor(d)
		if err != nil {
			return fileState{}, fmt.Errorf("command %q: %w", d.Name, err)
		}
		spec := d.Spec()
		spec.Source = path
		specs = append(specs, pending{spec: spec, handler: h})
	}

	var st fileState
	for _, p := range specs {
		if !l.claimable(path, p.spec.Names()) {
			l.logger.Warn("command name owned elsewhere", "file", path, "command", p.spec.Name)
			st.refused = append(st.refused, p.spec.Names())
			continue
		}
		if err := l.reg.Register(p.spec, p.handler); err != nil {
			l.logger.Error("registering command", "file", path, "command", p.spec.Name, "error", err)
			continue
		}
		st.names = append(st.names, strings.ToLower(p.spec.Name))
	}

	var stale []string
	for _, n := range previous {
		if !slices.Contains(st.names, n) {
			stale = append(stale, n)
		}
	}
	l.release(path, stale)
	l.logger.Info("command file loaded", "file", path, "commands", st.names)
	return st, nil
}

func (l *Loader) handlerFor(d Definition) (command.Handler, error) {
	if d.Handler == "" {
		if len(d.Reply) == 0 {
			return nil, fmt.Errorf("%w: definition needs a handler or a reply", ErrUnknownHandler)
		}
		return replyHandler(d.Reply), nil
	}
	h, ok := l.handlers[strings.ToLower(d.Handler)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, d.Handler)
	}
	return h, nil
}

// replyHandler answers with fixed lines. "{user}" and "{args}" are expanded.
func replyHandler(lines []string) command.Handler {
	return func(_ context.Context, call *command.Call) error {
		r := strings.NewReplacer("{user}", call.Username(), "{args}", strings.Join(call.Args, " "))
		out := make([]string, len(lines))
		for i, line := range lines {
			out[i] = r.Replace(line)
		}
		call.Reply(out...)
		return nil
	}
}

// Files returns the command names registered from each file.
func (l *Loader) Files() map[string][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string][]string, len(l.files))
	for path, st := range l.files {
		out[path] = slices.Clone(st.names)
	}
	return out
}

// Start syncs once and then polls the directory every interval.
func (l *Loader) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if err := l.Sync(); err != nil {
		return err
	}
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.pollLoop(ctx, interval)
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (l *Loader) Stop() error {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
	return nil
}

func (l *Loader) pollLoop(ctx context.Context, interval time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.Sync(); err != nil {
				l.logger.Warn("syncing command directory", "error", err)
			}
		}
	}
}

// ReadFile parses a definition file holding one definition or an array of
// them. Comments and trailing commas are allowed.
func ReadFile(path string) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes definitions from HuJSON.
func Parse(data []byte) ([]Definition, error) {
	std, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("parsing definitions: %w", err)
	}
	trimmed := strings.TrimSpace(string(std))

	var defs []Definition
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(std, &defs); err != nil {
			return nil, fmt.Errorf("decoding definitions: %w", err)
		}
	} else {
		var d Definition
		if err := json.Unmarshal(std, &d); err != nil {
			return nil, fmt.Errorf("decoding definition: %w", err)
		}
		defs = []Definition{d}
	}
	for i, d := range defs {
		if strings.TrimSpace(d.Name) == "" {
			return nil, fmt.Errorf("definition %d has no name", i)
		}
	}
	return defs, nil
}

func isDefinitionFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".json" || ext == ".jsonc" || ext == ".hujson"
}
