package command

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

var (
	// ErrAliasConflict is returned when a name or alias already belongs to another command.
	ErrAliasConflict = errors.New("alias already registered to another command")
	// ErrUnknownCommand is returned when no command answers to a name.
	ErrUnknownCommand = errors.New("unknown command")
	// ErrInvalidSpec is returned for a spec without a name or handler.
	ErrInvalidSpec = errors.New("invalid command spec")
)

// Entry pairs a spec with its handler. Entries are never mutated; updates
// replace them.
type Entry struct {
	Spec    *Spec
	Handler Handler
}

// Registry resolves commands by case-insensitive name or alias.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]*Entry
	entries map[string]*Entry // primary name -> entry
	logger  *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		byName:  make(map[string]*Entry),
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Register adds spec, replacing any command with the same primary name.
// It fails without changes if any of the names belongs to another command.
func (r *Registry) Register(spec Spec, handler Handler) error {
	if normalize(spec.Name) == "" || handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidSpec)
	}
	if spec.RequiredArgs < 0 {
		return fmt.Errorf("%w: %q has negative required_args", ErrInvalidSpec, spec.Name)
	}
	cp := spec.clone()
	entry := &Entry{Spec: &cp, Handler: handler}
	primary := normalize(cp.Name)
	names := cp.Names()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, n := range names {
		if owner, ok := r.byName[n]; ok && normalize(owner.Spec.Name) != primary {
			return fmt.Errorf("%w: %q is used by %q", ErrAliasConflict, n, owner.Spec.Name)
		}
	}

	replaced := r.removeLocked(primary)
	for _, n := range names {
		r.byName[n] = entry
	}
	r.entries[primary] = entry

	r.logger.Info("command registered", "command", primary, "aliases", len(names)-1, "replaced", replaced)
	return nil
}

// Unregister removes every command reached by any of names, along with all
// of its aliases. It returns the number of commands removed.
func (r *Registry) Unregister(names ...string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for _, n := range names {
		entry, ok := r.byName[normalize(n)]
		if !ok {
			continue
		}
		if r.removeLocked(normalize(entry.Spec.Name)) {
			removed++
			r.logger.Info("command unregistered", "command", entry.Spec.Name)
		}
	}
	return removed
}

func (r *Registry) removeLocked(primary string) bool {
	old, ok := r.entries[primary]
	if !ok {
		return false
	}
	for _, n := range old.Spec.Names() {
		if r.byName[n] == old {
			delete(r.byName, n)
		}
	}
	delete(r.entries, primary)
	return true
}

// Lookup returns the entry answering to name.
func (r *Registry) Lookup(name string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byName[normalize(name)]
	return e, ok
}

// All returns every registered entry sorted by primary name.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	out := make([]*Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b *Entry) int { return cmp.Compare(a.Spec.Name, b.Spec.Name) })
	return out
}

// Cooldown returns the current cooldown of the command answering to name.
func (r *Registry) Cooldown(name string) (time.Duration, bool) {
	e, ok := r.Lookup(name)
	if !ok {
		return 0, false
	}
	return e.Spec.Cooldown, true
}

// Update replaces the spec of the command answering to name with the result
// of fn, keeping its handler. The previous spec is left untouched.
func (r *Registry) Update(name string, fn func(Spec) Spec) (*Spec, error) {
	entry, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
	next := fn(entry.Spec.clone())
	if normalize(next.Name) != normalize(entry.Spec.Name) {
		return nil, fmt.Errorf("%w: renaming %q is not supported", ErrInvalidSpec, entry.Spec.Name)
	}
	if err := r.Register(next, entry.Handler); err != nil {
		return nil, err
	}
	updated, _ := r.Lookup(next.Name)
	return updated.Spec, nil
}
