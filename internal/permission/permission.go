// Package permission evaluates "domain.action" permission strings.
//
// A held permission satisfies a requirement when it is equal to it, or when
// it names the same domain with the wildcard action "*". A requirement may
// list several alternatives separated by commas; any one of them suffices.
package permission

import (
	"sort"
	"strings"
)

// Wildcard is the action that grants every action within a domain.
const Wildcard = "*"

// Set is a collection of held permission strings.
type Set map[string]struct{}

// NewSet builds a Set from the given permission names, ignoring blanks.
func NewSet(perms ...string) Set {
	s := make(Set, len(perms))
	for _, p := range perms {
		if p = strings.TrimSpace(p); p != "" {
			s[p] = struct{}{}
		}
	}
	return s
}

// Add inserts a permission.
func (s Set) Add(perm string) {
	if perm = strings.TrimSpace(perm); perm != "" {
		s[perm] = struct{}{}
	}
}

// Contains reports whether perm is held verbatim.
func (s Set) Contains(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the permissions in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Has reports whether held satisfies required. An empty requirement (or one
// made only of separators) is satisfied by everyone.
func Has(held Set, required string) bool {
	alternatives := Split(required)
	if len(alternatives) == 0 {
		return true
	}
	for _, req := range alternatives {
		if satisfies(held, req) {
			return true
		}
	}
	return false
}

// Split breaks a comma-joined requirement into its trimmed, non-empty parts.
func Split(required string) []string {
	var out []string
	for _, part := range strings.Split(required, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func satisfies(held Set, req string) bool {
	if held.Contains(req) {
		return true
	}
	domain, _ := splitPerm(req)
	for p := range held {
		d, action := splitPerm(p)
		if action == Wildcard && d == domain {
			return true
		}
	}
	return false
}

// splitPerm splits "domain.action" at the first dot. A permission without a
// dot is all domain.
func splitPerm(perm string) (domain, action string) {
	domain, action, _ = strings.Cut(perm, ".")
	return domain, action
}
