// Package safety provides filtering, confirmation, and audit logging for
// destructive or sensitive notetaker operations.
package safety

import "github.com/bmatcuk/doublestar/v4"

// Filter controls access to named operations using an allowlist and a
// denylist. Operations are named "<kind>/<rootField>", for example
// "mutation/deleteNote", and both lists hold doublestar patterns such as
// "query/*" or "mutation/delete*".
//
// Rules:
//   - If both lists are empty (or nil), every operation is allowed.
//   - Denylist always takes priority over the allowlist.
//   - If a non-empty allowlist is present, an operation must match at least
//     one allowlist pattern to be permitted (after the denylist check).
type Filter struct {
	allowlist []string
	denylist  []string
}

// NewFilter constructs a Filter from the provided allowlist and denylist
// pattern slices. Either or both may be nil or empty.
func NewFilter(allowlist, denylist []string) *Filter {
	return &Filter{
		allowlist: allowlist,
		denylist:  denylist,
	}
}

// IsAllowed reports whether name is permitted by this filter.
func (f *Filter) IsAllowed(name string) bool {
	for _, pattern := range f.denylist {
		if matchPattern(pattern, name) {
			return false
		}
	}

	if len(f.allowlist) == 0 {
		return true
	}

	for _, pattern := range f.allowlist {
		if matchPattern(pattern, name) {
			return true
		}
	}

	return false
}

// matchPattern treats malformed patterns as non-matching.
func matchPattern(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	if err != nil {
		return false
	}
	return matched
}
