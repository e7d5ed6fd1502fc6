// Package action resolves action names requested by a response to registered
// actions and executes them.
package action

import (
	"strings"

	"github.com/hupe1980/plugmesh/core"
)

// Normalize lower-cases name and strips underscores.
func Normalize(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), "_", "")
}

func matches(requested, candidate string) bool {
	c := Normalize(candidate)
	if c == "" {
		return false
	}

	return strings.Contains(c, requested) || strings.Contains(requested, c)
}

// Resolve finds the action for requested. A first pass compares action names,
// a second pass compares aliases; both accept normalized substring
// containment in either direction and return the first match in
// registration order.
func Resolve(actions []core.Action, requested string) (core.Action, bool) {
	req := Normalize(requested)
	if req == "" {
		return nil, false
	}

	for _, a := range actions {
		if matches(req, a.Name()) {
			return a, true
		}
	}

	for _, a := range actions {
		for _, alias := range a.Similes() {
			if matches(req, alias) {
				return a, true
			}
		}
	}

	return nil, false
}
