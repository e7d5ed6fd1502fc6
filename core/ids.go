package core

import (
	"strings"

	"github.com/google/uuid"
)

// idNamespace scopes every deterministic id produced by DeterministicID.
var idNamespace = uuid.MustParse("6f1c7a52-2a4e-4b8e-9d43-5c0f0e6d8a11")

// NewID generates a new random identifier.
func NewID() string { return uuid.NewString() }

// DeterministicID derives a stable identifier from the given parts. The same
// parts always yield the same id, which makes re-ingesting identical input a
// no-op for idempotent writers.
func DeterministicID(parts ...string) string {
	return uuid.NewSHA1(idNamespace, []byte(strings.Join(parts, "\x1f"))).String()
}
