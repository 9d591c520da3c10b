// Package graph implements the in-memory typed store of memory items and
// edges together with its mutation primitives (remember, associate,
// get_item, trace) and the invariants that must hold after every
// mutation.
package graph

import (
	"strings"
	"time"

	mnemoerrors "mnemo/internal/errors"
)

// Kind is the closed set of memory item kinds.
type Kind string

const (
	KindEvent      Kind = "event"
	KindFact       Kind = "fact"
	KindPlan       Kind = "plan"
	KindReflection Kind = "reflection"
	KindEntity     Kind = "entity"
	KindPrinciple  Kind = "principle"
	KindTechnique  Kind = "technique"
	KindWarning    Kind = "warning"
	KindWorkflow   Kind = "workflow"
	KindBridge     Kind = "bridge"
)

var validKinds = map[Kind]bool{
	KindEvent: true, KindFact: true, KindPlan: true, KindReflection: true,
	KindEntity: true, KindPrinciple: true, KindTechnique: true,
	KindWarning: true, KindWorkflow: true, KindBridge: true,
}

// Valid reports whether k is one of the closed set of item kinds.
func (k Kind) Valid() bool { return validKinds[k] }

// Item is a single node in the associative memory graph.
type Item struct {
	ID             string
	Kind           Kind
	Text           string
	Tags           []string
	Importance     float64
	Energy         float64
	TTL            string // duration string, e.g. "30d"; empty = no expiry
	Scope          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	LastAccessedAt time.Time // zero value = never accessed
	AccessCount    int
	Success        int
	Fail           int

	// DecayedAt is decay's own last-touch timestamp, separate from
	// UpdatedAt: decay runs on a schedule independent of remember/feedback
	// and must not refresh the content-mutation timestamp the temporal
	// layers (§4.8) key off of. Zero until the first decay pass.
	DecayedAt time.Time
}

// Clamp01 clamps x into [0,1].
func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// dedupTags preserves order while dropping duplicates and empty entries.
func dedupTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// validateTags rejects an empty-string tag anywhere in the input; an
// empty slice is fine (tags are optional).
func validateTags(tags []string) error {
	for _, t := range tags {
		if strings.TrimSpace(t) == "" {
			return mnemoerrors.Validation("tag cannot be empty")
		}
	}
	return nil
}
