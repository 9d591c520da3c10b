package graph

import (
	"math"
	"time"
)

// recencyHalfLife is the exponential half-life used to turn a timestamp
// into a [0,1] recency feature: an item touched just now scores 1, one
// touched a half-life ago scores 0.5, and so on.
const recencyHalfLife = 7 * 24 * time.Hour

// Recency maps an elapsed duration since t (relative to now) onto [0,1]
// via exponential decay, shared by recall's ranking candidates and the
// manifest generator's keyword weighting so "recent" means the same thing
// in both. A zero t (never touched) scores 0.
func Recency(t, now time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	dt := now.Sub(t)
	if dt < 0 {
		dt = 0
	}
	return Clamp01(math.Exp(-math.Ln2 * float64(dt) / float64(recencyHalfLife)))
}
