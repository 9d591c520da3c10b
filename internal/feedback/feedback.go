// Package feedback implements recall session recording, outcome
// attribution, and policy source versioning (§4.9).
package feedback

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	mnemoerrors "mnemo/internal/errors"
	"mnemo/internal/graph"
)

// RecordSession appends a recall session for later feedback attribution.
func RecordSession(state *graph.State, now time.Time, items, policyIDs []string, query string, energy float64) {
	state.PushSession(graph.Session{
		T:         now,
		Items:     items,
		PolicyIDs: policyIDs,
		Query:     query,
		Energy:    energy,
		Hour:      now.Hour(),
	})
}

// Feedback attributes outcome to the most recent prior session containing
// id: the item's own success/fail counters, and those of every policy
// version referenced by that session.
func Feedback(state *graph.State, id string, outcome bool) error {
	item, ok := state.Items[id]
	if !ok {
		return mnemoerrors.NotFound("item %s", id)
	}

	var session *graph.Session
	for i := len(state.Sessions) - 1; i >= 0; i-- {
		for _, sid := range state.Sessions[i].Items {
			if sid == id {
				session = &state.Sessions[i]
				break
			}
		}
		if session != nil {
			break
		}
	}

	if outcome {
		item.Success++
	} else {
		item.Fail++
	}

	if session == nil {
		return nil
	}
	for _, pid := range session.PolicyIDs {
		creditPolicyID(state, pid, outcome)
	}
	return nil
}

// creditPolicyID increments success/fail for pid, whichever of the two
// places it currently lives: a retired PolicyVersions entry, or (far more
// often, since most feedback lands while a source is still active) the
// ActivePolicyStats accumulator keyed by the same content hash.
func creditPolicyID(state *graph.State, pid string, outcome bool) {
	for i := range state.PolicyVersions {
		if state.PolicyVersions[i].ID == pid {
			if outcome {
				state.PolicyVersions[i].Success++
			} else {
				state.PolicyVersions[i].Fail++
			}
			return
		}
	}

	if state.ActivePolicyStats == nil {
		state.ActivePolicyStats = make(map[string]*graph.PolicyStat)
	}
	stat, ok := state.ActivePolicyStats[pid]
	if !ok {
		stat = &graph.PolicyStat{}
		state.ActivePolicyStats[pid] = stat
	}
	if outcome {
		stat.Success++
	} else {
		stat.Fail++
	}
}

// HashSource content-addresses a policy source into the version id used
// by list-policy-versions and session.PolicyIDs.
func HashSource(src string) string {
	sum := sha256.Sum256([]byte(src))
	return hex.EncodeToString(sum[:])[:16]
}

// SetPolicyFn installs newSource for the named slot, retiring the prior
// source (if any) into PolicyVersions under a content-addressed id, and
// invalidates the manifest cache. Returns the id under which the new
// source will be referenced by future sessions.
func SetPolicyFn(state *graph.State, name string, newSource string, now time.Time, invalidate func()) (string, error) {
	prior, err := getPolicyFnField(state, name)
	if err != nil {
		return "", err
	}
	if prior != "" {
		priorID := HashSource(prior)
		version := graph.Version{
			ID:        priorID,
			Name:      name,
			Source:    prior,
			CreatedAt: now,
		}
		if stat, ok := state.ActivePolicyStats[priorID]; ok {
			version.Success = stat.Success
			version.Fail = stat.Fail
			delete(state.ActivePolicyStats, priorID)
		}
		state.PushVersion(version)
	}
	if err := setPolicyFnField(state, name, newSource); err != nil {
		return "", err
	}
	if invalidate != nil {
		invalidate()
	}
	return HashSource(newSource), nil
}

// GetPolicyFn returns the currently installed source for the named
// policy slot ("decay", "recall-score", "recall-combiner", "exploration",
// "policy-generator").
func GetPolicyFn(state *graph.State, name string) (string, error) {
	return getPolicyFnField(state, name)
}

// PolicySlots lists the named policy slots set-policy-fn/get-policy-fn
// accept, in the order list-policy-versions should report them.
var PolicySlots = []string{"decay", "recall-score", "recall-combiner", "exploration", "policy-generator"}

func getPolicyFnField(state *graph.State, name string) (string, error) {
	switch name {
	case "decay":
		return state.Policy.DecayFn, nil
	case "recall-score":
		return state.Policy.RecallScoreFn, nil
	case "recall-combiner":
		return state.Policy.RecallCombinerFn, nil
	case "exploration":
		return state.Policy.ExplorationFn, nil
	case "policy-generator":
		return state.Policy.PolicyGeneratorFn, nil
	default:
		return "", mnemoerrors.Validation("unknown policy slot %q", name)
	}
}

func setPolicyFnField(state *graph.State, name, src string) error {
	switch name {
	case "decay":
		state.Policy.DecayFn = src
	case "recall-score":
		state.Policy.RecallScoreFn = src
	case "recall-combiner":
		state.Policy.RecallCombinerFn = src
	case "exploration":
		state.Policy.ExplorationFn = src
	case "policy-generator":
		state.Policy.PolicyGeneratorFn = src
	default:
		return mnemoerrors.Validation("unknown policy slot %q", name)
	}
	return nil
}
