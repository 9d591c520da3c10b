package engine

import (
	"context"

	"mnemo/internal/feedback"
	"mnemo/internal/graph"
)

// GetPolicy returns a copy of the currently installed policy sources.
func (e *Engine) GetPolicy() graph.Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.core.State.Policy
}

// SetPolicy wholesale-replaces the installed policy, bypassing the
// version-retirement history set-policy-fn performs for single-slot
// replacements. Used to load a previously exported policy in one shot.
func (e *Engine) SetPolicy(pol graph.Policy) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.core.State.Policy = pol
	e.invalidateManifest()
	e.core.State.PushHistory(graph.HistoryEntry{T: e.now(), Op: "set-policy"})
}

// GetPolicyFn returns the source currently installed for the named
// policy slot.
func (e *Engine) GetPolicyFn(name string) (string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return feedback.GetPolicyFn(e.core.State, name)
}

// SetPolicyFn installs newSource for the named slot, retiring the prior
// source into PolicyVersions under a content-addressed id (§4.9).
func (e *Engine) SetPolicyFn(name, newSource string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := feedback.SetPolicyFn(e.core.State, name, newSource, e.now(), e.invalidateManifest)
	if err != nil {
		return "", err
	}
	e.core.State.PushHistory(graph.HistoryEntry{T: e.now(), Op: "set-policy-fn", Details: map[string]any{"name": name, "id": id}})
	return id, nil
}

// VersionView is one entry in the list-policy-versions view: either a
// retired version from PolicyVersions or the currently active source for
// a slot, synthesized so both halves are visible in one call.
type VersionView struct {
	ID        string
	Name      string
	Source    string
	Active    bool
	Success   int
	Fail      int
}

// ListPolicyVersions returns every retired policy version plus, for each
// slot with a non-empty installed source, a synthesized entry for the
// currently active version. Two consecutive set-policy-fn calls on the
// same slot therefore surface as two distinct entries: the first call's
// source (retired) and the second call's source (active) — see scenario
// 5, which set-policy-fn alone cannot produce since it only ever retires
// the *previous* source.
func (e *Engine) ListPolicyVersions() []VersionView {
	e.mu.RLock()
	defer e.mu.RUnlock()

	state := e.core.State
	out := make([]VersionView, 0, len(state.PolicyVersions)+len(feedback.PolicySlots))
	for _, v := range state.PolicyVersions {
		out = append(out, VersionView{ID: v.ID, Name: v.Name, Source: v.Source, Success: v.Success, Fail: v.Fail})
	}
	for _, slot := range feedback.PolicySlots {
		src, _ := feedback.GetPolicyFn(state, slot)
		if src == "" {
			continue
		}
		id := feedback.HashSource(src)
		view := VersionView{ID: id, Name: slot, Source: src, Active: true}
		if stat, ok := state.ActivePolicyStats[id]; ok {
			view.Success = stat.Success
			view.Fail = stat.Fail
		}
		out = append(out, view)
	}
	return out
}

// SetRecallScorers installs a set of component recall-score lambdas and
// an optional combiner in one call.
func (e *Engine) SetRecallScorers(fns []string, combiner string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.core.State.Policy.RecallScoreFns = fns
	e.core.State.Policy.RecallCombinerFn = combiner
	e.invalidateManifest()
	e.core.State.PushHistory(graph.HistoryEntry{T: e.now(), Op: "set-recall-scorers", Details: map[string]any{"count": len(fns)}})
}

// SetPolicyFnGenerator installs the policy-generator lambda used by
// AdaptPolicy.
func (e *Engine) SetPolicyFnGenerator(source string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.core.State.Policy.PolicyGeneratorFn = source
	e.invalidateManifest()
	e.core.State.PushHistory(graph.HistoryEntry{T: e.now(), Op: "set-policy-fn-generator"})
}

// AdaptPolicy builds success/fail histograms from recent sessions and
// invokes the installed policy-generator lambda for a new recall-score
// component (§4.9).
func (e *Engine) AdaptPolicy(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	return feedback.AdaptPolicy(ctx, e.core.State, e.ev, e.now(), e.invalidateManifest)
}
