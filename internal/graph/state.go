package graph

import "time"

// Caps on the bounded lists carried in State, per the external interface
// contract (§6): history 1,000 entries, sessions 100, policy versions 200.
const (
	HistoryCap        = 1000
	SessionCap        = 100
	PolicyVersionCap  = 200
)

// HistoryEntry is one line of the operational history used by the
// manifest's "recent activity" section and by introspection of evaluator
// failures.
type HistoryEntry struct {
	T       time.Time
	Op      string
	Details map[string]any
}

// Session records one recall call for later feedback attribution.
type Session struct {
	T         time.Time
	Items     []string
	PolicyIDs []string
	Query     string
	Energy    float64
	Hour      int
}

// Policy holds the currently installed lambda sources. An empty field
// means "use the built-in fallback" for that call site.
type Policy struct {
	DecayFn           string
	RecallScoreFn     string
	RecallScoreFns    []string
	RecallCombinerFn  string
	ExplorationFn     string
	PolicyGeneratorFn string
}

// Version is a retired policy source, content-addressed by hash.
type Version struct {
	ID        string
	Name      string
	Source    string
	CreatedAt time.Time
	Success   int
	Fail      int
}

// PolicyStat accumulates feedback for a policy source that is still
// active (not yet retired into PolicyVersions), keyed by the source's
// content hash. Feedback credits land here until the source is retired
// by a later set-policy-fn, at which point the totals carry over into
// the new Version entry.
type PolicyStat struct {
	Success int
	Fail    int
}

// State is the process-wide associative memory store. All access is
// mediated by engine.Engine's single lock; State itself performs no
// locking.
type State struct {
	WorkspaceID string
	BornAt      time.Time
	Energy      float64
	Threshold   float64

	Items map[string]*Item
	Edges []*Edge

	History  []HistoryEntry
	Sessions []Session

	Policy         Policy
	PolicyVersions []Version

	// ActivePolicyStats accumulates success/fail feedback for the
	// currently-installed source of each slot, keyed by HashSource(source).
	// Not persisted across snapshots, matching Sessions and PolicyVersions.
	ActivePolicyStats map[string]*PolicyStat
}

// New returns an empty state with the documented defaults.
func New(workspaceID string, born time.Time) *State {
	return &State{
		WorkspaceID: workspaceID,
		BornAt:      born,
		Energy:      1,
		Threshold:   0.2,
		Items:             make(map[string]*Item),
		Edges:             nil,
		ActivePolicyStats: make(map[string]*PolicyStat),
	}
}

// PushHistory appends an entry, truncating to HistoryCap from the front
// (invariant 3: history is bounded on every push).
func (s *State) PushHistory(e HistoryEntry) {
	s.History = append(s.History, e)
	if len(s.History) > HistoryCap {
		s.History = s.History[len(s.History)-HistoryCap:]
	}
}

// PushSession appends a recall session, truncating to SessionCap.
func (s *State) PushSession(sess Session) {
	s.Sessions = append(s.Sessions, sess)
	if len(s.Sessions) > SessionCap {
		s.Sessions = s.Sessions[len(s.Sessions)-SessionCap:]
	}
}

// PushVersion appends a retired policy version, truncating to
// PolicyVersionCap from the front so the oldest versions age out first.
func (s *State) PushVersion(v Version) {
	s.PolicyVersions = append(s.PolicyVersions, v)
	if len(s.PolicyVersions) > PolicyVersionCap {
		s.PolicyVersions = s.PolicyVersions[len(s.PolicyVersions)-PolicyVersionCap:]
	}
}

// RecomputeEnergy sets State.Energy to the mean of all item energies (or
// leaves it unchanged if there are no items), per §4.7.
func (s *State) RecomputeEnergy() {
	if len(s.Items) == 0 {
		return
	}
	var sum float64
	for _, it := range s.Items {
		sum += it.Energy
	}
	s.Energy = sum / float64(len(s.Items))
}
