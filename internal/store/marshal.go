package store

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"mnemo/internal/graph"
)

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return r.Replace(s)
}

func quoted(s string) string { return `"` + escape(s) + `"` }

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Marshal renders state into the canonical snapshot s-expression of §6.
// Item and edge order is sorted by id for determinism (invariant v:
// snapshot -> parse -> snapshot is idempotent on non-derived fields).
func Marshal(state *graph.State) string {
	var b strings.Builder
	b.WriteString("(memory\n")
	fmt.Fprintf(&b, "  (id %s)\n", quoted(state.WorkspaceID))
	fmt.Fprintf(&b, "  (born %d)\n", timeToMs(state.BornAt))
	fmt.Fprintf(&b, "  (energy %s)\n", formatNum(state.Energy))
	fmt.Fprintf(&b, "  (threshold %s)\n", formatNum(state.Threshold))
	writePolicy(&b, state.Policy)
	writeItems(&b, state.Items)
	writeEdges(&b, state.Edges)
	writeHistory(&b, state.History)
	b.WriteString(")")
	return b.String()
}

func writePolicy(b *strings.Builder, pol graph.Policy) {
	b.WriteString("  (policy")
	if pol.DecayFn != "" {
		fmt.Fprintf(b, " (decayFn %s)", quoted(pol.DecayFn))
	}
	if pol.RecallScoreFn != "" {
		fmt.Fprintf(b, " (recallScoreFn %s)", quoted(pol.RecallScoreFn))
	}
	if len(pol.RecallScoreFns) > 0 {
		b.WriteString(" (recallScoreFns (list")
		for _, fn := range pol.RecallScoreFns {
			fmt.Fprintf(b, " %s", quoted(fn))
		}
		b.WriteString("))")
	}
	if pol.RecallCombinerFn != "" {
		fmt.Fprintf(b, " (recallCombinerFn %s)", quoted(pol.RecallCombinerFn))
	}
	if pol.ExplorationFn != "" {
		fmt.Fprintf(b, " (explorationFn %s)", quoted(pol.ExplorationFn))
	}
	if pol.PolicyGeneratorFn != "" {
		fmt.Fprintf(b, " (policyGeneratorFn %s)", quoted(pol.PolicyGeneratorFn))
	}
	b.WriteString(")\n")
}

func writeItems(b *strings.Builder, items map[string]*graph.Item) {
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	b.WriteString("  (items (list")
	for _, id := range ids {
		item := items[id]
		b.WriteString(" &(")
		fmt.Fprintf(b, ":id %s", quoted(item.ID))
		fmt.Fprintf(b, " :type %s", quoted(string(item.Kind)))
		fmt.Fprintf(b, " :text %s", quoted(item.Text))
		b.WriteString(" :tags (list")
		for _, tag := range item.Tags {
			fmt.Fprintf(b, " %s", quoted(tag))
		}
		b.WriteString(")")
		fmt.Fprintf(b, " :importance %s", formatNum(item.Importance))
		fmt.Fprintf(b, " :energy %s", formatNum(item.Energy))
		if item.TTL != "" {
			fmt.Fprintf(b, " :ttl %s", quoted(item.TTL))
		}
		if item.Scope != "" {
			fmt.Fprintf(b, " :scope %s", quoted(item.Scope))
		}
		fmt.Fprintf(b, " :createdAt %d", timeToMs(item.CreatedAt))
		fmt.Fprintf(b, " :updatedAt %d", timeToMs(item.UpdatedAt))
		if !item.LastAccessedAt.IsZero() {
			fmt.Fprintf(b, " :lastAccessedAt %d", timeToMs(item.LastAccessedAt))
		}
		if !item.DecayedAt.IsZero() {
			fmt.Fprintf(b, " :decayedAt %d", timeToMs(item.DecayedAt))
		}
		fmt.Fprintf(b, " :accessCount %d", item.AccessCount)
		fmt.Fprintf(b, " :success %d", item.Success)
		fmt.Fprintf(b, " :fail %d", item.Fail)
		b.WriteString(")")
	}
	b.WriteString("))\n")
}

func writeEdges(b *strings.Builder, edges []*graph.Edge) {
	sorted := append([]*graph.Edge(nil), edges...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].From != sorted[j].From {
			return sorted[i].From < sorted[j].From
		}
		if sorted[i].To != sorted[j].To {
			return sorted[i].To < sorted[j].To
		}
		return sorted[i].Relation < sorted[j].Relation
	})

	b.WriteString("  (edges (list")
	for _, e := range sorted {
		b.WriteString(" &(")
		fmt.Fprintf(b, ":from %s :to %s :relation %s :weight %s :lastReinforcedAt %d",
			quoted(e.From), quoted(e.To), quoted(e.Relation), formatNum(e.Weight), timeToMs(e.LastReinforcedAt))
		b.WriteString(")")
	}
	b.WriteString("))\n")
}

func writeHistory(b *strings.Builder, history []graph.HistoryEntry) {
	tail := history
	if len(tail) > snapshotHistoryCap {
		tail = tail[len(tail)-snapshotHistoryCap:]
	}
	b.WriteString("  (history (list")
	for _, h := range tail {
		b.WriteString(" &(")
		fmt.Fprintf(b, ":t %d :op %s", timeToMs(h.T), quoted(h.Op))
		b.WriteString(")")
	}
	b.WriteString("))\n")
}
