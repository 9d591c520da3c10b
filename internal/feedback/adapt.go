package feedback

import (
	"context"
	"time"

	"mnemo/internal/graph"
	"mnemo/internal/policy"
)

// buildHistograms classifies each recent session as success- or
// fail-leaning by comparing the current cumulative success/fail counts of
// its referenced items, then buckets the session's hour, weekday, tag
// count, query length, and process energy into the matching list. Ties
// (equal success and fail) are skipped since they carry no signal.
func buildHistograms(state *graph.State) policy.PolicyGeneratorArgs {
	var args policy.PolicyGeneratorArgs

	for _, sess := range state.Sessions {
		var succ, fail int
		var tagCount float64
		for _, id := range sess.Items {
			item, ok := state.Items[id]
			if !ok {
				continue
			}
			succ += item.Success
			fail += item.Fail
			tagCount += float64(len(item.Tags))
		}
		if succ == fail {
			continue
		}

		hourNorm := float64(sess.Hour) / 23
		dayNorm := float64(sess.T.Weekday()) / 6
		queryLen := float64(len(sess.Query))

		if succ > fail {
			args.HoursSucc = append(args.HoursSucc, hourNorm)
			args.DaysSucc = append(args.DaysSucc, dayNorm)
			args.TagsSucc = append(args.TagsSucc, tagCount)
			args.QueriesSucc = append(args.QueriesSucc, queryLen)
			args.EnergiesSucc = append(args.EnergiesSucc, sess.Energy)
		} else {
			args.HoursFail = append(args.HoursFail, hourNorm)
			args.DaysFail = append(args.DaysFail, dayNorm)
			args.TagsFail = append(args.TagsFail, tagCount)
			args.QueriesFail = append(args.QueriesFail, queryLen)
			args.EnergiesFail = append(args.EnergiesFail, sess.Energy)
		}
	}
	return args
}

// AdaptPolicy builds success/fail histograms from recent sessions, asks
// the installed policy-generator lambda for a new recall-score source,
// appends it to recallScoreFns, and invalidates the manifest cache.
func AdaptPolicy(ctx context.Context, state *graph.State, ev *policy.Evaluator, now time.Time, invalidate func()) (string, error) {
	args := buildHistograms(state)
	newSrc, err := ev.PolicyGenerator(ctx, state.Policy.PolicyGeneratorFn, args)
	if err != nil {
		return "", err
	}
	state.Policy.RecallScoreFns = append(state.Policy.RecallScoreFns, newSrc)
	if invalidate != nil {
		invalidate()
	}
	state.PushHistory(graph.HistoryEntry{T: now, Op: "adapt-policy", Details: map[string]any{"added": true}})
	return newSrc, nil
}
