package policy

import (
	"context"
	"time"
)

// CallTimeout is the default wall-clock budget for a single policy
// evaluation, per §5 of the specification.
const CallTimeout = 100 * time.Millisecond

// Decay evaluates a decay-scale lambda: (success, fail, energy,
// importance, recency_ms, base_half_life_ms) -> scale, clamped to
// [0.1, 10] by the caller (decay.Decay), not here.
func (ev *Evaluator) Decay(ctx context.Context, source string, success, fail int, energy, importance, recencyMs, baseHalfLifeMs float64) (float64, error) {
	args := []Value{
		NumValue(float64(success)), NumValue(float64(fail)), NumValue(energy),
		NumValue(importance), NumValue(recencyMs), NumValue(baseHalfLifeMs),
	}
	v, err := ev.evalWithTimeout(ctx, source, args)
	if err != nil {
		return 0, err
	}
	if v.Kind != KindNum {
		return 0, evalError("decay lambda must return a number")
	}
	return v.Num, nil
}

// RecallScoreArgs bundles the 8 positional inputs to a recall-score
// lambda.
type RecallScoreArgs struct {
	Activation, Recency, Importance, Access float64
	Success, Fail                           float64
	HourNorm, DayNorm                       float64
}

func (a RecallScoreArgs) values() []Value {
	return []Value{
		NumValue(a.Activation), NumValue(a.Recency), NumValue(a.Importance), NumValue(a.Access),
		NumValue(a.Success), NumValue(a.Fail), NumValue(a.HourNorm), NumValue(a.DayNorm),
	}
}

// RecallScore evaluates a single recall-score component lambda.
func (ev *Evaluator) RecallScore(ctx context.Context, source string, a RecallScoreArgs) (float64, error) {
	v, err := ev.evalWithTimeout(ctx, source, a.values())
	if err != nil {
		return 0, err
	}
	if v.Kind != KindNum {
		return 0, evalError("recall-score lambda must return a number")
	}
	return v.Num, nil
}

// RecallCombiner evaluates the optional combiner over a list of
// per-lambda component scores: (scores_list) -> score.
func (ev *Evaluator) RecallCombiner(ctx context.Context, source string, scores []float64) (float64, error) {
	vals := make([]Value, len(scores))
	for i, s := range scores {
		vals[i] = NumValue(s)
	}
	v, err := ev.evalWithTimeout(ctx, source, []Value{ListValue(vals)})
	if err != nil {
		return 0, err
	}
	if v.Kind != KindNum {
		return 0, evalError("recall-combiner lambda must return a number")
	}
	return v.Num, nil
}

// ExplorationArgs bundles the tail-region inputs an exploration lambda
// chooses from.
type ExplorationArgs struct {
	Limit, TailN                               int
	Acts, Recs, Imps, Accs, Succ, Fails, Hours, Days []float64
}

func floatsToList(fs []float64) Value {
	vals := make([]Value, len(fs))
	for i, f := range fs {
		vals[i] = NumValue(f)
	}
	return ListValue(vals)
}

// Exploration evaluates an exploration lambda, returning the chosen tail
// index or -1 to decline. A non-numeric or out-of-range result is treated
// as decline (-1) by the caller, not here.
func (ev *Evaluator) Exploration(ctx context.Context, source string, a ExplorationArgs) (int, error) {
	args := []Value{
		NumValue(float64(a.Limit)), NumValue(float64(a.TailN)),
		floatsToList(a.Acts), floatsToList(a.Recs), floatsToList(a.Imps), floatsToList(a.Accs),
		floatsToList(a.Succ), floatsToList(a.Fails), floatsToList(a.Hours), floatsToList(a.Days),
	}
	v, err := ev.evalWithTimeout(ctx, source, args)
	if err != nil {
		return -1, err
	}
	if v.Kind != KindNum {
		return -1, evalError("exploration lambda must return a number")
	}
	return int(v.Num), nil
}

// PolicyGeneratorArgs bundles the ten success/fail histograms an adapt
// cycle feeds to the policy-generator lambda.
type PolicyGeneratorArgs struct {
	HoursSucc, HoursFail     []float64
	DaysSucc, DaysFail       []float64
	TagsSucc, TagsFail       []float64
	QueriesSucc, QueriesFail []float64
	EnergiesSucc, EnergiesFail []float64
}

// PolicyGenerator evaluates a policy-generator lambda, returning the new
// scorer source code it produces.
func (ev *Evaluator) PolicyGenerator(ctx context.Context, source string, a PolicyGeneratorArgs) (string, error) {
	args := []Value{
		floatsToList(a.HoursSucc), floatsToList(a.HoursFail),
		floatsToList(a.DaysSucc), floatsToList(a.DaysFail),
		floatsToList(a.TagsSucc), floatsToList(a.TagsFail),
		floatsToList(a.QueriesSucc), floatsToList(a.QueriesFail),
		floatsToList(a.EnergiesSucc), floatsToList(a.EnergiesFail),
	}
	v, err := ev.evalWithTimeout(ctx, source, args)
	if err != nil {
		return "", err
	}
	if v.Kind != KindStr {
		return "", evalError("policy-generator lambda must return a string")
	}
	return v.Str, nil
}

func (ev *Evaluator) evalWithTimeout(ctx context.Context, source string, args []Value) (Value, error) {
	cctx, cancel := context.WithTimeout(ctx, CallTimeout)
	defer cancel()
	return ev.Eval(cctx, source, args)
}
