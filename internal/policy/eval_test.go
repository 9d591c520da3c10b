package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvalArithmetic(t *testing.T) {
	ev := NewEvaluator()
	v, err := ev.Eval(context.Background(), `(lambda (x y) (+ (* x 2) y))`, []Value{NumValue(3), NumValue(4)})
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Num)
}

func TestEvalLetStarAndIf(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (x) (let* ((doubled (* x 2)) (flag (> doubled 5))) (if flag doubled 0)))`
	v, err := ev.Eval(context.Background(), src, []Value{NumValue(10)})
	require.NoError(t, err)
	assert.Equal(t, 20.0, v.Num)

	v2, err := ev.Eval(context.Background(), src, []Value{NumValue(1)})
	require.NoError(t, err)
	assert.Equal(t, 0.0, v2.Num)
}

func TestEvalListOps(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (xs) (length (filter (lambda (x) (> x 2)) xs)))`
	v, err := ev.Eval(context.Background(), src, []Value{ListValue([]Value{NumValue(1), NumValue(5), NumValue(3)})})
	require.NoError(t, err)
	assert.Equal(t, 2.0, v.Num)
}

func TestEvalMapNthFirst(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (xs) (first (map (lambda (x) (* x 10)) xs)))`
	v, err := ev.Eval(context.Background(), src, []Value{ListValue([]Value{NumValue(1), NumValue(2)})})
	require.NoError(t, err)
	assert.Equal(t, 10.0, v.Num)
}

func TestEvalArityMismatch(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.Eval(context.Background(), `(lambda (x y) (+ x y))`, []Value{NumValue(1)})
	assert.Error(t, err)
}

func TestEvalDivisionByZero(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.Eval(context.Background(), `(lambda (x) (/ x 0))`, []Value{NumValue(1)})
	assert.Error(t, err)
}

func TestEvalUnboundSymbol(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.Eval(context.Background(), `(lambda (x) (+ x y))`, []Value{NumValue(1)})
	assert.Error(t, err)
}

func TestEvalMalformedSource(t *testing.T) {
	ev := NewEvaluator()
	_, err := ev.Eval(context.Background(), `(not-a-lambda 1 2)`, []Value{})
	assert.Error(t, err)
}

func TestEvalRecursionDepthBounded(t *testing.T) {
	ev := &Evaluator{MaxSteps: DefaultMaxSteps, MaxDepth: 4}
	// Deeply nested arithmetic should exceed the small depth budget.
	src := `(lambda (x) (+ 1 (+ 1 (+ 1 (+ 1 (+ 1 (+ 1 (+ 1 (+ 1 x)))))))))`
	_, err := ev.Eval(context.Background(), src, []Value{NumValue(1)})
	assert.Error(t, err)
}

func TestDecayCallSite(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (success fail energy importance recency base) (+ 0.5 (/ success (+ success fail 1))))`
	scale, err := ev.Decay(context.Background(), src, 3, 1, 0.5, 0.5, 1000, 604800000)
	require.NoError(t, err)
	assert.InDelta(t, 0.5+3.0/5.0, scale, 1e-9)
}

func TestPolicyGeneratorReturnsString(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (hs hf ds df ts tf qs qf es ef) "(lambda (activation recency importance access success fail hour_norm day_norm) activation)")`
	code, err := ev.PolicyGenerator(context.Background(), src, PolicyGeneratorArgs{})
	require.NoError(t, err)
	assert.Contains(t, code, "lambda")
}

func TestExplorationDeclines(t *testing.T) {
	ev := NewEvaluator()
	src := `(lambda (limit tail_n acts recs imps accs succ fails hours days) -1)`
	idx, err := ev.Exploration(context.Background(), src, ExplorationArgs{Limit: 5, TailN: 3})
	require.NoError(t, err)
	assert.Equal(t, -1, idx)
}
