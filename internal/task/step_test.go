package task

import (
	"context"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/calcifer/internal/inventory"
)

func newTestContext(ctx context.Context) *Context {
	return &Context{
		Context:  ctx,
		Host:     inventory.NewHost("cp-1", "10.0.0.10", inventory.GroupControlPlane),
		TaskName: "test_task",
		Logger:   logr.Discard(),
	}
}

func TestSequence_StopsAtFirstFailure(t *testing.T) {
	tc := newTestContext(context.Background())

	var ran []string
	step := func(name string, ok bool) Step {
		return Step{Name: name, Run: func(*Context) StepResult {
			ran = append(ran, name)
			if !ok {
				return StepFailedf("%s broke", name)
			}
			return StepOK(name+" done", nil)
		}}
	}

	res, ok := Sequence(tc, step("a", true), step("b", false), step("c", true))
	assert.False(t, ok)
	assert.Equal(t, "b broke", res.Message)
	assert.Equal(t, []string{"a", "b"}, ran)
}

func TestSequence_AllSucceed(t *testing.T) {
	tc := newTestContext(context.Background())

	res, ok := Sequence(tc,
		Step{Name: "one", Run: func(*Context) StepResult { return StepOK("first", 1) }},
		Step{Name: "two", Run: func(*Context) StepResult { return StepOK("second", 2) }},
	)
	assert.True(t, ok)
	assert.Equal(t, "second", res.Message)
	assert.Equal(t, 2, res.Data)
}

func TestSequence_Empty(t *testing.T) {
	res, ok := Sequence(newTestContext(context.Background()))
	assert.True(t, ok)
	assert.True(t, res.Success)
}

func TestSequence_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tc := newTestContext(ctx)

	called := false
	res, ok := Sequence(tc, Step{Name: "never", Run: func(*Context) StepResult {
		called = true
		return StepOK("", nil)
	}})
	assert.False(t, ok)
	assert.False(t, called)
	assert.Contains(t, res.Message, "cancelled before 'never'")
}

func TestRunStep_RecoversPanic(t *testing.T) {
	tc := newTestContext(context.Background())

	res := RunStep(tc, Step{Name: "explode", Run: func(*Context) StepResult {
		panic("boom")
	}})
	assert.False(t, res.Success)
	assert.Equal(t, "Exception in 'explode': boom", res.Message)
}

func TestRunStep_ReportsEveryStep(t *testing.T) {
	tc := newTestContext(context.Background())

	type report struct {
		step string
		ok   bool
	}
	var got []report
	tc.Steps = func(step string, res StepResult) {
		got = append(got, report{step, res.Success})
	}

	_, ok := Sequence(tc,
		Step{Name: "first", Run: func(*Context) StepResult { return StepOK("", nil) }},
		Step{Name: "second", Run: func(*Context) StepResult { panic("nope") }},
	)
	require.False(t, ok)
	assert.Equal(t, []report{{"first", true}, {"second", false}}, got)
}

func TestFromStep(t *testing.T) {
	res := FromStep(StepFailed("no kubeadm"))
	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, "no kubeadm", res.Message)
}
