package authflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmission_Lifecycle(t *testing.T) {
	sub := newSubmission()
	assert.Equal(t, StageIdle, sub.Stage())

	select {
	case <-sub.Done():
		t.Fatal("done before settling")
	default:
	}

	sub.advance(StageSigningIn)
	sub.advance(StageCreatingAccount)
	boom := errors.New("boom")
	sub.finish(StageFailed, boom)

	<-sub.Done()
	assert.ErrorIs(t, sub.Wait(), boom)
	assert.Equal(t, []Stage{StageIdle, StageSigningIn, StageCreatingAccount, StageFailed}, sub.Steps())
	assert.True(t, sub.Stage().Terminal())
}

func TestSubmission_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []Stage
	}{
		{"fail straight from sign-in", []Stage{StageSigningIn, StageFailed}},
		{"sign in after creating", []Stage{StageCreatingAccount, StageSigningIn}},
		{"succeed from idle", []Stage{StageSucceeded}},
		{"leave a terminal stage", []Stage{StageSigningIn, StageSucceeded, StageCreatingAccount}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := newSubmission()
			last := len(tt.path) - 1
			for _, st := range tt.path[:last] {
				sub.advance(st)
			}
			require.Panics(t, func() { sub.advance(tt.path[last]) })
		})
	}
}

func TestStage_String(t *testing.T) {
	assert.Equal(t, "idle", StageIdle.String())
	assert.Equal(t, "signing_in", StageSigningIn.String())
	assert.Equal(t, "creating_account", StageCreatingAccount.String())
	assert.Equal(t, "succeeded", StageSucceeded.String())
	assert.Equal(t, "failed", StageFailed.String())
	assert.False(t, StageCreatingAccount.Terminal())
}
