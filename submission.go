package authflow

import (
	"fmt"
	"sync"
)

// Stage is a step of a form submission.
type Stage int

const (
	StageIdle Stage = iota
	StageSigningIn
	StageCreatingAccount
	StageSucceeded
	StageFailed
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageSigningIn:
		return "signing_in"
	case StageCreatingAccount:
		return "creating_account"
	case StageSucceeded:
		return "succeeded"
	case StageFailed:
		return "failed"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Terminal returns true for StageSucceeded and StageFailed
func (s Stage) Terminal() bool {
	return s == StageSucceeded || s == StageFailed
}

// account creation is only ever attempted after sign-in has returned
var stageTransitions = map[Stage][]Stage{
	StageIdle:            {StageSigningIn, StageCreatingAccount},
	StageSigningIn:       {StageCreatingAccount, StageSucceeded},
	StageCreatingAccount: {StageSucceeded, StageFailed},
}

// Submission tracks one in-flight form submission from the moment it passed
// validation until the provider settled it.
type Submission struct {
	mu    sync.Mutex
	stage Stage
	steps []Stage
	err   error
	done  chan struct{}
}

func newSubmission() *Submission {
	return &Submission{
		stage: StageIdle,
		steps: []Stage{StageIdle},
		done:  make(chan struct{}),
	}
}

// advance moves to the next stage. An illegal move is a programming error.
func (s *Submission) advance(next Stage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := false
	for _, st := range stageTransitions[s.stage] {
		if st == next {
			allowed = true
			break
		}
	}
	if !allowed {
		panic(fmt.Sprintf("authflow: illegal submission transition %s -> %s", s.stage, next))
	}
	s.stage = next
	s.steps = append(s.steps, next)
}

func (s *Submission) finish(final Stage, err error) {
	s.advance(final)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.done)
}

// Stage returns the current stage
func (s *Submission) Stage() Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stage
}

// Steps returns every stage visited so far, starting with StageIdle
func (s *Submission) Steps() []Stage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Stage, len(s.steps))
	copy(out, s.steps)
	return out
}

// Done is closed once the submission has settled
func (s *Submission) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until the submission settles and returns the final provider
// error, or nil on success.
func (s *Submission) Wait() error {
	<-s.done
	return s.Err()
}

// Err returns the final provider error (nil while running or on success)
func (s *Submission) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
