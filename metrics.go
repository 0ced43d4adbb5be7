package authflow

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes
const (
	OutcomeInvalid  = "invalid"
	OutcomeDropped  = "dropped"
	OutcomeSignedIn = "signed_in"
	OutcomeCreated  = "created"
	OutcomeFailed   = "failed"
)

// Metrics counts form submissions and session phase changes.
// A nil *Metrics records nothing.
type Metrics struct {
	submissions *prometheus.CounterVec
	phases      *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg when it is not nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authflow_form_submissions_total",
			Help: "Total number of credential form submissions by form and outcome",
		}, []string{"form", "outcome"}),
		phases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authflow_session_phase_transitions_total",
			Help: "Total number of session phase transitions by target phase",
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.submissions, m.phases)
	}
	return m
}

func (m *Metrics) observeSubmission(form, outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(form, outcome).Inc()
}

func (m *Metrics) observePhase(p Phase) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(p.String()).Inc()
}
