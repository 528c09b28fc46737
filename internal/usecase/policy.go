package usecase

import "AssessmentPipeline/internal/domain"

// PhasePolicy decides whether a phase outcome lets the run continue.
type PhasePolicy struct {
	MinimumStatus domain.RunStatus
	Retryable     bool
}

// Normalization feeds every score, so it must finish cleanly. Analysis and
// synthesis tolerate partial results and get one retry when nothing succeeds.
var phasePolicies = map[domain.PhaseName]PhasePolicy{
	domain.PhaseNormalize:  {MinimumStatus: domain.StatusComplete, Retryable: false},
	domain.PhaseAnalyze:    {MinimumStatus: domain.StatusPartial, Retryable: true},
	domain.PhaseSynthesize: {MinimumStatus: domain.StatusPartial, Retryable: true},
}

// PolicyFor returns the policy for name. Unknown phases must complete and
// are never retried.
func PolicyFor(name domain.PhaseName) PhasePolicy {
	if p, ok := phasePolicies[name]; ok {
		return p
	}
	return PhasePolicy{MinimumStatus: domain.StatusComplete}
}
