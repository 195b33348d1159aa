package domain

import (
	perr "olivebranch/internal/platform/errors"
)

// Allowed transitions for jobs and requests. Terminal states are write-once:
// nothing transitions out of completed/failed/canceled. A job re-enters
// queued only from a non-terminal state, and only with not_before in the
// future (enforced by the repos that move it there)
var jobTransitions = map[JobStatus][]JobStatus{
	JobQueued:         {JobProcessing, JobCanceled},
	JobProcessing:     {JobQueued, JobBatchSubmitted, JobCompleted, JobFailed, JobCanceled},
	JobBatchSubmitted: {JobQueued, JobCompleted, JobFailed, JobCanceled},
	JobCompleted:      {},
	JobFailed:         {},
	JobCanceled:       {},
}

var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestQueued:     {RequestProcessing, RequestCompleted, RequestCanceled},
	RequestProcessing: {RequestCompleted, RequestCanceled},
	RequestCompleted:  {},
	RequestCanceled:   {},
}

// CanJobTransition reports whether from -> to is a legal job transition
func CanJobTransition(from, to JobStatus) bool {
	for _, t := range jobTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckJobTransition returns a conflict error for an illegal job transition
func CheckJobTransition(from, to JobStatus) error {
	if !CanJobTransition(from, to) {
		return perr.Conflictf("illegal job transition %s -> %s", from, to)
	}
	return nil
}

// CanRequestTransition reports whether from -> to is a legal request transition
func CanRequestTransition(from, to RequestStatus) bool {
	for _, t := range requestTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// CheckRequestTransition returns a conflict error for an illegal request transition
func CheckRequestTransition(from, to RequestStatus) error {
	if !CanRequestTransition(from, to) {
		return perr.Conflictf("illegal request transition %s -> %s", from, to)
	}
	return nil
}
