package domain

import (
	contractordomain "github.com/tradecore/leadengine/internal/contractor/domain"
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
)

// EligibleMethods returns the payment methods a contractor may use for a
// job. This is a pure capability check over snapshots; the purchase path
// re-validates the chosen method at commit time, so a subscription
// cancelled mid-flight cannot slip through.
func EligibleMethods(contractor contractordomain.Contractor, job jobdomain.Job) []Method {
	methods := make([]Method, 0, 3)

	if CreditEligible(contractor, job) {
		methods = append(methods, MethodCredit)
	}

	// Pay-per-lead by card is always open.
	methods = append(methods, MethodStripe)

	if contractor.IsSubscriber() {
		methods = append(methods, MethodStripeSubscriber)
	}

	return methods
}

// CreditEligible reports whether a credit debit may be attempted: active
// subscribers with a positive balance, or the lifetime free-trial credit
// against a small job.
func CreditEligible(contractor contractordomain.Contractor, job jobdomain.Job) bool {
	if contractor.CreditsBalance < 1 {
		return false
	}
	if contractor.IsSubscriber() {
		return true
	}
	return job.JobSize == jobdomain.JobSizeSmall && contractor.HasUnusedTrialCredit()
}

// MethodEligible reports whether the requested method is in the eligible set.
func MethodEligible(contractor contractordomain.Contractor, job jobdomain.Job, method Method) bool {
	for _, m := range EligibleMethods(contractor, job) {
		if m == method {
			return true
		}
	}
	return false
}
