// Package pricing is the single source of truth for lead prices. Callers
// use it for previews and the purchase path uses it for the authoritative
// charge; nothing else recomputes prices.
package pricing

import (
	jobdomain "github.com/tradecore/leadengine/internal/job/domain"
)

// Static fallback prices in minor units, used when a job's service has no
// price table configured. Jobs must stay purchasable even with incomplete
// configuration.
const (
	FallbackSmallPrice   int64 = 1500
	FallbackMediumPrice  int64 = 3000
	FallbackLargePrice   int64 = 5000
	FallbackDefaultPrice int64 = 2500
)

// Resolve computes the lead price for a job. Priority: admin override on
// the job, then the service price table for the job's size, then the
// static fallback. Always returns a positive price.
func Resolve(job jobdomain.Job, service *jobdomain.Service) int64 {
	if job.LeadPriceOverride != nil && *job.LeadPriceOverride > 0 {
		return *job.LeadPriceOverride
	}

	if service != nil {
		if price := servicePrice(*service, job.JobSize); price > 0 {
			return price
		}
	}

	return fallbackPrice(job.JobSize)
}

// WithVAT returns the price marked up by the given VAT percentage,
// rounded down to minor units.
func WithVAT(price int64, ratePercent int64) int64 {
	if ratePercent <= 0 {
		return price
	}
	return price * (100 + ratePercent) / 100
}

func servicePrice(service jobdomain.Service, size jobdomain.JobSize) int64 {
	switch size {
	case jobdomain.JobSizeSmall:
		return service.SmallJobPrice
	case jobdomain.JobSizeMedium:
		return service.MediumJobPrice
	case jobdomain.JobSizeLarge:
		return service.LargeJobPrice
	default:
		return 0
	}
}

func fallbackPrice(size jobdomain.JobSize) int64 {
	switch size {
	case jobdomain.JobSizeSmall:
		return FallbackSmallPrice
	case jobdomain.JobSizeMedium:
		return FallbackMediumPrice
	case jobdomain.JobSizeLarge:
		return FallbackLargePrice
	default:
		return FallbackDefaultPrice
	}
}
