// Package trust turns raw trace collections into the derived trust metrics shown
// across the product. Every function is pure: empty input yields zeroed metrics and
// no call retains state between invocations.
package trust

import (
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/shopspring/decimal"
)

const (
	// HighRiskMinimumVolume is the smallest trace count for which an entity can be flagged.
	HighRiskMinimumVolume = 2
	// 0.4 failure threshold as a fraction.
	highRiskFailureNumerator   = 2
	highRiskFailureDenominator = 5
	// ActivityWindowDays is the length of the monthly activity window.
	ActivityWindowDays = 30
)

// SuccessRate returns round(100 * delivered / total), rounding halves up.
// An empty collection yields 0.
func SuccessRate(collection []traces.Trace) int {
	delivered := 0
	for _, trace := range collection {
		if trace.Outcome == traces.OutcomeDelivered {
			delivered++
		}
	}
	return roundedPercent(delivered, len(collection))
}

// EconomicVolume sums the price of every trace. Zero-valued prices contribute nothing.
func EconomicVolume(collection []traces.Trace) decimal.Decimal {
	total := decimal.Zero
	for _, trace := range collection {
		total = total.Add(trace.Price)
	}
	return total
}

// HighRiskEntities groups traces by exact entity url and returns the urls with at
// least HighRiskMinimumVolume traces and a not_delivered share of at least 0.4.
// Partial deliveries are not failures.
func HighRiskEntities(collection []traces.Trace) map[string]struct{} {
	type entityStats struct {
		total  int
		failed int
	}
	stats := make(map[string]*entityStats)
	for _, trace := range collection {
		entry, ok := stats[trace.EntityURL]
		if !ok {
			entry = &entityStats{}
			stats[trace.EntityURL] = entry
		}
		entry.total++
		if trace.Outcome == traces.OutcomeNotDelivered {
			entry.failed++
		}
	}

	flagged := make(map[string]struct{})
	for url, entry := range stats {
		if isHighRisk(entry.failed, entry.total) {
			flagged[url] = struct{}{}
		}
	}
	return flagged
}

// IsHighRisk reports whether the trace's entity belongs to the flagged set.
func IsHighRisk(flagged map[string]struct{}, trace traces.Trace) bool {
	_, ok := flagged[trace.EntityURL]
	return ok
}

// MonthlyActivity counts traces created within the 30 days ending at now, both
// bounds inclusive.
func MonthlyActivity(collection []traces.Trace, now time.Time) int {
	lowerBound := now.AddDate(0, 0, -ActivityWindowDays)
	count := 0
	for _, trace := range collection {
		if trace.CreatedAt.Before(lowerBound) || trace.CreatedAt.After(now) {
			continue
		}
		count++
	}
	return count
}

// Snapshot is the derived success summary for a single entity.
type Snapshot struct {
	EntityURL    string
	SuccessRate  int
	ReportVolume int
	// IsNew is set when no trace matched; a known entity with a fully failing
	// history has IsNew false and ReportVolume > 0.
	IsNew bool
}

// SnapshotFor summarizes the traces whose entity url equals url exactly.
func SnapshotFor(url string, collection []traces.Trace) Snapshot {
	matches := make([]traces.Trace, 0, len(collection))
	for _, trace := range collection {
		if trace.EntityURL == url {
			matches = append(matches, trace)
		}
	}
	if len(matches) == 0 {
		return Snapshot{EntityURL: url, IsNew: true}
	}
	return Snapshot{
		EntityURL:    url,
		SuccessRate:  SuccessRate(matches),
		ReportVolume: len(matches),
	}
}

// DashboardFilter narrows a trace collection for dashboard views.
type DashboardFilter struct {
	// Category restricts to one category; empty or "all" keeps every category.
	Category string
	// Query is matched case-insensitively as a substring of the entity url.
	Query string
}

const categoryAll = "all"

// Filter returns the traces matching both the category and the url query.
func Filter(collection []traces.Trace, filter DashboardFilter) []traces.Trace {
	category := strings.ToLower(strings.TrimSpace(filter.Category))
	query := strings.ToLower(strings.TrimSpace(filter.Query))
	matched := make([]traces.Trace, 0, len(collection))
	for _, trace := range collection {
		if category != "" && category != categoryAll && string(trace.Category) != category {
			continue
		}
		if query != "" && !strings.Contains(strings.ToLower(trace.EntityURL), query) {
			continue
		}
		matched = append(matched, trace)
	}
	return matched
}

func isHighRisk(failed, total int) bool {
	if total < HighRiskMinimumVolume {
		return false
	}
	return failed*highRiskFailureDenominator >= total*highRiskFailureNumerator
}

// roundedPercent computes round(100 * part / whole) with halves rounded up, or 0
// when whole is zero.
func roundedPercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return (200*part + whole) / (2 * whole)
}
