package trust

import (
	"fmt"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
	"github.com/shopspring/decimal"
)

// AnnotatedTrace pairs a trace with its entity's risk flag.
type AnnotatedTrace struct {
	Trace    traces.Trace
	HighRisk bool
}

// DashboardMetrics summarizes a filtered view of the network.
type DashboardMetrics struct {
	SuccessRate   int
	Volume        decimal.Decimal
	VolumeDisplay string
	// RiskCount is the number of distinct flagged entities inside the filtered view.
	RiskCount int
	Traces    []AnnotatedTrace
}

// Dashboard flags entities over the whole collection, then computes metrics over
// the subset selected by filter.
func Dashboard(collection []traces.Trace, filter DashboardFilter) DashboardMetrics {
	flagged := HighRiskEntities(collection)
	filtered := Filter(collection, filter)

	annotated := make([]AnnotatedTrace, 0, len(filtered))
	riskyEntities := make(map[string]struct{})
	for _, trace := range filtered {
		highRisk := IsHighRisk(flagged, trace)
		if highRisk {
			riskyEntities[trace.EntityURL] = struct{}{}
		}
		annotated = append(annotated, AnnotatedTrace{Trace: trace, HighRisk: highRisk})
	}

	volume := EconomicVolume(filtered)
	return DashboardMetrics{
		SuccessRate:   SuccessRate(filtered),
		Volume:        volume,
		VolumeDisplay: FormatVolume(volume),
		RiskCount:     len(riskyEntities),
		Traces:        annotated,
	}
}

// ProfileMetrics summarizes one contributor's own history against the network.
type ProfileMetrics struct {
	SuccessRate        int
	TotalSpent         decimal.Decimal
	TotalSpentDisplay  string
	MonthlyCount       int
	NetworkSuccessRate int
}

// Profile computes personal metrics from mine and the network average from network.
func Profile(mine, network []traces.Trace, now time.Time) ProfileMetrics {
	spent := EconomicVolume(mine)
	return ProfileMetrics{
		SuccessRate:        SuccessRate(mine),
		TotalSpent:         spent,
		TotalSpentDisplay:  FormatVolume(spent),
		MonthlyCount:       MonthlyActivity(mine, now),
		NetworkSuccessRate: SuccessRate(network),
	}
}

// ShareText renders the plain-text summary users paste when sharing a trace.
func ShareText(trace traces.Trace) string {
	return fmt.Sprintf(
		"TrustTrace Report: %s has a status of %s for %s. Verified by the Guardian Network.",
		trace.EntityURL,
		strings.ToUpper(string(trace.Outcome)),
		trace.ProductName,
	)
}
