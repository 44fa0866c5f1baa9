package trust

import (
	"fmt"
	"strings"

	"github.com/MarcoPoloResearchLab/trustrace/backend/internal/traces"
)

// Classification is the advisory verdict shown before a trace is submitted.
type Classification string

const (
	ClassificationNeutral Classification = "neutral"
	ClassificationSafe    Classification = "safe"
	ClassificationDanger  Classification = "danger"
)

// MinimumAdviceCandidateLength is the shortest candidate url that produces advice.
const MinimumAdviceCandidateLength = 4

const (
	messageNewEntity = "New entity detected. Be the first to verify."
	messageTrusted   = "This entity has a high trust rating in the network."
	messageDanger    = "WARNING: High failure rate (%d%%) detected."
)

// Advice is the advisory result for a partially typed entity url. It never blocks
// submission.
type Advice struct {
	Classification Classification
	Message        string
	Matches        int
	// FailureRate is the rounded not_delivered percentage among Matches.
	FailureRate int
}

// Advise matches traces whose entity url contains candidate (case-insensitive) and
// classifies the result. ok is false when the candidate is too short to match
// meaningfully.
func Advise(candidate string, collection []traces.Trace) (advice Advice, ok bool) {
	needle := strings.ToLower(strings.TrimSpace(candidate))
	if len(needle) < MinimumAdviceCandidateLength {
		return Advice{}, false
	}

	matches := 0
	failures := 0
	for _, trace := range collection {
		if !strings.Contains(strings.ToLower(trace.EntityURL), needle) {
			continue
		}
		matches++
		if trace.Outcome == traces.OutcomeNotDelivered {
			failures++
		}
	}

	if matches == 0 {
		return Advice{Classification: ClassificationNeutral, Message: messageNewEntity}, true
	}

	failureRate := roundedPercent(failures, matches)
	if isHighRisk(failures, matches) {
		return Advice{
			Classification: ClassificationDanger,
			Message:        fmt.Sprintf(messageDanger, failureRate),
			Matches:        matches,
			FailureRate:    failureRate,
		}, true
	}
	return Advice{
		Classification: ClassificationSafe,
		Message:        messageTrusted,
		Matches:        matches,
		FailureRate:    failureRate,
	}, true
}
