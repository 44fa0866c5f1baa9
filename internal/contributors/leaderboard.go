// Package contributors ranks contributors and derives their badge tier and level
// from cumulative report counts.
package contributors

import "sort"

// Leaderboard labels.
const (
	LabelElite  = "Elite Contributor"
	LabelActive = "Active Contributor"
)

// eliteThreshold is the report count at which a ranked contributor is labelled elite.
const eliteThreshold = 10

// Contributor is the ranking input: a user and their report count.
type Contributor struct {
	UserID      string
	DisplayName string
	ReportCount int
}

// Standing is a contributor's place on the leaderboard.
type Standing struct {
	Position    int
	Contributor Contributor
	Label       string
}

// Rank orders contributors by report count, highest first. Equal counts keep their
// input order, so repeated calls over the same input return the same standings.
// The input slice is not modified.
func Rank(contributors []Contributor) []Standing {
	ordered := make([]Contributor, len(contributors))
	copy(ordered, contributors)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ReportCount > ordered[j].ReportCount
	})

	standings := make([]Standing, 0, len(ordered))
	for index, contributor := range ordered {
		standings = append(standings, Standing{
			Position:    index + 1,
			Contributor: contributor,
			Label:       labelFor(contributor.ReportCount),
		})
	}
	return standings
}

func labelFor(reportCount int) string {
	if reportCount >= eliteThreshold {
		return LabelElite
	}
	return LabelActive
}
