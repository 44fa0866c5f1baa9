package contributors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankOrdersDescendingAndKeepsTies(t *testing.T) {
	t.Parallel()

	input := []Contributor{
		{UserID: "a", ReportCount: 3},
		{UserID: "b", ReportCount: 12},
		{UserID: "c", ReportCount: 3},
		{UserID: "d", ReportCount: 10},
		{UserID: "e", ReportCount: 3},
	}

	standings := Rank(input)
	require.Len(t, standings, 5)

	order := make([]string, 0, len(standings))
	for _, standing := range standings {
		order = append(order, standing.Contributor.UserID)
	}
	assert.Equal(t, []string{"b", "d", "a", "c", "e"}, order)

	for index, standing := range standings {
		assert.Equal(t, index+1, standing.Position)
	}
	assert.Equal(t, LabelElite, standings[0].Label)
	assert.Equal(t, LabelElite, standings[1].Label)
	assert.Equal(t, LabelActive, standings[2].Label)

	// input untouched, and ranking again yields the same order
	assert.Equal(t, "a", input[0].UserID)
	assert.Equal(t, standings, Rank(input))
}

func TestRankPreservesOrderOfEqualCounts(t *testing.T) {
	t.Parallel()

	standings := Rank([]Contributor{{UserID: "A", ReportCount: 4}, {UserID: "B", ReportCount: 4}})
	require.Len(t, standings, 2)
	assert.Equal(t, "A", standings[0].Contributor.UserID)
	assert.Equal(t, "B", standings[1].Contributor.UserID)
}

func TestRankEmpty(t *testing.T) {
	t.Parallel()

	standings := Rank(nil)
	assert.NotNil(t, standings)
	assert.Empty(t, standings)
}

func TestTierFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		count int
		want  Tier
	}{
		{count: 0, want: TierNovice},
		{count: 4, want: TierNovice},
		{count: 5, want: TierLead},
		{count: 9, want: TierLead},
		{count: 10, want: TierSilver},
		{count: 19, want: TierSilver},
		{count: 20, want: TierTitan},
		{count: 250, want: TierTitan},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, TierFor(tt.count), "count %d", tt.count)
	}
}

func TestLevelFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Level{Level: 1, Progress: 0, Goal: 5}, LevelFor(0))
	assert.Equal(t, Level{Level: 1, Progress: 4, Goal: 5}, LevelFor(4))
	assert.Equal(t, Level{Level: 2, Progress: 0, Goal: 5}, LevelFor(5))
	assert.Equal(t, Level{Level: 5, Progress: 3, Goal: 5}, LevelFor(23))
	assert.Equal(t, Level{Level: 1, Progress: 0, Goal: 5}, LevelFor(-3))
}
