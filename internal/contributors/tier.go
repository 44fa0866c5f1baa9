package contributors

// Tier is the badge a contributor earns from their own report count.
type Tier string

const (
	TierTitan  Tier = "Titan Guardian"
	TierSilver Tier = "Silver Guardian"
	TierLead   Tier = "Lead Guardian"
	TierNovice Tier = "Novice Guardian"
)

// ReportsPerLevel is the number of reports needed to advance one level.
const ReportsPerLevel = 5

// tierBands is evaluated top-down; the first band whose floor is reached wins.
var tierBands = []struct {
	floor int
	tier  Tier
}{
	{floor: 20, tier: TierTitan},
	{floor: 10, tier: TierSilver},
	{floor: 5, tier: TierLead},
}

// TierFor maps a report count to its badge tier. Band floors are inclusive.
func TierFor(reportCount int) Tier {
	for _, band := range tierBands {
		if reportCount >= band.floor {
			return band.tier
		}
	}
	return TierNovice
}

// Level is a contributor's accountability level and the progress toward the next.
type Level struct {
	Level    int
	Progress int
	// Goal is the number of reports per level; Progress is always below it.
	Goal int
}

// LevelFor returns level = reportCount/5 + 1 and progress = reportCount % 5.
// Negative counts are treated as zero.
func LevelFor(reportCount int) Level {
	if reportCount < 0 {
		reportCount = 0
	}
	return Level{
		Level:    reportCount/ReportsPerLevel + 1,
		Progress: reportCount % ReportsPerLevel,
		Goal:     ReportsPerLevel,
	}
}
