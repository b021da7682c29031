package helpers

import (
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// FileStatistic counts how often a test file ended unhealed
type FileStatistic struct {
	File  string
	Count int
}

// TopUnhealedFiles returns the files that most often stayed broken, most frequent first.
// If limit is 0 or negative, returns all files
func TopUnhealedFiles(runs []domain.HealingRun, limit int) []FileStatistic {
	frequency := make(map[string]int)
	for _, run := range runs {
		if !run.Healed {
			frequency[run.File]++
		}
	}

	stats := make([]FileStatistic, 0, len(frequency))
	for file, count := range frequency {
		stats = append(stats, FileStatistic{File: file, Count: count})
	}
	sortStatisticsByFrequency(stats)

	if shouldLimitResults(limit, len(stats)) {
		return stats[:limit]
	}
	return stats
}

// ModelUsage counts healed runs per model.
func ModelUsage(runs []domain.HealingRun) map[string]int {
	usage := make(map[string]int)
	for _, run := range runs {
		if run.Healed && run.Model != "" {
			usage[run.Model]++
		}
	}
	return usage
}

// sortStatisticsByFrequency sorts statistics by count (descending) then by file name (ascending)
func sortStatisticsByFrequency(stats []FileStatistic) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count == stats[j].Count {
			return stats[i].File < stats[j].File
		}
		return stats[i].Count > stats[j].Count
	})
}

func shouldLimitResults(limit int, actualLength int) bool {
	return limit > 0 && actualLength > limit
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, totalCount int) float64 {
	if totalCount == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(totalCount) * 100.0
}

// FormatBytes renders a byte count with a binary unit suffix.
func FormatBytes(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}
