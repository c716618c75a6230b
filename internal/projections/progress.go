package projections

import (
	"math"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

// PointsPerLevel is the width of one level band.
const PointsPerLevel = 500

type MasteryProgress struct {
	Category  models.Category `json:"category"`
	Completed int             `json:"completed"`
	Total     int             `json:"total"`
	Progress  int             `json:"progress"`
}

// CategoryMastery reports, for every category, the rounded share of tasks
// completed. A category without tasks reports 0.
func CategoryMastery(tasks []models.Task) []MasteryProgress {
	completed := make(map[models.Category]int)
	total := make(map[models.Category]int)
	for _, task := range tasks {
		total[task.Category]++
		if task.Completed {
			completed[task.Category]++
		}
	}

	progress := make([]MasteryProgress, 0, len(models.Categories))
	for _, category := range models.Categories {
		entry := MasteryProgress{
			Category:  category,
			Completed: completed[category],
			Total:     total[category],
		}
		if entry.Total > 0 {
			entry.Progress = int(math.Round(float64(entry.Completed) / float64(entry.Total) * 100))
		}
		progress = append(progress, entry)
	}
	return progress
}

// StoredMastery lays stored mastery rows out over every category. Categories
// without a row report 0.
func StoredMastery(rows []models.CategoryMastery) []MasteryProgress {
	stored := make(map[models.Category]models.CategoryMastery, len(rows))
	for _, row := range rows {
		stored[row.Category] = row
	}

	progress := make([]MasteryProgress, 0, len(models.Categories))
	for _, category := range models.Categories {
		row := stored[category]
		progress = append(progress, MasteryProgress{
			Category:  category,
			Completed: row.Completed,
			Total:     row.Total,
			Progress:  row.Progress,
		})
	}
	return progress
}

type Level struct {
	Level        int     `json:"level"`
	Points       int     `json:"points"`
	Progress     float64 `json:"progress"`
	PointsToNext int     `json:"points_to_next"`
}

// LevelProgress places points within the current level band.
func LevelProgress(points int) Level {
	if points < 0 {
		points = 0
	}
	into := points % PointsPerLevel
	return Level{
		Level:        LevelForPoints(points),
		Points:       points,
		Progress:     float64(into*100) / PointsPerLevel,
		PointsToNext: PointsPerLevel - into,
	}
}

func LevelForPoints(points int) int {
	if points < 0 {
		return 1
	}
	return points/PointsPerLevel + 1
}
