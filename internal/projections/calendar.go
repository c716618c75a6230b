package projections

import (
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
)

type CalendarDay struct {
	Date      string `json:"date"`
	Completed bool   `json:"completed"`
	Disabled  bool   `json:"disabled"`
}

// StreakCalendar lists each day from..to inclusive. A day is completed when it
// appears in completedDates and disabled when it falls after today.
func StreakCalendar(completedDates []string, today time.Time, from time.Time, to time.Time) []CalendarDay {
	completed := make(map[string]bool, len(completedDates))
	for _, date := range completedDates {
		completed[date] = true
	}

	todayKey := today.Format(models.DateLayout)
	start := truncateDay(from)
	end := truncateDay(to)

	var days []CalendarDay
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		key := day.Format(models.DateLayout)
		days = append(days, CalendarDay{
			Date:      key,
			Completed: completed[key],
			Disabled:  key > todayKey,
		})
	}
	return days
}

// CurrentStreak counts consecutive completed days ending today. When today has
// no completion yet the run may end yesterday instead.
func CurrentStreak(completedDates []string, today time.Time) int {
	completed := make(map[string]bool, len(completedDates))
	for _, date := range completedDates {
		completed[date] = true
	}

	day := truncateDay(today)
	if !completed[day.Format(models.DateLayout)] {
		day = day.AddDate(0, 0, -1)
	}

	streak := 0
	for completed[day.Format(models.DateLayout)] {
		streak++
		day = day.AddDate(0, 0, -1)
	}
	return streak
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
