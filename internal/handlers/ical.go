package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/ItsHarshjsin/riseup-sub000/internal/middleware"
	"github.com/ItsHarshjsin/riseup-sub000/internal/models"
	"github.com/ItsHarshjsin/riseup-sub000/internal/services"
	ical "github.com/arran4/golang-ical"
)

type ICalHandler struct {
	queries *services.Queries
}

func NewICalHandler(queries *services.Queries) *ICalHandler {
	return &ICalHandler{queries: queries}
}

type completedDay struct {
	date   time.Time
	titles []string
	points int
}

// Feed exports the caller's completed days as all-day events, one per day,
// so the streak shows up in any calendar app.
func (handler *ICalHandler) Feed(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	history, err := handler.queries.TaskHistory(r.Context(), session)
	if err != nil {
		writeError(w, err)
		return
	}

	calendar := buildStreakCalendar(session.UserID, history.Data)

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=riseup-streak.ics")
	if history.Stale {
		w.Header().Set(StaleHeader, "true")
	}
	w.Write([]byte(calendar.Serialize()))
}

func buildStreakCalendar(userID string, tasks []models.Task) *ical.Calendar {
	days := make(map[string]*completedDay)
	for _, task := range tasks {
		if !task.Completed {
			continue
		}
		date, err := time.Parse(models.DateLayout, task.TaskDate)
		if err != nil {
			continue
		}
		day, ok := days[task.TaskDate]
		if !ok {
			day = &completedDay{date: date}
			days[task.TaskDate] = day
		}
		day.titles = append(day.titles, task.Title)
		day.points += task.Points
	}

	keys := make([]string, 0, len(days))
	for key := range days {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	calendar := ical.NewCalendar()
	calendar.SetMethod(ical.MethodPublish)
	calendar.SetProductId("-//RiseUp//Streak Feed//EN")
	calendar.SetXWRCalName("RiseUp streak")

	stamp := time.Now().UTC()
	for _, key := range keys {
		day := days[key]
		event := calendar.AddEvent(fmt.Sprintf("%s-%s@riseup", userID, key))
		event.SetDtStampTime(stamp)
		event.SetAllDayStartAt(day.date)
		event.SetAllDayEndAt(day.date.AddDate(0, 0, 1))
		event.SetSummary(fmt.Sprintf("Completed %d tasks (+%d points)", len(day.titles), day.points))
		event.SetDescription("- " + strings.Join(day.titles, "\n- "))
	}
	return calendar
}
