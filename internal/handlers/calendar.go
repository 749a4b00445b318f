package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskhub/internal/services"
	"github.com/huangang/taskhub/pkg/response"
)

// CalendarHandler answers working-day questions for due-date planning.
type CalendarHandler struct {
	calendar       *services.WorkCalendar
	defaultCountry string
}

func NewCalendarHandler(calendar *services.WorkCalendar, defaultCountry string) *CalendarHandler {
	return &CalendarHandler{calendar: calendar, defaultCountry: defaultCountry}
}

type workdayQuery struct {
	Date    string `form:"date" binding:"required,datetime=2006-01-02"`
	Country string `form:"country" binding:"omitempty,max=10"`
}

// Countries
// GET /api/calendar/countries
func (h *CalendarHandler) Countries(c *gin.Context) {
	response.Success(c, gin.H{
		"default":   h.defaultCountry,
		"countries": h.calendar.SupportedCountries(),
	})
}

// Workday reports whether date is a working day and the next one after it
// GET /api/calendar/workday?date=2026-10-01&country=CN
func (h *CalendarHandler) Workday(c *gin.Context) {
	var q workdayQuery
	if !bindQuery(c, &q) {
		return
	}
	country := q.Country
	if country == "" {
		country = h.defaultCountry
	}
	day, _ := time.ParseInLocation("2006-01-02", q.Date, time.UTC)

	response.Success(c, gin.H{
		"date":         q.Date,
		"country":      country,
		"is_workday":   h.calendar.IsWorkday(day, country),
		"next_workday": h.calendar.NextWorkday(day, country).Format("2006-01-02"),
	})
}
