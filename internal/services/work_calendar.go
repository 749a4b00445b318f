package services

import (
	"sort"
	"time"

	"github.com/6tail/lunar-go/HolidayUtil"
	"github.com/6tail/lunar-go/calendar"
	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/au"
	"github.com/rickar/cal/v2/be"
	"github.com/rickar/cal/v2/br"
	"github.com/rickar/cal/v2/ca"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/dk"
	"github.com/rickar/cal/v2/es"
	"github.com/rickar/cal/v2/fi"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/ie"
	"github.com/rickar/cal/v2/it"
	"github.com/rickar/cal/v2/jp"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/no"
	"github.com/rickar/cal/v2/nz"
	"github.com/rickar/cal/v2/pl"
	"github.com/rickar/cal/v2/pt"
	"github.com/rickar/cal/v2/se"
	"github.com/rickar/cal/v2/us"
)

// WorkCalendar answers whether a date is a working day in a given country.
// "NONE" and unknown codes fall back to Monday to Friday.
type WorkCalendar struct {
	calendars map[string]*cal.BusinessCalendar
}

var countryHolidays = map[string][]*cal.Holiday{
	"US": us.Holidays,
	"GB": gb.Holidays,
	"DE": de.Holidays,
	"FR": fr.Holidays,
	"JP": jp.Holidays,
	"AU": au.HolidaysNSW,
	"CA": ca.Holidays,
	"NZ": nz.Holidays,
	"IT": it.Holidays,
	"ES": es.Holidays,
	"NL": nl.Holidays,
	"BE": be.Holidays,
	"AT": at.Holidays,
	"CH": ch.Holidays,
	"SE": se.Holidays,
	"NO": no.Holidays,
	"DK": dk.Holidays,
	"FI": fi.Holidays,
	"PL": pl.Holidays,
	"PT": pt.Holidays,
	"IE": ie.Holidays,
	"BR": br.Holidays,
}

func NewWorkCalendar() *WorkCalendar {
	s := &WorkCalendar{
		calendars: make(map[string]*cal.BusinessCalendar, len(countryHolidays)),
	}
	for code, holidays := range countryHolidays {
		c := cal.NewBusinessCalendar()
		c.Name = code
		c.AddHoliday(holidays...)
		s.calendars[code] = c
	}
	return s
}

// IsWorkday reports whether t is a working day. China uses the official
// adjusted-workday table from lunar-go.
func (s *WorkCalendar) IsWorkday(t time.Time, countryCode string) bool {
	if countryCode == "CN" {
		return s.isWorkdayChina(t)
	}
	if c, ok := s.calendars[countryCode]; ok {
		return c.IsWorkday(t)
	}
	return !cal.IsWeekend(t)
}

func (s *WorkCalendar) isWorkdayChina(t time.Time) bool {
	solar := calendar.NewSolarFromDate(t)
	holiday := HolidayUtil.GetHolidayByYmd(solar.GetYear(), solar.GetMonth(), solar.GetDay())

	if holiday != nil {
		return holiday.IsWork()
	}
	return !cal.IsWeekend(t)
}

// SupportedCountries lists the accepted country codes.
func (s *WorkCalendar) SupportedCountries() []string {
	codes := []string{"CN", "NONE"}
	for code := range s.calendars {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// NextWorkday returns the first working day strictly after t.
func (s *WorkCalendar) NextWorkday(t time.Time, countryCode string) time.Time {
	d := t.AddDate(0, 0, 1)
	for i := 0; i < 31 && !s.IsWorkday(d, countryCode); i++ {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
