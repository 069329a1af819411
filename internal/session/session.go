// Package session models a trading venue's hours so the feed can be
// gated to times when bars actually arrive. A Session is a daily
// open/close window in a venue's local timezone, with weekend and
// holiday handling.
package session

import (
	"fmt"
	"time"
)

// Session describes one venue's daily trading window.
type Session struct {
	Location    *time.Location
	OpenHour    int
	OpenMinute  int
	CloseHour   int
	CloseMinute int

	// Holidays are venue-local dates ("2006-01-02") with no trading.
	Holidays map[string]bool
}

// IST is Indian Standard Time (UTC+5:30).
var IST = time.FixedZone("IST", 5*3600+30*60)

// NSE returns the National Stock Exchange session:
// 9:15 AM to 3:30 PM IST, Monday to Friday, 2026 holiday calendar.
func NSE() *Session {
	return &Session{
		Location:    IST,
		OpenHour:    9,
		OpenMinute:  15,
		CloseHour:   15,
		CloseMinute: 30,
		Holidays:    nseHolidays2026,
	}
}

// IsOpen reports whether t falls inside the trading window on a
// trading day.
func (s *Session) IsOpen(t time.Time) bool {
	lt := t.In(s.Location)
	if !s.isTradingDay(lt) {
		return false
	}
	hm := lt.Hour()*60 + lt.Minute()
	return hm >= s.OpenHour*60+s.OpenMinute && hm < s.CloseHour*60+s.CloseMinute
}

func (s *Session) isTradingDay(lt time.Time) bool {
	wd := lt.Weekday()
	if wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !s.Holidays[lt.Format("2006-01-02")]
}

// NextOpen returns the next session open at or after t. If t is
// before today's open on a trading day, today's open is returned.
func (s *Session) NextOpen(t time.Time) time.Time {
	lt := t.In(s.Location)

	todayOpen := s.openOn(lt)
	if lt.Before(todayOpen) && s.isTradingDay(lt) {
		return todayOpen
	}

	d := lt.AddDate(0, 0, 1)
	for i := 0; i < 14; i++ { // bounded scan past weekends and holiday runs
		if s.isTradingDay(d) {
			return s.openOn(d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return s.openOn(lt.AddDate(0, 0, 1))
}

// CloseAfter returns the session close on t's venue-local day.
func (s *Session) CloseAfter(t time.Time) time.Time {
	lt := t.In(s.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.CloseHour, s.CloseMinute, 0, 0, s.Location)
}

func (s *Session) openOn(lt time.Time) time.Time {
	return time.Date(lt.Year(), lt.Month(), lt.Day(), s.OpenHour, s.OpenMinute, 0, 0, s.Location)
}

// Status returns a human-readable session status for logging.
func (s *Session) Status(t time.Time) string {
	if s.IsOpen(t) {
		return fmt.Sprintf("session open, closes in %s", fmtDur(s.CloseAfter(t).Sub(t)))
	}
	next := s.NextOpen(t)
	return fmt.Sprintf("session closed, opens %s %s (%s)",
		next.Weekday().String()[:3], next.Format("15:04"), fmtDur(next.Sub(t)))
}

func fmtDur(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
