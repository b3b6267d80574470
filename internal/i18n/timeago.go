package i18n

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
)

var turkishMonths = [...]string{
	"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran",
	"Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık",
}

// TimeAgo renders the age of ts relative to now. Anything older than a week
// is shown as a day, month and clock time instead.
func (t *Translator) TimeAgo(ts, now time.Time) string {
	seconds := int(now.Sub(ts) / time.Second)

	switch {
	case seconds < 30:
		return t.T(TimeJustNow)
	case seconds < 120:
		return t.T(TimeOneMinute)
	}

	minutes := seconds / 60
	if minutes < 60 {
		return t.T(TimeMinutes, minutes)
	}

	hours := minutes / 60
	switch {
	case hours == 1:
		return t.T(TimeOneHour)
	case hours < 24:
		return t.T(TimeHours, hours)
	}

	days := hours / 24
	switch {
	case days == 1:
		return t.T(TimeYesterday)
	case days < 7:
		return t.T(TimeDays, days)
	}

	return t.formatDate(ts.In(now.Location()))
}

func (t *Translator) formatDate(ts time.Time) string {
	if t.tag == language.Turkish {
		return fmt.Sprintf("%d %s %s", ts.Day(), turkishMonths[ts.Month()-1], ts.Format("15:04"))
	}
	return ts.Format("2 January 15:04")
}
