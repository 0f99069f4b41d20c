package domain

import (
	"fmt"
	"time"
)

// Months are the twelve month literals stored on movements, January first.
var Months = [12]string{
	"JANVIER", "FÉVRIER", "MARS", "AVRIL", "MAI", "JUIN",
	"JUILLET", "AOÛT", "SEPTEMBRE", "OCTOBRE", "NOVEMBRE", "DÉCEMBRE",
}

// lastDay is printed on closing labels; February covers leap years.
var lastDay = [12]string{"31", "28/29", "31", "30", "31", "30", "31", "31", "30", "31", "30", "31"}

// Season is a calendar quarter
type Season struct {
	Name   string
	Months [3]string
}

// Seasons lists the four quarters in calendar order
var Seasons = [4]Season{
	{Name: "1ER TRIMESTRE", Months: [3]string{"JANVIER", "FÉVRIER", "MARS"}},
	{Name: "2ÈME TRIMESTRE", Months: [3]string{"AVRIL", "MAI", "JUIN"}},
	{Name: "3ÈME TRIMESTRE", Months: [3]string{"JUILLET", "AOÛT", "SEPTEMBRE"}},
	{Name: "4ÈME TRIMESTRE", Months: [3]string{"OCTOBRE", "NOVEMBRE", "DÉCEMBRE"}},
}

// MonthIndex returns the zero based index of a month literal, or -1.
func MonthIndex(month string) int {
	for i, m := range Months {
		if m == month {
			return i
		}
	}
	return -1
}

// IsMonth reports whether s is one of the month literals
func IsMonth(s string) bool {
	return MonthIndex(s) >= 0
}

// LastDayLabel returns the printed last day of a month ("28/29" for FÉVRIER)
func LastDayLabel(month string) string {
	if i := MonthIndex(month); i >= 0 {
		return lastDay[i]
	}
	return ""
}

// SeasonOf returns the quarter containing the month index
func SeasonOf(monthIndex int) Season {
	if monthIndex < 0 || monthIndex > 11 {
		monthIndex = 0
	}
	return Seasons[monthIndex/3]
}

// DateLayout is the ISO day format used by every record date
const DateLayout = "2006-01-02"

// ParseDate parses a YYYY-MM-DD record date
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse(DateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", date)
	}
	return t, nil
}

// MonthForDate returns the month literal and year tag of a record date
func MonthForDate(date string) (month, year string, err error) {
	t, err := ParseDate(date)
	if err != nil {
		return "", "", err
	}
	return Months[t.Month()-1], fmt.Sprintf("%04d", t.Year()), nil
}

// Today formats now as a record date
func Today(now time.Time) string {
	return now.Format(DateLayout)
}
