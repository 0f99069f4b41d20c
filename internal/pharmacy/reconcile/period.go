package reconcile

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
)

// ErrEmptySelection is returned by NewPeriod when no month is selected
var ErrEmptySelection = errors.New("at least one month must be selected")

// Period is a year and a set of months, kept in calendar order
type Period struct {
	Year   string   `json:"year"`
	Months []string `json:"months"`
}

// NewPeriod validates a selection. Months may arrive in any order and are
// de-duplicated; the year must have four digits.
func NewPeriod(year string, months []string) (Period, error) {
	if len(year) != 4 || strings.Trim(year, "0123456789") != "" {
		return Period{}, fmt.Errorf("invalid year %q", year)
	}
	if len(months) == 0 {
		return Period{}, ErrEmptySelection
	}

	seen := make(map[string]bool, len(months))
	for _, m := range months {
		m = strings.ToUpper(strings.TrimSpace(m))
		if !domain.IsMonth(m) {
			return Period{}, fmt.Errorf("unknown month %q", m)
		}
		seen[m] = true
	}

	return NewPeriodUnchecked(year, keys(seen)), nil
}

// NewPeriodUnchecked builds a period without validation. Unknown months are
// kept but never match, and an empty selection starts in January.
func NewPeriodUnchecked(year string, months []string) Period {
	sorted := append([]string(nil), months...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return domain.MonthIndex(sorted[i]) < domain.MonthIndex(sorted[j])
	})
	return Period{Year: year, Months: sorted}
}

// SeasonPeriod selects the three months of a quarter
func SeasonPeriod(year string, s domain.Season) Period {
	return Period{Year: year, Months: s.Months[:]}
}

// CurrentSeason is the default selection: the quarter containing now
func CurrentSeason(now time.Time) Period {
	return SeasonPeriod(fmt.Sprintf("%04d", now.Year()), domain.SeasonOf(int(now.Month())-1))
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// Contains reports whether month is selected
func (p Period) Contains(month string) bool {
	for _, m := range p.Months {
		if m == month {
			return true
		}
	}
	return false
}

func (p Period) earliestIndex() int {
	earliest := -1
	for _, m := range p.Months {
		if i := domain.MonthIndex(m); i >= 0 && (earliest < 0 || i < earliest) {
			earliest = i
		}
	}
	if earliest < 0 {
		return 0
	}
	return earliest
}

// Start is the first day of the earliest selected month, YYYY-MM-01.
// Movements dated strictly before it are carried into the opening stock.
func (p Period) Start() string {
	return fmt.Sprintf("%s-%02d-01", p.Year, p.earliestIndex()+1)
}

// Season returns the quarter the selection is exactly equal to, if any
func (p Period) Season() (domain.Season, bool) {
	for _, s := range domain.Seasons {
		if len(p.Months) != len(s.Months) {
			continue
		}
		match := true
		for _, m := range s.Months {
			if !p.Contains(m) {
				match = false
				break
			}
		}
		if match {
			return s, true
		}
	}
	return domain.Season{}, false
}

// Label names the period on reports: "2ÈME TRIMESTRE 2024" or "MARS, MAI 2024"
func (p Period) Label() string {
	if s, ok := p.Season(); ok {
		return s.Name + " " + p.Year
	}
	if len(p.Months) == 0 {
		return p.Year
	}
	return strings.Join(p.Months, ", ") + " " + p.Year
}

// ClosingLabel is the PV title date: "ARRÊTÉ AU 30 JUIN 2024"
func (p Period) ClosingLabel() string {
	if len(p.Months) == 0 {
		return p.Year
	}
	last := p.Months[len(p.Months)-1]
	return fmt.Sprintf("ARRÊTÉ AU %s %s %s", domain.LastDayLabel(last), last, p.Year)
}
