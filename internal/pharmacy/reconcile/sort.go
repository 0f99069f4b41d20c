package reconcile

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// SortField selects the summary sort key
type SortField string

const (
	SortByName  SortField = "name"
	SortByStock SortField = "stock"
)

// Direction is ascending or descending
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortState is the summary table ordering
type SortState struct {
	Field     SortField `json:"field"`
	Direction Direction `json:"direction"`
}

// DefaultSort orders by name, ascending
var DefaultSort = SortState{Field: SortByName, Direction: Asc}

// ParseSort reads query values, falling back to DefaultSort parts
func ParseSort(field, direction string) SortState {
	s := DefaultSort
	if SortField(field) == SortByStock {
		s.Field = SortByStock
	}
	if Direction(direction) == Desc {
		s.Direction = Desc
	}
	return s
}

// Toggle applies a click on a column header: the active field flips
// direction, another field becomes active in ascending order.
func (s SortState) Toggle(field SortField) SortState {
	if s.Field == field {
		if s.Direction == Asc {
			return SortState{Field: field, Direction: Desc}
		}
		return SortState{Field: field, Direction: Asc}
	}
	return SortState{Field: field, Direction: Asc}
}

// newCollator is created per call, collators keep internal buffers
func newCollator() *collate.Collator {
	return collate.New(language.French, collate.IgnoreCase)
}

// FilterRows keeps rows whose full name or DCI contains term, case-insensitively
func FilterRows(rows []Row, term string) []Row {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if strings.Contains(strings.ToLower(r.FullNom), term) || strings.Contains(strings.ToLower(r.DCI), term) {
			out = append(out, r)
		}
	}
	return out
}

// SortRows returns a sorted copy; names compare with French collation
func SortRows(rows []Row, s SortState) []Row {
	out := append([]Row(nil), rows...)
	c := newCollator()
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if s.Direction == Desc {
			a, b = b, a
		}
		if s.Field == SortByStock {
			return a.EndStock < b.EndStock
		}
		return c.CompareString(a.FullNom, b.FullNom) < 0
	})
	return out
}

// SortBreakdown orders breakdown rows by name in place
func SortBreakdown(rows []BreakdownRow) {
	c := newCollator()
	sort.SliceStable(rows, func(i, j int) bool {
		return c.CompareString(rows[i].Name, rows[j].Name) < 0
	})
}
