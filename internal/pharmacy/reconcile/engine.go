// Package reconcile computes stock figures per medication from the year
// baseline and the dated entry and exit ledgers. Every function is pure and
// never fails: missing collections are empty and invalid rows are skipped.
package reconcile

import (
	"strings"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
)

// Input is the data reconciliation reads
type Input struct {
	Medications   []domain.Medication
	InitialStocks []domain.StockInitial
	Entries       []domain.InventoryEntry
	Exits         []domain.InventoryExit
}

// Row is the stock of one medication over a period
type Row struct {
	MedicationID string `json:"id"`
	FullNom      string `json:"fullNom"`
	DCI          string `json:"dci"`
	Baseline     int    `json:"initialStock"`
	PreIn        int    `json:"entriesBefore"`
	PreOut       int    `json:"exitsBefore"`
	StartStock   int    `json:"startStock"`
	TotalIn      int    `json:"totalIn"`
	TotalOut     int    `json:"totalOut"`
	EndStock     int    `json:"currentStock"`
}

// HasActivity reports a positive baseline or any movement in the period
func (r Row) HasActivity() bool {
	return r.Baseline > 0 || r.TotalIn > 0 || r.TotalOut > 0
}

// MonthCell is one month column of a breakdown
type MonthCell struct {
	Month  string `json:"month"`
	Entree int    `json:"entree"`
	Sortie int    `json:"sortie"`
	Reste  int    `json:"reste"`
}

// BreakdownRow is the month by month stock of one medication
type BreakdownRow struct {
	MedicationID string      `json:"id"`
	Name         string      `json:"name"`
	Baseline     int         `json:"initialStockAtStartOfYear"`
	StartStock   int         `json:"startStock"`
	Months       []MonthCell `json:"months"`
	FinalStock   int         `json:"finalStock"`
	HasMovement  bool        `json:"hasMovementInPeriod"`
}

// Active reports whether the row is printed in active mode
func (r BreakdownRow) Active() bool {
	return r.Baseline > 0 || r.HasMovement
}

// Mode selects the rows of a printed report
type Mode string

const (
	ModeAll    Mode = "all"
	ModeActive Mode = "active"
)

// ParseMode defaults to active
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(s)) == ModeAll {
		return ModeAll
	}
	return ModeActive
}

// Snapshot is the stock of one medication at the end of a cut-off date
type Snapshot struct {
	MedicationID string `json:"id"`
	FullNom      string `json:"fullNom"`
	DCI          string `json:"dci"`
	Baseline     int    `json:"initialStock"`
	In           int    `json:"totalIn"`
	Out          int    `json:"totalOut"`
	Stock        int    `json:"stock"`
}

// Unmatched counts period movements no catalog medication claims,
// typically rows recorded under a name that was later renamed.
type Unmatched struct {
	In   int      `json:"totalIn"`
	Out  int      `json:"totalOut"`
	Rows int      `json:"rows"`
	Name []string `json:"names"`
}

// ledger accumulates the figures of one medication
type ledger struct {
	baseline      int
	preIn, preOut int
	inByMonth     [12]int
	outByMonth    [12]int
	cutIn, cutOut int
}

// index resolves movements to catalog positions. A movement carrying a known
// medication id joins on it; otherwise the upper-cased name is matched, which
// may resolve to several catalog rows sharing a full name.
type index struct {
	byID   map[string]int
	byName map[string][]int
}

func newIndex(meds []domain.Medication) index {
	idx := index{
		byID:   make(map[string]int, len(meds)),
		byName: make(map[string][]int, len(meds)),
	}
	for i, m := range meds {
		if m.ID != "" {
			idx.byID[m.ID] = i
		}
		key := strings.ToUpper(m.FullNom)
		idx.byName[key] = append(idx.byName[key], i)
	}
	return idx
}

func (x index) resolve(medicationID, name string) []int {
	if medicationID != "" {
		if i, ok := x.byID[medicationID]; ok {
			return []int{i}
		}
	}
	return x.byName[strings.ToUpper(name)]
}

// movement is the common view of entries and exits
type movement struct {
	medicationID string
	name         string
	quantity     int
	year         string
	month        string
	date         string
}

func (m movement) valid() bool {
	return strings.TrimSpace(m.name) != "" && m.quantity > 0
}

func entryMovements(entries []domain.InventoryEntry) []movement {
	out := make([]movement, 0, len(entries))
	for _, e := range entries {
		out = append(out, movement{e.MedicationID, e.DrugName, e.Quantity.Int(), e.Year, e.Month, e.Date})
	}
	return out
}

func exitMovements(exits []domain.InventoryExit) []movement {
	out := make([]movement, 0, len(exits))
	for _, e := range exits {
		out = append(out, movement{e.MedicationID, e.DrugName, e.Quantity.Int(), e.Year, e.Month, e.Date})
	}
	return out
}

// baselines sums every initial stock line of documents dated in year
func baselines(in Input, idx index, year string, ledgers []ledger) {
	for _, doc := range in.InitialStocks {
		if !strings.HasPrefix(doc.Date, year) {
			continue
		}
		for _, item := range doc.Items {
			for _, i := range idx.resolve(item.MedicationID, item.Name) {
				ledgers[i].baseline += item.Quantity.Int()
			}
		}
	}
}

// accumulate folds the movements tagged with the period year into the
// ledgers. The unmatched callback sees period movements no medication claimed.
func accumulate(moves []movement, idx index, p Period, ledgers []ledger, entries bool, unmatched func(movement)) {
	start := p.Start()
	for _, m := range moves {
		if !m.valid() || m.year != p.Year {
			continue
		}
		targets := idx.resolve(m.medicationID, m.name)
		month := domain.MonthIndex(m.month)
		inPeriod := month >= 0 && p.Contains(m.month)
		if len(targets) == 0 {
			if inPeriod && unmatched != nil {
				unmatched(m)
			}
			continue
		}
		for _, i := range targets {
			l := &ledgers[i]
			if m.date < start {
				if entries {
					l.preIn += m.quantity
				} else {
					l.preOut += m.quantity
				}
			}
			if inPeriod {
				if entries {
					l.inByMonth[month] += m.quantity
				} else {
					l.outByMonth[month] += m.quantity
				}
			}
		}
	}
}

func build(in Input, p Period, unmatched func(movement, bool)) []ledger {
	idx := newIndex(in.Medications)
	ledgers := make([]ledger, len(in.Medications))
	baselines(in, idx, p.Year, ledgers)

	var onIn, onOut func(movement)
	if unmatched != nil {
		onIn = func(m movement) { unmatched(m, true) }
		onOut = func(m movement) { unmatched(m, false) }
	}
	accumulate(entryMovements(in.Entries), idx, p, ledgers, true, onIn)
	accumulate(exitMovements(in.Exits), idx, p, ledgers, false, onOut)
	return ledgers
}

func (l ledger) startStock() int {
	return l.baseline + l.preIn - l.preOut
}

func (l ledger) periodTotals(p Period) (in, out int) {
	for _, m := range p.Months {
		if i := domain.MonthIndex(m); i >= 0 {
			in += l.inByMonth[i]
			out += l.outByMonth[i]
		}
	}
	return in, out
}

// Summarize computes one row per catalog medication, in catalog order.
//
//	startStock = baseline + entries before Start() - exits before Start()
//	endStock   = startStock + period entries - period exits
//
// Period totals select movements by their month and year tags, not by date.
func Summarize(in Input, p Period) []Row {
	rows, _ := SummarizeWithUnmatched(in, p)
	return rows
}

// SummarizeWithUnmatched is Summarize plus the period movements that matched no medication
func SummarizeWithUnmatched(in Input, p Period) ([]Row, Unmatched) {
	var un Unmatched
	seen := map[string]bool{}
	ledgers := build(in, p, func(m movement, entry bool) {
		if entry {
			un.In += m.quantity
		} else {
			un.Out += m.quantity
		}
		un.Rows++
		key := strings.ToUpper(m.name)
		if !seen[key] {
			seen[key] = true
			un.Name = append(un.Name, key)
		}
	})

	rows := make([]Row, len(in.Medications))
	for i, med := range in.Medications {
		l := ledgers[i]
		totalIn, totalOut := l.periodTotals(p)
		start := l.startStock()
		rows[i] = Row{
			MedicationID: med.ID,
			FullNom:      med.FullNom,
			DCI:          med.DCI,
			Baseline:     l.baseline,
			PreIn:        l.preIn,
			PreOut:       l.preOut,
			StartStock:   start,
			TotalIn:      totalIn,
			TotalOut:     totalOut,
			EndStock:     start + totalIn - totalOut,
		}
	}
	return rows, un
}

// Breakdown walks the selected months in calendar order with a running
// balance seeded at the opening stock: reste(k) = reste(k-1) + in(k) - out(k).
// Rows are ordered by name; ModeActive drops rows without baseline or movement.
func Breakdown(in Input, p Period, mode Mode) []BreakdownRow {
	ledgers := build(in, p, nil)

	rows := make([]BreakdownRow, 0, len(in.Medications))
	for i, med := range in.Medications {
		l := ledgers[i]
		running := l.startStock()
		row := BreakdownRow{
			MedicationID: med.ID,
			Name:         med.FullNom,
			Baseline:     l.baseline,
			StartStock:   running,
			Months:       make([]MonthCell, 0, len(p.Months)),
		}
		for _, m := range p.Months {
			cell := MonthCell{Month: m}
			if mi := domain.MonthIndex(m); mi >= 0 {
				cell.Entree = l.inByMonth[mi]
				cell.Sortie = l.outByMonth[mi]
			}
			if cell.Entree > 0 || cell.Sortie > 0 {
				row.HasMovement = true
			}
			running += cell.Entree - cell.Sortie
			cell.Reste = running
			row.Months = append(row.Months, cell)
		}
		row.FinalStock = running

		if mode == ModeActive && !row.Active() {
			continue
		}
		rows = append(rows, row)
	}

	SortBreakdown(rows)
	return rows
}

// AsOf computes stock at the end of cutoff (YYYY-MM-DD) within year:
// baseline plus that year's movements dated on or before cutoff.
func AsOf(in Input, year, cutoff string) []Snapshot {
	idx := newIndex(in.Medications)
	ledgers := make([]ledger, len(in.Medications))
	baselines(in, idx, year, ledgers)

	fold := func(moves []movement, entries bool) {
		for _, m := range moves {
			if !m.valid() || m.year != year || m.date > cutoff {
				continue
			}
			for _, i := range idx.resolve(m.medicationID, m.name) {
				if entries {
					ledgers[i].cutIn += m.quantity
				} else {
					ledgers[i].cutOut += m.quantity
				}
			}
		}
	}
	fold(entryMovements(in.Entries), true)
	fold(exitMovements(in.Exits), false)

	out := make([]Snapshot, len(in.Medications))
	for i, med := range in.Medications {
		l := ledgers[i]
		out[i] = Snapshot{
			MedicationID: med.ID,
			FullNom:      med.FullNom,
			DCI:          med.DCI,
			Baseline:     l.baseline,
			In:           l.cutIn,
			Out:          l.cutOut,
			Stock:        l.baseline + l.cutIn - l.cutOut,
		}
	}
	return out
}

// Totals are the dashboard sums over a set of rows
type Totals struct {
	StartStock int `json:"startStock"`
	TotalIn    int `json:"totalIn"`
	TotalOut   int `json:"totalOut"`
	EndStock   int `json:"currentStock"`
}

// Sum adds up rows
func Sum(rows []Row) Totals {
	var t Totals
	for _, r := range rows {
		t.StartStock += r.StartStock
		t.TotalIn += r.TotalIn
		t.TotalOut += r.TotalOut
		t.EndStock += r.EndStock
	}
	return t
}
