package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/report"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/repository"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
	"github.com/pharmapsy/pharmapsy-backend/pkg/metrics"
)

// ReportService computes stock reports. Nothing is cached: every call
// reconciles from the stored records.
type ReportService struct {
	store   repository.Store
	catalog *CatalogService
	metrics *metrics.Metrics
	clock   Clock
	logger  *logger.Logger
}

// NewReportService creates a new report service
func NewReportService(store repository.Store, m *metrics.Metrics, clock Clock, log *logger.Logger) *ReportService {
	return &ReportService{
		store:   store,
		catalog: NewCatalogService(store, log),
		metrics: m,
		clock:   clock,
		logger:  log,
	}
}

// SummaryReport is the stock table of a period
type SummaryReport struct {
	Period      reconcile.Period    `json:"period"`
	Label       string              `json:"label"`
	PeriodStart string              `json:"periodStart"`
	Sort        reconcile.SortState `json:"sort"`
	Rows        []reconcile.Row     `json:"rows"`
	Totals      reconcile.Totals    `json:"totals"`
	Unmatched   reconcile.Unmatched `json:"unmatched"`
}

// BreakdownReport is the month by month table of a period
type BreakdownReport struct {
	Period reconcile.Period         `json:"period"`
	Label  string                   `json:"label"`
	Mode   reconcile.Mode           `json:"mode"`
	Rows   []reconcile.BreakdownRow `json:"rows"`
}

// AsOfReport is the stock at the end of a day
type AsOfReport struct {
	Year   string               `json:"year"`
	Cutoff string               `json:"cutoff"`
	Rows   []reconcile.Snapshot `json:"rows"`
}

// PVReport is the printed closing statement of a period
type PVReport struct {
	Pharmacy     domain.PharmacyInfo `json:"pharmacy"`
	Period       reconcile.Period    `json:"period"`
	Label        string              `json:"label"`
	ClosingLabel string              `json:"closingLabel"`
	Mode         reconcile.Mode      `json:"mode"`
	Rows         []reconcile.Row     `json:"rows"`
	Totals       reconcile.Totals    `json:"totals"`
}

// Count is a labelled number on the dashboard
type Count struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// MonthlyMovement sums entries and exits of one month tag
type MonthlyMovement struct {
	Name    string `json:"name"` // MONTH/YEAR
	Year    string `json:"year"`
	Month   string `json:"month"`
	Entrees int    `json:"entrees"`
	Sorties int    `json:"sorties"`
}

// Stats are the dashboard figures
type Stats struct {
	TotalOrders      int               `json:"totalOrders"`
	OrdersTrend      string            `json:"ordersTrend"`
	TotalSuppliers   int               `json:"totalSuppliers"`
	ActiveSuppliers  int               `json:"activeSuppliers"`
	TotalMedications int               `json:"totalMedications"`
	StockVolume      int               `json:"stockVolume"`
	OrdersByMonth    []Count           `json:"ordersByMonth"`
	OrdersByStatus   []Count           `json:"ordersByStatus"`
	TopSuppliers     []Count           `json:"topSuppliers"`
	MedicationForms  []Count           `json:"medicationForms"`
	Movements        []MonthlyMovement `json:"movements"`
}

// JournalLine is the received quantity of one medication
type JournalLine struct {
	DrugName      string `json:"drugName"`
	TotalQuantity int    `json:"totalQuantity"`
}

// JournalReport lists entries dated between two days, inclusive
type JournalReport struct {
	From    string                  `json:"from"`
	To      string                  `json:"to"`
	Entries []domain.InventoryEntry `json:"entries"`
	Summary []JournalLine           `json:"summary"`
}

func (s *ReportService) observe(name string, start time.Time, rows int) {
	if s.metrics != nil {
		s.metrics.ObserveReconcile(name, start, rows)
	}
}

// Summary filters rows by search text and orders them by sort
func (s *ReportService) Summary(ctx context.Context, p reconcile.Period, search string, sortState reconcile.SortState) (*SummaryReport, error) {
	in, err := loadInput(ctx, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows, unmatched := reconcile.SummarizeWithUnmatched(in, p)
	rows = reconcile.SortRows(reconcile.FilterRows(rows, search), sortState)
	s.observe("summary", start, len(rows))

	if unmatched.Rows > 0 {
		s.logger.Debug().Int("rows", unmatched.Rows).Strs("names", unmatched.Name).Msg("movements without catalog medication")
	}
	return &SummaryReport{
		Period:      p,
		Label:       p.Label(),
		PeriodStart: p.Start(),
		Sort:        sortState,
		Rows:        rows,
		Totals:      reconcile.Sum(rows),
		Unmatched:   unmatched,
	}, nil
}

// Breakdown computes the running monthly balance
func (s *ReportService) Breakdown(ctx context.Context, p reconcile.Period, mode reconcile.Mode) (*BreakdownReport, error) {
	in, err := loadInput(ctx, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	rows := reconcile.Breakdown(in, p, mode)
	s.observe("breakdown", start, len(rows))
	return &BreakdownReport{Period: p, Label: p.Label(), Mode: mode, Rows: rows}, nil
}

// AsOf computes the stock at the end of cutoff within its year
func (s *ReportService) AsOf(ctx context.Context, cutoff string) (*AsOfReport, error) {
	if _, err := domain.ParseDate(cutoff); err != nil {
		return nil, errors.Validation(map[string]string{"date": err.Error()})
	}
	in, err := loadInput(ctx, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	year := cutoff[:4]
	start := time.Now()
	rows := reconcile.AsOf(in, year, cutoff)
	s.observe("as_of", start, len(rows))
	return &AsOfReport{Year: year, Cutoff: cutoff, Rows: rows}, nil
}

// PV is the summary in name order with the closing label; active mode keeps
// rows with a baseline or a period movement.
func (s *ReportService) PV(ctx context.Context, p reconcile.Period, mode reconcile.Mode) (*PVReport, error) {
	in, err := loadInput(ctx, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	pharmacy, err := s.catalog.GetPharmacy(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rows := reconcile.SortRows(reconcile.Summarize(in, p), reconcile.DefaultSort)
	if mode == reconcile.ModeActive {
		kept := rows[:0]
		for _, r := range rows {
			if r.HasActivity() {
				kept = append(kept, r)
			}
		}
		rows = kept
	}
	s.observe("pv", start, len(rows))

	return &PVReport{
		Pharmacy:     *pharmacy,
		Period:       p,
		Label:        p.Label(),
		ClosingLabel: p.ClosingLabel(),
		Mode:         mode,
		Rows:         rows,
		Totals:       reconcile.Sum(rows),
	}, nil
}

// Workbook renders the PV, the breakdown and the expiry reports as xlsx
func (s *ReportService) Workbook(ctx context.Context, p reconcile.Period, mode reconcile.Mode, locale string) ([]byte, error) {
	pv, err := s.PV(ctx, p, mode)
	if err != nil {
		return nil, err
	}
	bd, err := s.Breakdown(ctx, p, mode)
	if err != nil {
		return nil, err
	}
	peremptions, err := repository.List[domain.Peremption](ctx, s.store, domain.CollectionPeremptions)
	if err != nil {
		return nil, err
	}
	inPeriod := peremptions[:0]
	for _, per := range peremptions {
		month, year, err := domain.MonthForDate(per.Date)
		if err == nil && year == p.Year && p.Contains(month) {
			inPeriod = append(inPeriod, per)
		}
	}

	return report.Workbook(report.Data{
		Locale:      locale,
		Pharmacy:    pv.Pharmacy,
		Period:      p,
		Summary:     pv.Rows,
		Totals:      pv.Totals,
		Breakdown:   bd.Rows,
		Peremptions: inPeriod,
	})
}

// Journal lists entries dated from..to and sums them per upper-cased name
// in order of first appearance.
func (s *ReportService) Journal(ctx context.Context, from, to string) (*JournalReport, error) {
	details := map[string]string{}
	if _, err := domain.ParseDate(from); err != nil {
		details["from"] = err.Error()
	}
	if _, err := domain.ParseDate(to); err != nil {
		details["to"] = err.Error()
	}
	if len(details) > 0 {
		return nil, errors.Validation(details)
	}

	all, err := repository.List[domain.InventoryEntry](ctx, s.store, domain.CollectionEntries)
	if err != nil {
		return nil, err
	}
	rep := &JournalReport{From: from, To: to, Entries: []domain.InventoryEntry{}, Summary: []JournalLine{}}
	for _, e := range all {
		if e.Date >= from && e.Date <= to {
			rep.Entries = append(rep.Entries, e)
		}
	}
	sort.SliceStable(rep.Entries, func(i, j int) bool { return rep.Entries[i].Date < rep.Entries[j].Date })

	pos := map[string]int{}
	for _, e := range rep.Entries {
		name := strings.ToUpper(e.DrugName)
		i, ok := pos[name]
		if !ok {
			i = len(rep.Summary)
			pos[name] = i
			rep.Summary = append(rep.Summary, JournalLine{DrugName: name})
		}
		rep.Summary[i].TotalQuantity += e.Quantity.Int()
	}
	return rep, nil
}

// Stats computes the dashboard figures over every stored record
func (s *ReportService) Stats(ctx context.Context) (*Stats, error) {
	in, err := loadInput(ctx, s.store, s.logger)
	if err != nil {
		return nil, err
	}
	orders, err := repository.List[domain.Order](ctx, s.store, domain.CollectionOrders)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.catalog.ListSuppliers(ctx)
	if err != nil {
		return nil, err
	}

	st := &Stats{
		TotalOrders:      len(orders),
		TotalSuppliers:   len(suppliers),
		TotalMedications: len(in.Medications),
	}

	now := s.clock.now()
	active := map[string]bool{}
	byMonth := newCounter()
	byStatus := newCounter()
	bySupplier := newCounter()
	supplierNames := map[string]string{}
	for _, sup := range suppliers {
		supplierNames[sup.ID] = sup.Name
	}
	current, previous := 0, 0
	prev := now.AddDate(0, -1, 0)
	for _, o := range orders {
		if o.Supplier != "" {
			active[o.Supplier] = true
		}
		created := now
		if o.CreatedAt > 0 {
			created = o.CreatedAt.Time().In(now.Location())
		}
		byMonth.add(fmt.Sprintf("%d/%d", int(created.Month()), created.Year()), 1)
		switch {
		case created.Year() == now.Year() && created.Month() == now.Month():
			current++
		case created.Year() == prev.Year() && created.Month() == prev.Month():
			previous++
		}
		byStatus.add(o.Status, 1)
		name := supplierNames[o.Supplier]
		if name == "" {
			name = o.Supplier
		}
		bySupplier.add(name, 1)
	}
	st.ActiveSuppliers = len(active)
	st.OrdersTrend = trend(current, previous)
	st.OrdersByMonth = byMonth.counts
	st.OrdersByStatus = byStatus.counts
	st.TopSuppliers = bySupplier.top(5)

	forms := newCounter()
	for _, m := range in.Medications {
		form := m.Forme
		if form == "" {
			form = "AUTRE"
		}
		forms.add(form, 1)
	}
	st.MedicationForms = forms.counts

	st.StockVolume, st.Movements = movementTotals(in)
	return st, nil
}

// movementTotals sums raw quantities: baselines plus entries minus exits,
// and the per month-tag movement in chronological order.
func movementTotals(in reconcile.Input) (int, []MonthlyMovement) {
	volume := 0
	for _, si := range in.InitialStocks {
		for _, it := range si.Items {
			volume += it.Quantity.Int()
		}
	}

	byKey := map[string]*MonthlyMovement{}
	get := func(month, year string) *MonthlyMovement {
		key := month + "/" + year
		m, ok := byKey[key]
		if !ok {
			m = &MonthlyMovement{Name: key, Month: month, Year: year}
			byKey[key] = m
		}
		return m
	}
	for _, e := range in.Entries {
		volume += e.Quantity.Int()
		get(e.Month, e.Year).Entrees += e.Quantity.Int()
	}
	for _, e := range in.Exits {
		volume -= e.Quantity.Int()
		get(e.Month, e.Year).Sorties += e.Quantity.Int()
	}

	out := make([]MonthlyMovement, 0, len(byKey))
	for _, m := range byKey {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		mi, mj := domain.MonthIndex(out[i].Month), domain.MonthIndex(out[j].Month)
		if mi != mj {
			return mi < mj
		}
		return out[i].Name < out[j].Name
	})
	return volume, out
}

func trend(current, previous int) string {
	if previous == 0 {
		if current > 0 {
			return "+100%"
		}
		return "0%"
	}
	pct := float64(current-previous) / float64(previous) * 100
	sign := ""
	if pct > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.0f%% vs m-1", sign, pct)
}

// counter keeps first-seen order
type counter struct {
	pos    map[string]int
	counts []Count
}

func newCounter() *counter {
	return &counter{pos: map[string]int{}, counts: []Count{}}
}

func (c *counter) add(name string, n int) {
	i, ok := c.pos[name]
	if !ok {
		i = len(c.counts)
		c.pos[name] = i
		c.counts = append(c.counts, Count{Name: name})
	}
	c.counts[i].Value += n
}

func (c *counter) top(n int) []Count {
	out := append([]Count(nil), c.counts...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Value > out[j].Value })
	if len(out) > n {
		out = out[:n]
	}
	return out
}
