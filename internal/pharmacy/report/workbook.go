// Package report renders stock reports as xlsx workbooks
package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/pkg/i18n"
)

// ContentType is the MIME type of the generated workbook
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Data is everything printed in the workbook
type Data struct {
	Locale       string
	Pharmacy     domain.PharmacyInfo
	Period       reconcile.Period
	Summary      []reconcile.Row
	Totals       reconcile.Totals
	Breakdown    []reconcile.BreakdownRow
	Peremptions  []domain.Peremption
	GeneratedFor string // operator name printed under the title
}

type writer struct {
	f      *excelize.File
	locale string
	header int
	title  int
}

// Workbook builds the summary, breakdown and expiry sheets
func Workbook(d Data) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	w := &writer{f: f, locale: d.Locale}
	if w.locale == "" {
		w.locale = i18n.DefaultLocale
	}

	var err error
	if w.header, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", WrapText: true},
	}); err != nil {
		return nil, err
	}
	if w.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return nil, err
	}

	summary := w.t("report.summary")
	if err := f.SetSheetName("Sheet1", summary); err != nil {
		return nil, err
	}
	if err := w.summarySheet(summary, d); err != nil {
		return nil, fmt.Errorf("summary sheet: %w", err)
	}

	breakdown := w.t("report.breakdown")
	if _, err := f.NewSheet(breakdown); err != nil {
		return nil, err
	}
	if err := w.breakdownSheet(breakdown, d); err != nil {
		return nil, fmt.Errorf("breakdown sheet: %w", err)
	}

	peremption := w.t("report.peremption")
	if _, err := f.NewSheet(peremption); err != nil {
		return nil, err
	}
	if err := w.peremptionSheet(peremption, d.Peremptions); err != nil {
		return nil, fmt.Errorf("peremption sheet: %w", err)
	}

	f.SetActiveSheet(0)
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *writer) t(key string) string {
	return i18n.TWithLocale(w.locale, key)
}

func (w *writer) col(key string) string {
	return w.t("report.columns." + key)
}

// heading writes the letterhead and title, returning the next free row
func (w *writer) heading(sheet, title string, d Data) (int, error) {
	lines := []string{d.Pharmacy.Name, d.Pharmacy.Address}
	if d.Pharmacy.NOrdre != "" {
		lines = append(lines, "N° ORDRE: "+d.Pharmacy.NOrdre)
	}
	row := 1
	for _, l := range lines {
		if l == "" {
			continue
		}
		if err := w.f.SetCellValue(sheet, cell(1, row), l); err != nil {
			return 0, err
		}
		row++
	}
	if err := w.f.SetCellValue(sheet, cell(1, row), title); err != nil {
		return 0, err
	}
	if err := w.f.SetCellStyle(sheet, cell(1, row), cell(1, row), w.title); err != nil {
		return 0, err
	}
	row++
	if d.GeneratedFor != "" {
		if err := w.f.SetCellValue(sheet, cell(1, row), d.GeneratedFor); err != nil {
			return 0, err
		}
		row++
	}
	return row + 1, nil
}

func (w *writer) headerRow(sheet string, row int, values []interface{}) error {
	if err := w.f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
		return err
	}
	return w.f.SetCellStyle(sheet, cell(1, row), cell(len(values), row), w.header)
}

func (w *writer) summarySheet(sheet string, d Data) error {
	row, err := w.heading(sheet, d.Period.ClosingLabel()+" - "+d.Period.Label(), d)
	if err != nil {
		return err
	}
	if err := w.headerRow(sheet, row, []interface{}{
		w.col("medication"), w.col("dci"), w.col("start_stock"),
		w.col("total_in"), w.col("total_out"), w.col("end_stock"),
	}); err != nil {
		return err
	}
	for _, r := range d.Summary {
		row++
		values := []interface{}{r.FullNom, r.DCI, r.StartStock, r.TotalIn, r.TotalOut, r.EndStock}
		if err := w.f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
			return err
		}
	}
	row++
	totals := []interface{}{"TOTAL", "", d.Totals.StartStock, d.Totals.TotalIn, d.Totals.TotalOut, d.Totals.EndStock}
	if err := w.f.SetSheetRow(sheet, cell(1, row), &totals); err != nil {
		return err
	}
	return w.f.SetColWidth(sheet, "A", "A", 42)
}

func (w *writer) breakdownSheet(sheet string, d Data) error {
	row, err := w.heading(sheet, d.Period.Label(), d)
	if err != nil {
		return err
	}

	header := []interface{}{w.col("medication"), w.col("start_stock")}
	for _, m := range d.Period.Months {
		header = append(header,
			m+" "+w.col("in"),
			m+" "+w.col("out"),
			m+" "+w.col("reste"))
	}
	header = append(header, w.col("final_stock"))
	if err := w.headerRow(sheet, row, header); err != nil {
		return err
	}

	for _, r := range d.Breakdown {
		row++
		values := []interface{}{r.Name, r.StartStock}
		for _, c := range r.Months {
			values = append(values, c.Entree, c.Sortie, c.Reste)
		}
		values = append(values, r.FinalStock)
		if err := w.f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
			return err
		}
	}
	return w.f.SetColWidth(sheet, "A", "A", 42)
}

func (w *writer) peremptionSheet(sheet string, reports []domain.Peremption) error {
	row := 1
	if err := w.headerRow(sheet, row, []interface{}{
		"N°", w.col("medication"), w.col("dci"), w.col("supplier"), w.col("lot"),
		w.col("expiry"), w.col("quantity"), w.col("unit_price"), w.col("total_price"),
		w.col("observation"),
	}); err != nil {
		return err
	}
	for _, p := range reports {
		for _, it := range p.Items {
			row++
			values := []interface{}{
				p.ReportNumber, it.MedicationName, it.DCI, it.Supplier, it.LotNumber,
				it.ExpiryDate, it.Quantity.Int(), it.UnitPrice.InexactFloat64(),
				it.TotalPrice.InexactFloat64(), it.Observation,
			}
			if err := w.f.SetSheetRow(sheet, cell(1, row), &values); err != nil {
				return err
			}
		}
		if len(p.Items) > 0 {
			row++
			total := []interface{}{p.ReportNumber, "TOTAL", "", "", "", "", "", "", p.Total().InexactFloat64()}
			if err := w.f.SetSheetRow(sheet, cell(1, row), &total); err != nil {
				return err
			}
		}
	}
	return w.f.SetColWidth(sheet, "B", "B", 42)
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}
