// Package handler exposes the pharmacy services over HTTP
package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/reconcile"
	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/service"
	"github.com/pharmapsy/pharmapsy-backend/pkg/errors"
	"github.com/pharmapsy/pharmapsy-backend/pkg/httputil"
	"github.com/pharmapsy/pharmapsy-backend/pkg/logger"
)

func init() {
	// month tags accept any case: "août" is AOÛT
	if err := httputil.RegisterCustomValidation("month", func(fl validator.FieldLevel) bool {
		return domain.IsMonth(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	}); err != nil {
		panic(err)
	}
}

// Services are the dependencies of the pharmacy routes
type Services struct {
	Catalog   *service.CatalogService
	Settings  *service.SettingsService
	Inventory *service.InventoryService
	Orders    *service.OrderService
	Reports   *service.ReportService
	Backups   *service.BackupService
	Clock     service.Clock
}

// Routes mounts every pharmacy endpoint on r
func Routes(r chi.Router, s Services, log *logger.Logger) {
	catalog := NewCatalogHandler(s.Catalog, log)
	settings := NewSettingsHandler(s.Settings, log)
	inventory := NewInventoryHandler(s.Inventory, log)
	orders := NewOrderHandler(s.Orders, log)
	reports := NewReportHandler(s.Reports, s.Clock, log)
	backups := NewBackupHandler(s.Backups, s.Clock, log)

	r.Route("/medications", func(r chi.Router) {
		r.Get("/", catalog.ListMedications)
		r.Post("/", catalog.SaveMedication)
		r.Get("/{id}", catalog.GetMedication)
		r.Put("/{id}", catalog.SaveMedication)
		r.Delete("/{id}", catalog.DeleteMedication)
		r.Get("/{id}/regime", catalog.MedicationRegime)
	})

	r.Route("/confirmations", func(r chi.Router) {
		r.Get("/", catalog.ListConfirmations)
		r.Post("/", catalog.SaveConfirmation)
		r.Put("/{id}", catalog.SaveConfirmation)
		r.Delete("/{id}", catalog.DeleteConfirmation)
	})

	r.Route("/suppliers", func(r chi.Router) {
		r.Get("/", catalog.ListSuppliers)
		r.Post("/", catalog.SaveSupplier)
		r.Put("/{id}", catalog.SaveSupplier)
		r.Delete("/{id}", catalog.DeleteSupplier)
	})

	r.Get("/pharmacy", catalog.GetPharmacy)
	r.Put("/pharmacy", catalog.SavePharmacy)

	r.Get("/settings", settings.Get)
	r.Patch("/settings", settings.Update)

	r.Route("/entries", func(r chi.Router) {
		r.Get("/", inventory.ListEntries)
		r.Post("/", inventory.RecordEntries)
		r.Delete("/{id}", inventory.DeleteEntry)
	})

	r.Route("/exits", func(r chi.Router) {
		r.Get("/", inventory.ListExits)
		r.Post("/", inventory.RecordExits)
		r.Delete("/{id}", inventory.DeleteExit)
	})

	r.Route("/initial-stocks", func(r chi.Router) {
		r.Get("/", inventory.ListInitialStocks)
		r.Post("/", inventory.SaveInitialStock)
		r.Put("/{id}", inventory.SaveInitialStock)
		r.Delete("/{id}", inventory.DeleteInitialStock)
	})

	r.Route("/peremptions", func(r chi.Router) {
		r.Get("/", inventory.ListPeremptions)
		r.Post("/", inventory.SavePeremption)
		r.Get("/{id}", inventory.GetPeremption)
		r.Put("/{id}", inventory.SavePeremption)
		r.Delete("/{id}", inventory.DeletePeremption)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", orders.List)
		r.Post("/", orders.Save)
		r.Get("/{id}", orders.Get)
		r.Put("/{id}", orders.Save)
		r.Delete("/{id}", orders.Delete)
		r.Post("/{id}/receive", orders.Receive)
	})

	r.Route("/reports", func(r chi.Router) {
		r.Get("/summary", reports.Summary)
		r.Get("/breakdown", reports.Breakdown)
		r.Get("/as-of", reports.AsOf)
		r.Get("/pv", reports.PV)
		r.Get("/stats", reports.Stats)
		r.Get("/workbook", reports.Workbook)
		r.Get("/journal", reports.Journal)
	})

	r.Route("/backup", func(r chi.Router) {
		r.Get("/export", backups.Export)
		r.Post("/import", backups.Import)
		r.Post("/run", backups.Run)
	})
}

// PeriodFromQuery reads a report selection from query values:
//
//	?year=2024&months=MARS,AVRIL   explicit months, repeated or comma separated
//	?year=2024&season=2            a quarter
//	?year=2024                     the quarter containing today
//
// An explicitly empty months parameter is rejected.
func PeriodFromQuery(q map[string][]string, now time.Time) (reconcile.Period, error) {
	year := first(q, "year")
	if year == "" {
		year = strconv.Itoa(now.Year())
	}

	if season := first(q, "season"); season != "" {
		n, err := strconv.Atoi(season)
		if err != nil || n < 1 || n > len(domain.Seasons) {
			return reconcile.Period{}, errors.Validation(map[string]string{"season": "must be between 1 and 4"})
		}
		return reconcile.NewPeriod(year, domain.Seasons[n-1].Months[:])
	}

	raw, given := q["months"]
	if !given {
		season := domain.SeasonOf(int(now.Month()) - 1)
		return reconcile.NewPeriod(year, season.Months[:])
	}

	var months []string
	for _, v := range raw {
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				months = append(months, m)
			}
		}
	}

	p, err := reconcile.NewPeriod(year, months)
	if errors.Is(err, reconcile.ErrEmptySelection) {
		return p, errors.Validation(map[string]string{"months": err.Error()}).
			WithKey("errors.empty_month_selection", nil)
	}
	if err != nil {
		return p, errors.Validation(map[string]string{"period": err.Error()})
	}
	return p, nil
}

func first(q map[string][]string, key string) string {
	if v := q[key]; len(v) > 0 {
		return strings.TrimSpace(v[0])
	}
	return ""
}
