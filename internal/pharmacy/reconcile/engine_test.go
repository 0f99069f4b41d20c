package reconcile

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pharmapsy/pharmapsy-backend/internal/pharmacy/domain"
)

const doliprane = "DOLIPRANE CP 500MG B/16"

func dolipraneInput() Input {
	return Input{
		Medications: []domain.Medication{
			{ID: "med-1", DCI: "PARACETAMOL", FullNom: doliprane},
		},
		InitialStocks: []domain.StockInitial{
			{ID: "si-1", DocNumber: "SI-2024-0001", Date: "2024-01-01", Items: []domain.MedicationItem{
				{ID: "l1", Name: doliprane, Quantity: 100},
			}},
		},
		Entries: []domain.InventoryEntry{
			{ID: "e1", Year: "2024", Month: "MARS", DrugName: doliprane, Quantity: 50, Date: "2024-03-10"},
		},
		Exits: []domain.InventoryExit{
			{ID: "x1", Year: "2024", Month: "MARS", DrugName: doliprane, Quantity: 30, Date: "2024-03-20"},
		},
	}
}

func mustPeriod(t *testing.T, year string, months ...string) Period {
	t.Helper()
	p, err := NewPeriod(year, months)
	require.NoError(t, err)
	return p
}

func TestSummarize_DolipraneMarch(t *testing.T) {
	p := mustPeriod(t, "2024", "MARS")
	assert.Equal(t, "2024-03-01", p.Start())

	rows := Summarize(dolipraneInput(), p)
	require.Len(t, rows, 1)
	r := rows[0]
	assert.Equal(t, 100, r.Baseline)
	assert.Equal(t, 0, r.PreIn)
	assert.Equal(t, 0, r.PreOut)
	assert.Equal(t, 100, r.StartStock)
	assert.Equal(t, 50, r.TotalIn)
	assert.Equal(t, 30, r.TotalOut)
	assert.Equal(t, 120, r.EndStock)
}

func TestSummarize_DolipraneApril(t *testing.T) {
	p := mustPeriod(t, "2024", "AVRIL")
	assert.Equal(t, "2024-04-01", p.Start())

	r := Summarize(dolipraneInput(), p)[0]
	assert.Equal(t, 50, r.PreIn)
	assert.Equal(t, 30, r.PreOut)
	assert.Equal(t, 120, r.StartStock)
	assert.Equal(t, 0, r.TotalIn)
	assert.Equal(t, 0, r.TotalOut)
	assert.Equal(t, 120, r.EndStock)
}

func TestSummarize_PeriodStartBoundary(t *testing.T) {
	in := dolipraneInput()
	in.Entries = append(in.Entries, domain.InventoryEntry{
		ID: "e2", Year: "2024", Month: "MARS", DrugName: doliprane, Quantity: 7, Date: "2024-03-01",
	})

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, 0, r.PreIn, "a movement dated on the period start is not carried")
	assert.Equal(t, 57, r.TotalIn)
	assert.Equal(t, 127, r.EndStock)
}

func TestSummarize_YearIsolation(t *testing.T) {
	in := dolipraneInput()
	// tagged 2023 although dated in March 2024
	in.Entries = append(in.Entries, domain.InventoryEntry{
		ID: "e2", Year: "2023", Month: "MARS", DrugName: doliprane, Quantity: 999, Date: "2024-03-05",
	})
	in.Exits = append(in.Exits, domain.InventoryExit{
		ID: "x2", Year: "2023", Month: "JANVIER", DrugName: doliprane, Quantity: 999, Date: "2024-01-05",
	})
	in.InitialStocks = append(in.InitialStocks, domain.StockInitial{
		ID: "si-2023", Date: "2023-01-01", Items: []domain.MedicationItem{{Name: doliprane, Quantity: 500}},
	})

	for _, month := range []string{"MARS", "AVRIL"} {
		r := Summarize(in, mustPeriod(t, "2024", month))[0]
		assert.Equal(t, 100, r.Baseline)
		assert.Equal(t, 120, r.EndStock, month)
	}
}

func TestSummarize_Idempotent(t *testing.T) {
	in := dolipraneInput()
	p := mustPeriod(t, "2024", "JANVIER", "FÉVRIER", "MARS")

	assert.Equal(t, Summarize(in, p), Summarize(in, p))
}

func TestSummarize_InvalidRowsSkipped(t *testing.T) {
	in := dolipraneInput()
	in.Entries = append(in.Entries,
		domain.InventoryEntry{ID: "bad1", Year: "2024", Month: "MARS", DrugName: doliprane, Quantity: 0, Date: "2024-03-11"},
		domain.InventoryEntry{ID: "bad2", Year: "2024", Month: "MARS", DrugName: doliprane, Quantity: -5, Date: "2024-03-11"},
		domain.InventoryEntry{ID: "bad3", Year: "2024", Month: "MARS", DrugName: "  ", Quantity: 5, Date: "2024-03-11"},
	)

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, 50, r.TotalIn)
}

func TestSummarize_CaseInsensitiveNames(t *testing.T) {
	in := dolipraneInput()
	in.Entries[0].DrugName = "doliprane cp 500mg b/16"
	in.InitialStocks[0].Items[0].Name = "Doliprane CP 500mg B/16"

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, 100, r.Baseline)
	assert.Equal(t, 50, r.TotalIn)
}

func TestSummarize_NegativeStockPreserved(t *testing.T) {
	in := dolipraneInput()
	in.Exits[0].Quantity = 400

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, -250, r.EndStock)
}

func TestSummarize_MultipleBaselineDocumentsSum(t *testing.T) {
	in := dolipraneInput()
	in.InitialStocks = append(in.InitialStocks, domain.StockInitial{
		ID: "si-b", Date: "2024-06-30", Items: []domain.MedicationItem{{Name: doliprane, Quantity: 10}},
	})

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, 110, r.Baseline)
}

func TestSummarize_JoinsOnMedicationID(t *testing.T) {
	in := dolipraneInput()
	// the catalog entry was renamed after the movements were recorded
	in.Medications[0].FullNom = "DOLIPRANE CPR 500MG B/16"
	in.Entries[0].MedicationID = "med-1"
	in.InitialStocks[0].Items[0].MedicationID = "med-1"

	rows, un := SummarizeWithUnmatched(in, mustPeriod(t, "2024", "MARS"))
	r := rows[0]
	assert.Equal(t, 100, r.Baseline)
	assert.Equal(t, 50, r.TotalIn)
	assert.Equal(t, 0, r.TotalOut, "the exit only carries the old name")

	assert.Equal(t, 30, un.Out)
	assert.Equal(t, 1, un.Rows)
	assert.Equal(t, []string{doliprane}, un.Name)
}

func TestSummarize_UnknownIDFallsBackToName(t *testing.T) {
	in := dolipraneInput()
	in.Entries[0].MedicationID = "deleted-med"

	r := Summarize(in, mustPeriod(t, "2024", "MARS"))[0]
	assert.Equal(t, 50, r.TotalIn)
}

func TestSummarize_EmptySelectionFallsBackToJanuary(t *testing.T) {
	p := NewPeriodUnchecked("2024", nil)
	assert.Equal(t, "2024-01-01", p.Start())

	r := Summarize(dolipraneInput(), p)[0]
	assert.Equal(t, 100, r.StartStock)
	assert.Equal(t, 0, r.TotalIn)
	assert.Equal(t, 0, r.TotalOut)
	assert.Equal(t, 100, r.EndStock)
}

func TestSummarize_EmptyInput(t *testing.T) {
	assert.Empty(t, Summarize(Input{}, mustPeriod(t, "2024", "MARS")))
}

func TestBreakdown_RunningBalance(t *testing.T) {
	in := dolipraneInput()
	in.Entries = append(in.Entries, domain.InventoryEntry{
		ID: "e2", Year: "2024", Month: "JANVIER", DrugName: doliprane, Quantity: 20, Date: "2024-01-15",
	})
	in.Exits = append(in.Exits, domain.InventoryExit{
		ID: "x2", Year: "2024", Month: "MAI", DrugName: doliprane, Quantity: 15, Date: "2024-05-02",
	})

	// selection order does not matter
	p := mustPeriod(t, "2024", "MAI", "MARS", "AVRIL")
	rows := Breakdown(in, p, ModeAll)
	require.Len(t, rows, 1)
	r := rows[0]

	assert.Equal(t, 100, r.Baseline)
	assert.Equal(t, 120, r.StartStock)
	assert.Equal(t, []MonthCell{
		{Month: "MARS", Entree: 50, Sortie: 30, Reste: 140},
		{Month: "AVRIL", Entree: 0, Sortie: 0, Reste: 140},
		{Month: "MAI", Entree: 0, Sortie: 15, Reste: 125},
	}, r.Months)
	assert.Equal(t, 125, r.FinalStock)
	assert.True(t, r.HasMovement)
}

func TestBreakdown_ActiveModeAndNameOrder(t *testing.T) {
	in := Input{
		Medications: []domain.Medication{
			{ID: "1", FullNom: "ZOLPIDEM 10MG"},
			{ID: "2", FullNom: "ÉPHÉDRINE 30MG"},
			{ID: "3", FullNom: "ALPRAZOLAM 0.5MG"},
			{ID: "4", FullNom: "FENTANYL 25UG"},
		},
		InitialStocks: []domain.StockInitial{{Date: "2024-01-01", Items: []domain.MedicationItem{
			{Name: "ZOLPIDEM 10MG", Quantity: 5},
		}}},
		Entries: []domain.InventoryEntry{
			{Year: "2024", Month: "JUIN", DrugName: "ÉPHÉDRINE 30MG", Quantity: 3, Date: "2024-06-02"},
			// outside the selection: FENTANYL has no activity in the period
			{Year: "2024", Month: "JANVIER", DrugName: "FENTANYL 25UG", Quantity: 3, Date: "2024-01-02"},
		},
		Exits: []domain.InventoryExit{
			{Year: "2024", Month: "AVRIL", DrugName: "ALPRAZOLAM 0.5MG", Quantity: 2, Date: "2024-04-02"},
		},
	}
	p := SeasonPeriod("2024", domain.Seasons[1])

	all := Breakdown(in, p, ModeAll)
	names := func(rows []BreakdownRow) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Name
		}
		return out
	}
	assert.Equal(t, []string{"ALPRAZOLAM 0.5MG", "ÉPHÉDRINE 30MG", "FENTANYL 25UG", "ZOLPIDEM 10MG"}, names(all))

	active := Breakdown(in, p, ModeActive)
	assert.Equal(t, []string{"ALPRAZOLAM 0.5MG", "ÉPHÉDRINE 30MG", "ZOLPIDEM 10MG"}, names(active))

	for _, r := range all {
		if r.Name == "ALPRAZOLAM 0.5MG" {
			assert.Equal(t, -2, r.FinalStock)
		}
	}
}

// randomInput builds a ledger whose month tags agree with dates
func randomInput(r *rand.Rand) Input {
	meds := []domain.Medication{
		{ID: "a", FullNom: "A"}, {ID: "b", FullNom: "B"}, {ID: "c", FullNom: "C"},
	}
	in := Input{Medications: meds}
	in.InitialStocks = []domain.StockInitial{{Date: "2024-01-01"}}
	for _, m := range meds {
		in.InitialStocks[0].Items = append(in.InitialStocks[0].Items,
			domain.MedicationItem{Name: m.FullNom, Quantity: domain.Quantity(r.Intn(50))})
	}
	for i := 0; i < 200; i++ {
		month := r.Intn(12)
		date := fmt.Sprintf("2024-%02d-%02d", month+1, r.Intn(28)+1)
		year := "2024"
		if r.Intn(10) == 0 {
			year = "2023"
		}
		name := meds[r.Intn(len(meds))].FullNom
		qty := domain.Quantity(r.Intn(20))
		if r.Intn(2) == 0 {
			in.Entries = append(in.Entries, domain.InventoryEntry{Year: year, Month: domain.Months[month], DrugName: name, Quantity: qty, Date: date})
		} else {
			in.Exits = append(in.Exits, domain.InventoryExit{Year: year, Month: domain.Months[month], DrugName: name, Quantity: qty, Date: date})
		}
	}
	return in
}

func randomSelection(r *rand.Rand) []string {
	var months []string
	for _, m := range domain.Months {
		if r.Intn(3) == 0 {
			months = append(months, m)
		}
	}
	if len(months) == 0 {
		months = append(months, domain.Months[r.Intn(12)])
	}
	return months
}

func TestProperties_ConservationAndChaining(t *testing.T) {
	r := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		in := randomInput(r)
		p := mustPeriod(t, "2024", randomSelection(r)...)

		rows := Summarize(in, p)
		for _, row := range rows {
			assert.Equal(t, row.StartStock+row.TotalIn-row.TotalOut, row.EndStock)
			assert.Equal(t, row.Baseline+row.PreIn-row.PreOut, row.StartStock)
		}

		byID := map[string]Row{}
		for _, row := range rows {
			byID[row.MedicationID] = row
		}
		for _, b := range Breakdown(in, p, ModeAll) {
			prev := b.StartStock
			sumIn, sumOut := 0, 0
			for _, cell := range b.Months {
				assert.Equal(t, prev+cell.Entree-cell.Sortie, cell.Reste)
				prev = cell.Reste
				sumIn += cell.Entree
				sumOut += cell.Sortie
			}
			s := byID[b.MedicationID]
			assert.Equal(t, s.StartStock, b.StartStock)
			assert.Equal(t, s.TotalIn, sumIn)
			assert.Equal(t, s.TotalOut, sumOut)
			assert.Equal(t, s.EndStock, b.FinalStock)
		}
	}
}

func TestAsOf(t *testing.T) {
	in := dolipraneInput()

	snap := AsOf(in, "2024", "2024-03-10")
	require.Len(t, snap, 1)
	assert.Equal(t, 150, snap[0].Stock, "cut-off day is inclusive")

	snap = AsOf(in, "2024", "2024-03-09")
	assert.Equal(t, 100, snap[0].Stock)

	snap = AsOf(in, "2024", "2024-12-31")
	assert.Equal(t, 120, snap[0].Stock)
	assert.Equal(t, 50, snap[0].In)
	assert.Equal(t, 30, snap[0].Out)

	snap = AsOf(in, "2025", "2025-12-31")
	assert.Equal(t, 0, snap[0].Stock)
}

func TestSum(t *testing.T) {
	rows := []Row{
		{StartStock: 10, TotalIn: 5, TotalOut: 3, EndStock: 12},
		{StartStock: -1, TotalIn: 0, TotalOut: 2, EndStock: -3},
	}
	assert.Equal(t, Totals{StartStock: 9, TotalIn: 5, TotalOut: 5, EndStock: 9}, Sum(rows))
}
