package domain

// Collection names, shared with JSON backups
const (
	CollectionOrders        = "orders"
	CollectionSuppliers     = "suppliers"
	CollectionMedications   = "medications"
	CollectionConfirmations = "confirmations"
	CollectionPharmacy      = "pharmacy"
	CollectionSettings      = "settings"
	CollectionEntries       = "inventory_entrees"
	CollectionExits         = "inventory_sorties"
	CollectionInitialStocks = "inventory_initial"
	CollectionPeremptions   = "inventory_peremptions"
)

// Collections lists every known collection in backup order
var Collections = []string{
	CollectionOrders,
	CollectionSuppliers,
	CollectionMedications,
	CollectionConfirmations,
	CollectionPharmacy,
	CollectionSettings,
	CollectionEntries,
	CollectionExits,
	CollectionInitialStocks,
	CollectionPeremptions,
}

// IsCollection reports whether name is a known collection
func IsCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// Medication is a catalog entry
type Medication struct {
	ID              string `json:"id"`
	DCI             string `json:"dci"`
	CommercialNom   string `json:"commercialNom"`
	Forme           string `json:"forme"`
	Dosage          string `json:"dosage"`
	Conditionnement string `json:"conditionnement"`
	FullNom         string `json:"fullNom"`
}

// MedicationItem is a line of an order or an initial stock document
type MedicationItem struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Quantity     Quantity `json:"quantity"`
	Unit         string   `json:"unit"`
	Notes        string   `json:"notes,omitempty"`
	MedicationID string   `json:"medicationId,omitempty"`
}

// Supplier is a wholesaler medications are ordered from
type Supplier struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

// Prescription regimes for a DCI
const (
	RemarqueOrdinaire = "ORDONNANCE ORDINAIRE"
	RemarqueSouches   = "ORDONNANCE 03 SOUCHES"
)

// DCIConfirmation records which prescription regime applies to an active ingredient
type DCIConfirmation struct {
	ID       string `json:"id"`
	DCI      string `json:"dci"`
	Remarque string `json:"remarque"`
}

// PharmacyInfo is the letterhead printed on reports
type PharmacyInfo struct {
	Name      string `json:"name"`
	Address   string `json:"address"`
	NOrdre    string `json:"nOrdre"`
	Agreement string `json:"agreement"`
	NIF       string `json:"nif"`
	NIS       string `json:"nis"`
	RC        string `json:"rc"`
	Tel       string `json:"tel"`
}

// PharmacyKey is the singleton record key of the pharmacy profile
const PharmacyKey = "main"

// PharmacyRecord is the stored envelope of the pharmacy profile
type PharmacyRecord struct {
	Key  string       `json:"key"`
	Data PharmacyInfo `json:"data"`
}

// Order statuses
const (
	OrderDraft     = "Draft"
	OrderSaved     = "Saved"
	OrderProcessed = "Processed"
)

// Order is a purchase order sent to a supplier
type Order struct {
	ID          string           `json:"id"`
	OrderNumber string           `json:"orderNumber"`
	Date        string           `json:"date"`
	Supplier    string           `json:"supplier"`
	Items       []MedicationItem `json:"items"`
	Status      string           `json:"status"`
	CreatedAt   Timestamp        `json:"createdAt"`
}

// StockInitial is the year-start baseline document
type StockInitial struct {
	ID        string           `json:"id"`
	DocNumber string           `json:"docNumber"`
	Date      string           `json:"date"`
	Items     []MedicationItem `json:"items"`
	CreatedAt Timestamp        `json:"createdAt"`
}

// Year returns the year prefix of the document date
func (s StockInitial) Year() string {
	if len(s.Date) < 4 {
		return ""
	}
	return s.Date[:4]
}

// InventoryEntry is a receipt of stock
type InventoryEntry struct {
	ID           string    `json:"id"`
	Year         string    `json:"year"`
	Month        string    `json:"month"`
	Supplier     string    `json:"supplier"`
	DrugName     string    `json:"drugName"`
	Quantity     Quantity  `json:"quantity"`
	Date         string    `json:"date"`
	CreatedAt    Timestamp `json:"createdAt"`
	OrderID      string    `json:"orderId,omitempty"`
	MedicationID string    `json:"medicationId,omitempty"`
}

// ReasonPeremption tags exits mirrored from expiry reports
const ReasonPeremption = "PÉREMPTION"

// ExitReasons are the suggested exit motives; any text is accepted
var ExitReasons = []string{"VENTE", "PÉRIMÉ", "DON", "CASSE", "ERREUR INVENTAIRE", "AUTRE"}

// InventoryExit is a removal of stock
type InventoryExit struct {
	ID               string    `json:"id"`
	Year             string    `json:"year"`
	Month            string    `json:"month"`
	DrugName         string    `json:"drugName"`
	Quantity         Quantity  `json:"quantity"`
	Reason           string    `json:"reason"`
	Date             string    `json:"date"`
	CreatedAt        Timestamp `json:"createdAt"`
	PeremptionID     string    `json:"peremptionId,omitempty"`
	PeremptionItemID string    `json:"peremptionItemId,omitempty"`
	MedicationID     string    `json:"medicationId,omitempty"`
}

// PeremptionItem is one expired lot
type PeremptionItem struct {
	ID             string   `json:"id"`
	MedicationName string   `json:"medicationName"`
	DCI            string   `json:"dci"`
	Supplier       string   `json:"supplier"`
	LotNumber      string   `json:"lotNumber"`
	ExpiryDate     string   `json:"expiryDate"` // MM/YYYY
	Quantity       Quantity `json:"quantity"`
	UnitPrice      Money    `json:"unitPrice"`
	TotalPrice     Money    `json:"totalPrice"`
	Observation    string   `json:"observation"`
}

// Peremption is an expiry write-off report
type Peremption struct {
	ID           string           `json:"id"`
	ReportNumber string           `json:"reportNumber"`
	Date         string           `json:"date"`
	Items        []PeremptionItem `json:"items"`
	CreatedAt    Timestamp        `json:"createdAt"`
}

// Total sums the line totals
func (p Peremption) Total() Money {
	total := Money{}
	for _, it := range p.Items {
		total.Decimal = total.Decimal.Add(it.TotalPrice.Decimal)
	}
	return total
}

// Setting keys
const (
	SettingLanguage              = "language"
	SettingTheme                 = "theme"
	SettingSoundsEnabled         = "soundsEnabled"
	SettingRemindersEnabled      = "remindersEnabled"
	SettingLastInventoryReminder = "lastInventoryReminder"
)

// Setting is a stored key/value preference
type Setting struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// Settings is the typed view of the settings collection
type Settings struct {
	Language              string `json:"language"`
	Theme                 string `json:"theme"`
	SoundsEnabled         bool   `json:"soundsEnabled"`
	RemindersEnabled      bool   `json:"remindersEnabled"`
	LastInventoryReminder string `json:"lastInventoryReminder,omitempty"`
}

// DefaultSettings applies when nothing is stored
func DefaultSettings() Settings {
	return Settings{
		Language:         "fr",
		Theme:            "light",
		SoundsEnabled:    true,
		RemindersEnabled: true,
	}
}

// DefaultSuppliers is shown until the first supplier is saved
func DefaultSuppliers() []Supplier {
	return []Supplier{
		{ID: "1", Name: "Global Health Dist.", Address: "12 Avenue de l'Hôpital, 75001 Paris", Phone: "01 23 45 67 89"},
		{ID: "2", Name: "MediSource Logistics", Address: "88 Rue du Commerce, 69002 Lyon", Phone: "04 12 34 56 78"},
	}
}
