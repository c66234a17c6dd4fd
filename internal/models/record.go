package models

import (
	"time"
)

// ImportKind identifies which dataset an import file targets
type ImportKind string

const (
	KindOfftake  ImportKind = "offtake"
	KindFarmers  ImportKind = "farmers"
	KindFodder   ImportKind = "fodder"
	KindTraining ImportKind = "training"
)

// ValidKinds defines allowed import kinds
var ValidKinds = map[ImportKind]bool{
	KindOfftake:  true,
	KindFarmers:  true,
	KindFodder:   true,
	KindTraining: true,
}

// Collection returns the document-store collection an import kind writes into
func (k ImportKind) Collection() string {
	return string(k)
}

// CandidateUnit is one animal extracted from a source row. A single offtake
// row can carry several units via grouped columns (Live Weight 1, Live
// Weight 2, ...).
type CandidateUnit struct {
	LiveWeight    float64 `json:"liveWeight"`
	CarcassWeight float64 `json:"carcassWeight"`
	Price         float64 `json:"price"`
}

// Transaction is one logical offtake event aggregated from one or more
// source rows sharing the same identity+date key.
type Transaction struct {
	Name          string          `json:"name,omitempty"`
	Gender        string          `json:"gender,omitempty"`
	IDNumber      string          `json:"idNumber"`
	Phone         string          `json:"phone,omitempty"`
	County        string          `json:"county,omitempty"`
	Subcounty     string          `json:"subcounty,omitempty"`
	Location      string          `json:"location,omitempty"`
	Programme     string          `json:"programme,omitempty"`
	RegisteredBy  string          `json:"registeredBy,omitempty"`
	ExternalID    string          `json:"externalId,omitempty"`
	Date          *time.Time      `json:"date,omitempty"`
	DisplayDate   string          `json:"displayDate,omitempty"`
	ReportedCount int             `json:"reportedCount,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	Units         []CandidateUnit `json:"units"`
}

// TotalPrice sums unit prices. Derived at persistence time, never stored
// redundantly upstream.
func (t *Transaction) TotalPrice() float64 {
	var total float64
	for _, u := range t.Units {
		total += u.Price
	}
	return total
}

// Document returns the persisted shape of the transaction, including the
// fields derived from the unit list.
func (t *Transaction) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"idNumber":   t.IDNumber,
		"units":      t.Units,
		"unitCount":  len(t.Units),
		"totalPrice": t.TotalPrice(),
		"createdAt":  t.CreatedAt,
	}
	putIfSet(doc, "name", t.Name)
	putIfSet(doc, "gender", t.Gender)
	putIfSet(doc, "phone", t.Phone)
	putIfSet(doc, "county", t.County)
	putIfSet(doc, "subcounty", t.Subcounty)
	putIfSet(doc, "location", t.Location)
	putIfSet(doc, "programme", t.Programme)
	putIfSet(doc, "registeredBy", t.RegisteredBy)
	putIfSet(doc, "externalId", t.ExternalID)
	putIfSet(doc, "displayDate", t.DisplayDate)
	if t.Date != nil {
		doc["date"] = *t.Date
	}
	if t.ReportedCount > 0 {
		doc["reportedCount"] = t.ReportedCount
	}
	return doc
}

// FlatRecord is one candidate record from a simple import (farmers, fodder,
// training) where a row maps 1:1 to a stored document.
type FlatRecord struct {
	Name         string     `json:"name,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	IDNumber     string     `json:"idNumber"`
	Phone        string     `json:"phone,omitempty"`
	County       string     `json:"county,omitempty"`
	Subcounty    string     `json:"subcounty,omitempty"`
	Location     string     `json:"location,omitempty"`
	Programme    string     `json:"programme,omitempty"`
	RegisteredBy string     `json:"registeredBy,omitempty"`
	Date         *time.Time `json:"date,omitempty"`
	Vaccinated   bool       `json:"vaccinated,omitempty"`
	Vaccines     []string   `json:"vaccines,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Document returns the persisted shape of the record.
func (r *FlatRecord) Document() map[string]interface{} {
	doc := map[string]interface{}{
		"idNumber":  r.IDNumber,
		"createdAt": r.CreatedAt,
	}
	putIfSet(doc, "name", r.Name)
	putIfSet(doc, "gender", r.Gender)
	putIfSet(doc, "phone", r.Phone)
	putIfSet(doc, "county", r.County)
	putIfSet(doc, "subcounty", r.Subcounty)
	putIfSet(doc, "location", r.Location)
	putIfSet(doc, "programme", r.Programme)
	putIfSet(doc, "registeredBy", r.RegisteredBy)
	if r.Date != nil {
		doc["date"] = *r.Date
	}
	if r.Vaccinated {
		doc["vaccinated"] = true
	}
	if len(r.Vaccines) > 0 {
		doc["vaccines"] = r.Vaccines
	}
	return doc
}

// Progress reports batch persistence progress. Current is monotonically
// non-decreasing during one run and ends equal to Total.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

func putIfSet(doc map[string]interface{}, key, value string) {
	if value != "" {
		doc[key] = value
	}
}
