package importer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/livestock-import-api/internal/models"
)

const groupedOfftakeCSV = `Farmer Name,ID Number,Sale Date,Village,Live Weight 1,Carcass Weight 1,Price 1,Live Weight 2,Carcass Weight 2,Price 2
Jane Doe,12345678,2023-06-15,Kiserian,320,160,"KES 45,000",280,140,38000
,,,,300,150,40000,,,
John Mwangi,87654321,2023-06-15,Bissil,250,125,30000,,,
`

func TestParseCSVGroupedOfftake(t *testing.T) {
	res, err := NewPipeline(models.KindOfftake).ParseCSV(groupedOfftakeCSV)
	if err != nil {
		t.Fatal(err)
	}

	if res.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", res.RowCount)
	}
	if res.SkippedRows != 0 {
		t.Errorf("SkippedRows = %d, want 0", res.SkippedRows)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(res.Transactions))
	}

	jane := res.Transactions[0]
	if jane.IDNumber != "12345678" || jane.Name != "Jane Doe" {
		t.Errorf("first transaction = %+v", jane)
	}
	// Two units from the first row plus one from the continuation row
	if len(jane.Units) != 3 {
		t.Fatalf("Jane has %d units, want 3", len(jane.Units))
	}
	if got := jane.TotalPrice(); got != 123000 {
		t.Errorf("Jane total = %v, want 123000", got)
	}

	john := res.Transactions[1]
	if john.IDNumber != "87654321" || len(john.Units) != 1 {
		t.Errorf("second transaction = %+v", john)
	}
}

// A legacy flat export (one row per animal, un-numbered columns) of the same
// sale aggregates to the same transaction shape as the grouped layout.
func TestParseCSVLegacyFlatEquivalence(t *testing.T) {
	legacy := `ID Number,Sale Date,Live Weight (kg),Carcass Weight (kg),Price
12345678,2023-06-15,320,160,45000
12345678,2023-06-15,280,140,38000
`
	grouped := `ID Number,Sale Date,Live Weight 1,Carcass Weight 1,Price 1,Live Weight 2,Carcass Weight 2,Price 2
12345678,2023-06-15,320,160,45000,280,140,38000
`
	legacyRes, err := NewPipeline(models.KindOfftake).ParseCSV(legacy)
	if err != nil {
		t.Fatal(err)
	}
	groupedRes, err := NewPipeline(models.KindOfftake).ParseCSV(grouped)
	if err != nil {
		t.Fatal(err)
	}

	if len(legacyRes.Transactions) != 1 || len(groupedRes.Transactions) != 1 {
		t.Fatalf("transaction counts = %d, %d, want 1 each", len(legacyRes.Transactions), len(groupedRes.Transactions))
	}
	a, b := legacyRes.Transactions[0], groupedRes.Transactions[0]
	if len(a.Units) != len(b.Units) {
		t.Fatalf("unit counts differ: %d vs %d", len(a.Units), len(b.Units))
	}
	for i := range a.Units {
		if a.Units[i] != b.Units[i] {
			t.Errorf("unit %d differs: %+v vs %+v", i, a.Units[i], b.Units[i])
		}
	}
	if a.TotalPrice() != b.TotalPrice() {
		t.Errorf("totals differ: %v vs %v", a.TotalPrice(), b.TotalPrice())
	}
}

func TestParseCSVHeaderOnly(t *testing.T) {
	_, err := NewPipeline(models.KindOfftake).ParseCSV("ID Number,Live Weight 1,Price 1\n")
	if !errors.Is(err, ErrTooFewLines) {
		t.Errorf("err = %v, want ErrTooFewLines", err)
	}
}

func TestParseCSVNoIdentityColumn(t *testing.T) {
	_, err := NewPipeline(models.KindOfftake).ParseCSV("Name,Live Weight 1,Price 1\nJane,320,45000\n")
	if !errors.Is(err, ErrNoIdentityColumn) {
		t.Errorf("err = %v, want ErrNoIdentityColumn", err)
	}
}

func TestParseCSVSkippedRowsCounted(t *testing.T) {
	// Second row: blank identity with no units, nothing to attach — skipped.
	text := `ID Number,Live Weight 1,Price 1
,,
12345678,320,45000
`
	res, err := NewPipeline(models.KindOfftake).ParseCSV(text)
	if err != nil {
		t.Fatal(err)
	}
	if res.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1", res.SkippedRows)
	}
	if len(res.Transactions) != 1 {
		t.Errorf("transactions = %d, want 1", len(res.Transactions))
	}
}

func TestParseCSVFlatKind(t *testing.T) {
	text := `Farmer Name,ID Number,Phone,Vaccinated,Vaccine Names
Mary Wanjiku,11112222,0722000111,Yes,FMD; PPR
No Identity,,0722000222,No,
`
	res, err := NewPipeline(models.KindFarmers).ParseCSV(text)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Flat) != 1 {
		t.Fatalf("got %d flat records, want 1", len(res.Flat))
	}
	if res.SkippedRows != 1 {
		t.Errorf("SkippedRows = %d, want 1", res.SkippedRows)
	}
	rec := res.Flat[0]
	if rec.Name != "Mary Wanjiku" || !rec.Vaccinated || len(rec.Vaccines) != 2 {
		t.Errorf("record = %+v", rec)
	}
	if res.Len() != 1 {
		t.Errorf("Len = %d, want 1", res.Len())
	}
}

func TestParseJSONOfftake(t *testing.T) {
	data := []byte(`[
		{"idNumber":"12345678","name":"Jane Doe","date":"2023-06-15","liveWeight":"320","price":"45000"},
		{"idNumber":"12345678","date":"2023-06-15","liveWeight":280,"price":38000},
		{"idNumber":"87654321","date":{"seconds":1686787200},"liveWeight":250,"price":30000}
	]`)

	res, err := NewPipeline(models.KindOfftake).ParseJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(res.Transactions))
	}
	jane := res.Transactions[0]
	if len(jane.Units) != 2 || jane.TotalPrice() != 83000 {
		t.Errorf("first transaction = %+v", jane)
	}
	other := res.Transactions[1]
	if other.Date == nil || !other.Date.Equal(time.Date(2023, 6, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("wrapper date = %v", other.Date)
	}
}

func TestParseJSONFlat(t *testing.T) {
	data := []byte(`[{"idNumber":"11112222","name":"Mary","vaccinated":"yes","vaccines":"FMD"}]`)
	res, err := NewPipeline(models.KindTraining).ParseJSON(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Flat) != 1 || !res.Flat[0].Vaccinated {
		t.Errorf("result = %+v", res.Flat)
	}
}

func TestParseJSONInvalid(t *testing.T) {
	if _, err := NewPipeline(models.KindOfftake).ParseJSON([]byte(`{"not":"array"}`)); err == nil {
		t.Error("expected error for non-array payload")
	}
	if _, err := NewPipeline(models.KindOfftake).ParseJSON([]byte(`[]`)); !errors.Is(err, ErrTooFewLines) {
		t.Error("expected ErrTooFewLines for empty array")
	}
}

func TestParseRowsMatchesParseCSV(t *testing.T) {
	rows := DecodeLines(groupedOfftakeCSV)
	fromRows, err := NewPipeline(models.KindOfftake).ParseRows(rows)
	if err != nil {
		t.Fatal(err)
	}
	fromText, err := NewPipeline(models.KindOfftake).ParseCSV(groupedOfftakeCSV)
	if err != nil {
		t.Fatal(err)
	}
	if fromRows.Len() != fromText.Len() || fromRows.SkippedRows != fromText.SkippedRows {
		t.Errorf("ParseRows and ParseCSV disagree: %d/%d vs %d/%d",
			fromRows.Len(), fromRows.SkippedRows, fromText.Len(), fromText.SkippedRows)
	}
}

func TestObjString(t *testing.T) {
	obj := map[string]interface{}{
		"s": "text",
		"f": float64(1200.50),
		"i": float64(42),
		"b": true,
		"n": nil,
	}
	tests := []struct {
		key  string
		want string
	}{
		{"s", "text"},
		{"f", "1200.5"},
		{"i", "42"},
		{"b", "true"},
		{"n", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := objString(obj, tt.key); got != tt.want {
			t.Errorf("objString(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestParseCSVTrailingBlankLines(t *testing.T) {
	text := "ID Number,Live Weight 1,Price 1\n12345678,320,45000\n\n\n"
	res, err := NewPipeline(models.KindOfftake).ParseCSV(text)
	if err != nil {
		t.Fatal(err)
	}
	if res.RowCount != 1 || len(res.Transactions) != 1 {
		t.Errorf("RowCount = %d, transactions = %d", res.RowCount, len(res.Transactions))
	}
	if !strings.Contains(res.Transactions[0].IDNumber, "12345678") {
		t.Errorf("IDNumber = %q", res.Transactions[0].IDNumber)
	}
}
