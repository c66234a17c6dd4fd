package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/livestock-import-api/internal/models"
)

// Structural failures abort an import before any write.
var (
	// ErrTooFewLines means the file had fewer than two non-blank lines
	// (a header row plus at least one data row).
	ErrTooFewLines = errors.New("file must contain a header row and at least one data row")

	// ErrNoIdentityColumn means no header resolved to the id number role.
	ErrNoIdentityColumn = errors.New("no id number column found in header row")
)

// Result is the parsed output of one file, before persistence.
type Result struct {
	// Transactions is populated for offtake imports.
	Transactions []*models.Transaction

	// Flat is populated for farmers, fodder and training imports.
	Flat []*models.FlatRecord

	// RowCount is the number of data rows seen; SkippedRows is how many
	// produced nothing (zero units, or blank identity with no prior
	// transaction to attach to).
	RowCount    int
	SkippedRows int
}

// Len returns the number of records the result will persist.
func (r *Result) Len() int {
	if len(r.Transactions) > 0 {
		return len(r.Transactions)
	}
	return len(r.Flat)
}

// Pipeline ties the decode, resolve, build and aggregate stages together for
// one import kind. It is pure in-memory transformation; the only I/O in an
// import run happens in the persistence engine downstream.
type Pipeline struct {
	kind     models.ImportKind
	resolver *Resolver
	now      func() time.Time
}

// NewPipeline returns a pipeline for the given import kind using the
// built-in role keywords.
func NewPipeline(kind models.ImportKind) *Pipeline {
	return &Pipeline{kind: kind, resolver: NewResolver(), now: time.Now}
}

// WithResolver swaps in a resolver with extended keyword sets.
func (p *Pipeline) WithResolver(r *Resolver) *Pipeline {
	p.resolver = r
	return p
}

// ParseRows runs already-decoded rows (CSV text or an XLSX sheet) through
// the pipeline. Row 0 is the header row.
func (p *Pipeline) ParseRows(rows [][]string) (*Result, error) {
	if len(rows) < 2 {
		return nil, ErrTooFewLines
	}

	cm := p.resolver.Resolve(rows[0])
	if !cm.Has(RoleIDNumber) {
		return nil, ErrNoIdentityColumn
	}

	data := rows[1:]
	res := &Result{RowCount: len(data)}

	if p.kind == models.KindOfftake {
		agg := NewAggregator()
		contributed := 0
		for _, row := range data {
			entity := BuildOfftakeRow(row, cm)
			if len(entity.Units) > 0 || entity.IDNumber != "" {
				contributed++
			}
			agg.Add(entity)
		}
		res.Transactions = agg.Finalize()
		res.SkippedRows = len(data) - contributed
		return res, nil
	}

	now := p.now()
	for _, row := range data {
		rec := BuildFlatRow(row, cm, now)
		if rec.IDNumber == "" {
			res.SkippedRows++
			continue
		}
		r := rec
		res.Flat = append(res.Flat, &r)
	}
	return res, nil
}

// ParseCSV decodes CSV text and runs it through the pipeline.
func (p *Pipeline) ParseCSV(text string) (*Result, error) {
	return p.ParseRows(DecodeLines(text))
}

// ParseJSON accepts an array of flat objects already carrying canonical
// field names; the header and role resolution stages are bypassed entirely.
// Each object contributes at most one unit, and objects are aggregated by
// the same identity+date rule as CSV rows.
func (p *Pipeline) ParseJSON(data []byte) (*Result, error) {
	var objects []map[string]interface{}
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}
	if len(objects) == 0 {
		return nil, ErrTooFewLines
	}

	res := &Result{RowCount: len(objects)}

	if p.kind == models.KindOfftake {
		agg := NewAggregator()
		contributed := 0
		for _, obj := range objects {
			entity := entityFromObject(obj)
			if len(entity.Units) > 0 || entity.IDNumber != "" {
				contributed++
			}
			agg.Add(entity)
		}
		res.Transactions = agg.Finalize()
		res.SkippedRows = len(objects) - contributed
		return res, nil
	}

	now := p.now()
	for _, obj := range objects {
		rec := flatFromObject(obj, now)
		if rec.IDNumber == "" {
			res.SkippedRows++
			continue
		}
		res.Flat = append(res.Flat, rec)
	}
	return res, nil
}

func entityFromObject(obj map[string]interface{}) RowEntity {
	e := RowEntity{
		Name:         objString(obj, "name"),
		Gender:       objString(obj, "gender"),
		IDNumber:     objString(obj, "idNumber"),
		Phone:        objString(obj, "phone"),
		County:       objString(obj, "county"),
		Subcounty:    objString(obj, "subcounty"),
		Location:     objString(obj, "location"),
		Programme:    objString(obj, "programme"),
		RegisteredBy: objString(obj, "registeredBy"),
		ExternalID:   objString(obj, "externalId"),
	}
	// Date may be ISO text, epoch millis, or the store-native wrapper
	e.Date = Date(obj["date"])
	e.RawDate = objString(obj, "date")
	if e.RawDate == "" && e.Date != nil {
		e.RawDate = e.Date.Format(time.RFC3339)
	}

	live := objString(obj, "liveWeight")
	carcass := objString(obj, "carcassWeight")
	price := objString(obj, "price")
	if live != "" || carcass != "" || price != "" {
		e.Units = append(e.Units, models.CandidateUnit{
			LiveWeight:    Magnitude(live),
			CarcassWeight: Magnitude(carcass),
			Price:         Magnitude(price),
		})
	}
	return e
}

func flatFromObject(obj map[string]interface{}, now time.Time) *models.FlatRecord {
	return &models.FlatRecord{
		Name:         objString(obj, "name"),
		Gender:       objString(obj, "gender"),
		IDNumber:     objString(obj, "idNumber"),
		Phone:        objString(obj, "phone"),
		County:       objString(obj, "county"),
		Subcounty:    objString(obj, "subcounty"),
		Location:     objString(obj, "location"),
		Programme:    objString(obj, "programme"),
		RegisteredBy: objString(obj, "registeredBy"),
		Date:         Date(obj["date"]),
		Vaccinated:   Boolean(objString(obj, "vaccinated")),
		Vaccines:     List(objString(obj, "vaccines")),
		CreatedAt:    now,
	}
}

// objString renders scalar JSON values as the raw cell text the coercion
// layer expects.
func objString(obj map[string]interface{}, key string) string {
	switch v := obj[key].(type) {
	case string:
		return v
	case float64:
		return trimFloat(v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	}
	return ""
}

func trimFloat(f float64) string {
	return trimRight(trimRight(fmt.Sprintf("%f", f), '0'), '.')
}

func trimRight(s string, c byte) string {
	for len(s) > 0 && s[len(s)-1] == c {
		s = s[:len(s)-1]
	}
	return s
}
