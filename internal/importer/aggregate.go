package importer

import (
	"math/rand"
	"strings"
	"time"

	"github.com/livestock-import-api/internal/models"
)

// displayDateLayout is the human-readable date stamped onto transactions.
const displayDateLayout = "02 Jan 2006"

// Aggregator folds built rows into transactions keyed by identity + raw
// date text. It is an explicit accumulator rather than state closed over a
// loop so it can be tested row by row. Not safe for concurrent use; one
// import run owns one aggregator.
type Aggregator struct {
	byKey   map[string]*models.Transaction
	order   []string
	lastKey string

	// seams for deterministic tests
	now  func() time.Time
	digs func() string
}

// NewAggregator returns an empty accumulator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		byKey: make(map[string]*models.Transaction),
		now:   time.Now,
		digs:  randomDigits,
	}
}

// Add folds one row into the accumulator. A row with a blank identity
// reuses the most recently seen key, which is how multi-row manual exports
// mark continuation rows; with no prior key the row is skipped. The first
// row bearing a new key creates the transaction and copies its singular
// fields; later rows with the same key only append units.
func (a *Aggregator) Add(row RowEntity) {
	key := strings.TrimSpace(row.IDNumber)
	if key == "" {
		if a.lastKey == "" {
			return
		}
		key = a.lastKey
	} else {
		key = key + "_" + row.RawDate
		a.lastKey = key
	}

	tx, ok := a.byKey[key]
	if !ok {
		tx = a.newTransaction(row)
		a.byKey[key] = tx
		a.order = append(a.order, key)
	}
	tx.Units = append(tx.Units, row.Units...)
	if tx.ReportedCount == 0 {
		tx.ReportedCount = row.ReportedCount
	}
}

// Finalize returns the aggregated transactions in insertion order, dropping
// any transaction that collected zero units. The accumulator's grouping key
// is scoped to one run and is not part of the result.
func (a *Aggregator) Finalize() []*models.Transaction {
	out := make([]*models.Transaction, 0, len(a.order))
	for _, key := range a.order {
		tx := a.byKey[key]
		if len(tx.Units) == 0 {
			continue
		}
		out = append(out, tx)
	}
	return out
}

func (a *Aggregator) newTransaction(row RowEntity) *models.Transaction {
	tx := &models.Transaction{
		Name:         row.Name,
		Gender:       row.Gender,
		IDNumber:     strings.TrimSpace(row.IDNumber),
		Phone:        row.Phone,
		County:       row.County,
		Subcounty:    row.Subcounty,
		Location:     row.Location,
		Programme:    row.Programme,
		RegisteredBy: row.RegisteredBy,
		ExternalID:   row.ExternalID,
		Date:         row.Date,
		CreatedAt:    a.now(),
	}
	if row.Date != nil {
		tx.DisplayDate = row.Date.Format(displayDateLayout)
	}
	if tx.ExternalID == "" {
		tx.ExternalID = externalID(row.Location, a.digs)
	}
	return tx
}

// externalID synthesizes a reference for rows that did not supply one: the
// first three letters of the location upper-cased plus four random digits.
func externalID(location string, digs func() string) string {
	prefix := strings.ToUpper(strings.TrimSpace(location))
	prefix = strings.Map(func(c rune) rune {
		if c >= 'A' && c <= 'Z' {
			return c
		}
		return -1
	}, prefix)
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	if prefix == "" {
		prefix = "GEN"
	}
	return prefix + digs()
}

func randomDigits() string {
	const digits = "0123456789"
	b := make([]byte, 4)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
