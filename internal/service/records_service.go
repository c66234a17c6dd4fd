package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/config"
	"github.com/livestock-import-api/internal/docstore"
)

// RecordPage is one page of a filtered collection read.
type RecordPage struct {
	Records  []map[string]interface{} `json:"records"`
	Page     int                      `json:"page"`
	PageSize int                      `json:"page_size"`
	Total    int                      `json:"total"`
}

// recordsService serves the dashboard's filterable paginated tables. Whole
// filtered collections are read through the cache and paginated in memory;
// the importer invalidates the cache per chunk so fresh rows appear as soon
// as their chunk commits.
type recordsService struct {
	store docstore.Store
	cache *cache.Cache
	cfg   *config.Config
	log   zerolog.Logger
}

// newRecordsService creates a new RecordsService
func newRecordsService(store docstore.Store, cch *cache.Cache, cfg *config.Config, log zerolog.Logger) *recordsService {
	return &recordsService{
		store: store,
		cache: cch,
		cfg:   cfg,
		log:   log.With().Str("service", "records").Logger(),
	}
}

// List returns one page of a collection, filtered by programme when given.
func (s *recordsService) List(ctx context.Context, collection, programme string, page, pageSize int) (*RecordPage, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 500 {
		pageSize = 50
	}

	records, err := s.readCollection(ctx, collection, programme)
	if err != nil {
		return nil, err
	}

	total := len(records)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	return &RecordPage{
		Records:  records[start:end],
		Page:     page,
		PageSize: pageSize,
		Total:    total,
	}, nil
}

// Count returns the number of records in a filtered collection.
func (s *recordsService) Count(ctx context.Context, collection, programme string) (int, error) {
	records, err := s.readCollection(ctx, collection, programme)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}

// ExportCSV renders a filtered collection as CSV, columns sorted by name
// for a stable layout.
func (s *recordsService) ExportCSV(ctx context.Context, collection, programme string) ([]byte, error) {
	records, err := s.readCollection(ctx, collection, programme)
	if err != nil {
		return nil, err
	}

	columns := collectColumns(records)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, err
	}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = renderCell(rec[col])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// readCollection is the cached read path.
func (s *recordsService) readCollection(ctx context.Context, collection, programme string) ([]map[string]interface{}, error) {
	key := cache.BuildKey("records", collection, programme)

	var cached []map[string]interface{}
	if s.cache != nil && s.cache.Read(key, s.cfg.Cache.TTL, &cached) {
		return cached, nil
	}

	docs, err := s.store.ReadCollectionByEquality(ctx, collection, "programme", programme)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", collection, err)
	}

	records := make([]map[string]interface{}, 0, len(docs))
	for _, doc := range docs {
		rec := doc.Body
		rec["_key"] = doc.Key
		records = append(records, rec)
	}

	if s.cache != nil {
		s.cache.Write(key, records)
	}
	return records, nil
}

func collectColumns(records []map[string]interface{}) []string {
	seen := make(map[string]bool)
	for _, rec := range records {
		for col := range rec {
			seen[col] = true
		}
	}
	columns := make([]string, 0, len(seen))
	for col := range seen {
		columns = append(columns, col)
	}
	sort.Strings(columns)
	return columns
}

func renderCell(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}
