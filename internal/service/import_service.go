package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/config"
	"github.com/livestock-import-api/internal/docstore"
	"github.com/livestock-import-api/internal/importer"
	"github.com/livestock-import-api/internal/models"
	"github.com/livestock-import-api/internal/repository"
)

// importService is the concrete implementation of ImportService
type importService struct {
	repos  *repository.Repositories
	engine *BatchEngine
	cfg    *config.Config
	log    zerolog.Logger
}

// newImportService creates a new ImportService
func newImportService(repos *repository.Repositories, store docstore.Store, cch *cache.Cache, cfg *config.Config, log zerolog.Logger) *importService {
	return &importService{
		repos:  repos,
		engine: NewBatchEngine(store, cch, cfg.Import.ChunkSize, log),
		cfg:    cfg,
		log:    log.With().Str("service", "import").Logger(),
	}
}

// CreateImportJob creates a new import job
func (s *importService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	job := &models.Job{
		ID:        uuid.New().String(),
		Type:      models.JobTypeImport,
		Kind:      req.Kind,
		Programme: req.Programme,
		Status:    models.JobStatusPending,
		FilePath:  filePath,
		CreatedAt: time.Now(),
	}

	if err := s.repos.Job.Create(ctx, job); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Str("file", filePath).
		Msg("Import job created")

	return job, nil
}

// ProcessImport runs one import job end to end: decode, normalize,
// aggregate, persist. Parsing is pure and in-memory; the file is read once
// in full and only the chunk writes touch the network.
func (s *importService) ProcessImport(ctx context.Context, job *models.Job) error {
	startTime := time.Now()
	now := startTime
	job.Status = models.JobStatusProcessing
	job.StartedAt = &now
	if err := s.repos.Job.Update(ctx, job); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job status")
	}

	s.log.Info().
		Str("job_id", job.ID).
		Str("kind", string(job.Kind)).
		Msg("Starting import processing")

	err := s.runImport(ctx, job)

	duration := time.Since(startTime)
	job.DurationMs = duration.Milliseconds()
	if job.WrittenCount > 0 && duration.Seconds() > 0 {
		job.RecordsPerSec = float64(job.WrittenCount) / duration.Seconds()
	}

	completedAt := time.Now()
	job.CompletedAt = &completedAt

	if err != nil {
		job.Status = models.JobStatusFailed
		job.FailureMessage = err.Error()
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("Import failed")
	} else {
		job.Status = models.JobStatusCompleted
		s.log.Info().
			Str("job_id", job.ID).
			Int("total", job.TotalRecords).
			Int("written", job.WrittenCount).
			Int("skipped_rows", job.SkippedRows).
			Int64("duration_ms", job.DurationMs).
			Float64("records_per_sec", job.RecordsPerSec).
			Msg("Import completed")
	}

	if updateErr := s.repos.Job.Update(ctx, job); updateErr != nil {
		s.log.Error().Err(updateErr).Str("job_id", job.ID).Msg("Failed to record job status")
	}

	return err
}

func (s *importService) runImport(ctx context.Context, job *models.Job) error {
	result, err := s.parseFile(job)
	if err != nil {
		// Structural failure: abort before any write
		return err
	}

	job.TotalRecords = result.Len()
	job.SkippedRows = result.SkippedRows

	docs := BuildDocuments(result, job.Programme)
	collection := job.Kind.Collection()

	obs := &jobProgressObserver{svc: s, ctx: ctx, job: job, chunkSize: s.cfg.Import.ChunkSize}
	written, err := s.engine.Persist(ctx, collection, job.Programme, docs, obs)
	job.WrittenCount = written
	return err
}

// parseFile reads the upload in full and runs it through the pipeline for
// the job's kind. The input format is carried by the file extension the
// upload handler assigned.
func (s *importService) parseFile(job *models.Job) (*importer.Result, error) {
	pipeline, err := s.newPipeline(job.Kind)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(job.FilePath)) {
	case ".json":
		data, err := os.ReadFile(job.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return pipeline.ParseJSON(data)
	case ".xlsx":
		f, err := os.Open(job.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		defer f.Close()
		rows, err := importer.DecodeXLSX(f)
		if err != nil {
			return nil, err
		}
		return pipeline.ParseRows(rows)
	default:
		data, err := os.ReadFile(job.FilePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read upload: %w", err)
		}
		return pipeline.ParseCSV(string(data))
	}
}

func (s *importService) newPipeline(kind models.ImportKind) (*importer.Pipeline, error) {
	p := importer.NewPipeline(kind)
	if path := s.cfg.Import.KeywordOverridesPath; path != "" {
		resolver, err := importer.NewResolverFromFile(path)
		if err != nil {
			return nil, err
		}
		p = p.WithResolver(resolver)
	}
	return p, nil
}

// BuildDocuments converts the parse result into store payloads, stamping
// the job's programme onto records that did not carry their own.
func BuildDocuments(result *importer.Result, programme string) []map[string]interface{} {
	docs := make([]map[string]interface{}, 0, result.Len())
	for _, tx := range result.Transactions {
		doc := tx.Document()
		if programme != "" {
			if _, ok := doc["programme"]; !ok {
				doc["programme"] = programme
			}
		}
		docs = append(docs, doc)
	}
	for _, rec := range result.Flat {
		doc := rec.Document()
		if programme != "" {
			if _, ok := doc["programme"]; !ok {
				doc["programme"] = programme
			}
		}
		docs = append(docs, doc)
	}
	return docs
}

// jobProgressObserver mirrors engine progress onto the job row so the
// status endpoint can render current/total while the import runs.
type jobProgressObserver struct {
	svc       *importService
	ctx       context.Context
	job       *models.Job
	chunkSize int
}

func (o *jobProgressObserver) Progress(p models.Progress) {
	o.job.WrittenCount = p.Current
	o.job.TotalChunks = chunkCount(p.Total, o.chunkSize)
	o.job.CurrentChunk = chunkCount(p.Current, o.chunkSize)
	if err := o.svc.repos.Job.Update(o.ctx, o.job); err != nil {
		o.svc.log.Error().Err(err).Str("job_id", o.job.ID).Msg("Failed to record progress")
	}
}

func (o *jobProgressObserver) Done(total int) {
	o.svc.log.Debug().Str("job_id", o.job.ID).Int("total", total).Msg("All chunks committed")
}

func chunkCount(n, chunkSize int) int {
	if chunkSize <= 0 {
		return 0
	}
	return (n + chunkSize - 1) / chunkSize
}
