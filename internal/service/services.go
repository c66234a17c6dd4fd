package service

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/cache"
	"github.com/livestock-import-api/internal/config"
	"github.com/livestock-import-api/internal/docstore"
	"github.com/livestock-import-api/internal/models"
	"github.com/livestock-import-api/internal/repository"
)

// ImportService defines the interface for import operations
type ImportService interface {
	CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error)
	ProcessImport(ctx context.Context, job *models.Job) error
}

// RecordsService defines the read side consumed by the dashboard tables
type RecordsService interface {
	List(ctx context.Context, collection, programme string, page, pageSize int) (*RecordPage, error)
	Count(ctx context.Context, collection, programme string) (int, error)
	ExportCSV(ctx context.Context, collection, programme string) ([]byte, error)
}

// JobService defines the interface for job management
type JobService interface {
	StartProcessor(ctx context.Context)
	StopProcessor()
	GetJob(ctx context.Context, id string) (*models.Job, error)
	SetImportService(importService ImportService)
}

// Services holds all service interfaces
type Services struct {
	Import  ImportService
	Records RecordsService
	Job     JobService
}

// NewServices creates all services
func NewServices(repos *repository.Repositories, store docstore.Store, cch *cache.Cache, cfg *config.Config, log zerolog.Logger) *Services {
	jobSvc := newJobService(repos.Job, log)
	importSvc := newImportService(repos, store, cch, cfg, log)
	recordsSvc := newRecordsService(store, cch, cfg, log)

	// Wire up job processor to import service
	jobSvc.SetImportService(importSvc)

	return &Services{
		Import:  importSvc,
		Records: recordsSvc,
		Job:     jobSvc,
	}
}
