package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/livestock-import-api/internal/config"
	"github.com/livestock-import-api/internal/models"
	"github.com/livestock-import-api/internal/service"
)

// stubImportService records the jobs it was asked to create.
type stubImportService struct {
	created []*models.ImportRequest
	err     error
}

func (s *stubImportService) CreateImportJob(ctx context.Context, req *models.ImportRequest, filePath string) (*models.Job, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, req)
	return &models.Job{ID: "job-1", Kind: req.Kind, Status: models.JobStatusPending}, nil
}

func (s *stubImportService) ProcessImport(ctx context.Context, job *models.Job) error { return nil }

type stubJobService struct {
	jobs map[string]*models.Job
}

func (s *stubJobService) StartProcessor(ctx context.Context)                   {}
func (s *stubJobService) StopProcessor()                                       {}
func (s *stubJobService) SetImportService(importService service.ImportService) {}
func (s *stubJobService) GetJob(ctx context.Context, id string) (*models.Job, error) {
	return s.jobs[id], nil
}

type stubRecordsService struct{}

func (stubRecordsService) List(ctx context.Context, collection, programme string, page, pageSize int) (*service.RecordPage, error) {
	return &service.RecordPage{Records: []map[string]interface{}{{"idNumber": "1"}}, Page: page, PageSize: pageSize, Total: 1}, nil
}

func (stubRecordsService) Count(ctx context.Context, collection, programme string) (int, error) {
	return 1, nil
}

func (stubRecordsService) ExportCSV(ctx context.Context, collection, programme string) ([]byte, error) {
	return []byte("idNumber\n1\n"), nil
}

func testRouterWith(t *testing.T, cfg *config.Config, importSvc service.ImportService, jobSvc service.JobService) http.Handler {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{
			Import: config.ImportConfig{ChunkSize: 10, MaxUploadSize: 1 << 20, UploadDir: t.TempDir()},
		}
	}
	if importSvc == nil {
		importSvc = &stubImportService{}
	}
	if jobSvc == nil {
		jobSvc = &stubJobService{jobs: map[string]*models.Job{}}
	}
	services := &service.Services{
		Import:  importSvc,
		Records: stubRecordsService{},
		Job:     jobSvc,
	}
	return NewRouter(services, cfg, zerolog.Nop())
}

func multipartUpload(t *testing.T, filename string, fields map[string]string, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	fw, err := w.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	fmt.Fprint(fw, content)
	w.Close()
	return &buf, w.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %q", body["status"])
	}
}

func TestCreateImportAccepted(t *testing.T) {
	importSvc := &stubImportService{}
	router := testRouterWith(t, nil, importSvc, nil)

	body, contentType := multipartUpload(t, "offtake.csv",
		map[string]string{"kind": "offtake", "programme": "prog-a"},
		"ID Number,Live Weight 1,Price 1\n12345678,320,45000\n")
	req := httptest.NewRequest(http.MethodPost, "/v1/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if len(importSvc.created) != 1 {
		t.Fatalf("got %d created jobs, want 1", len(importSvc.created))
	}
	if importSvc.created[0].Kind != models.KindOfftake || importSvc.created[0].Programme != "prog-a" {
		t.Errorf("request = %+v", importSvc.created[0])
	}
}

func TestCreateImportRejectsInvalidKind(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)

	for _, kind := range []string{"", "cattle", "OFFTAKE "} {
		body, contentType := multipartUpload(t, "x.csv", map[string]string{"kind": kind}, "data")
		req := httptest.NewRequest(http.MethodPost, "/v1/imports", body)
		req.Header.Set("Content-Type", contentType)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("kind %q: status = %d, want 400", kind, rec.Code)
		}
	}
}

func TestCreateImportRejectsUnknownExtension(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)

	body, contentType := multipartUpload(t, "data.exe", map[string]string{"kind": "offtake"}, "data")
	req := httptest.NewRequest(http.MethodPost, "/v1/imports", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestCreateImportRequiresFile(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	w.WriteField("kind", "offtake")
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/v1/imports", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPrivilegedGate(t *testing.T) {
	cfg := &config.Config{
		Import: config.ImportConfig{ChunkSize: 10, MaxUploadSize: 1 << 20, UploadDir: t.TempDir()},
		Auth:   config.AuthConfig{AdminToken: "secret"},
	}
	router := testRouterWith(t, cfg, nil, nil)

	newUpload := func() *http.Request {
		body, contentType := multipartUpload(t, "x.csv", map[string]string{"kind": "offtake"}, "data")
		req := httptest.NewRequest(http.MethodPost, "/v1/imports", body)
		req.Header.Set("Content-Type", contentType)
		return req
	}

	// No token
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, newUpload())
	if rec.Code != http.StatusForbidden {
		t.Errorf("without token: status = %d, want 403", rec.Code)
	}

	// Wrong token
	req := newUpload()
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("wrong token: status = %d, want 403", rec.Code)
	}

	// Correct token
	req = newUpload()
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Errorf("correct token: status = %d, want 202", rec.Code)
	}

	// Reads stay open
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/offtake", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("read route: status = %d, want 200", rec.Code)
	}
}

func TestGetImportStatus(t *testing.T) {
	jobSvc := &stubJobService{jobs: map[string]*models.Job{
		"job-9": {ID: "job-9", Status: models.JobStatusProcessing, CurrentChunk: 2, TotalChunks: 5},
	}}
	router := testRouterWith(t, nil, nil, jobSvc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/imports/job-9", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var body struct {
		Job      models.Job      `json:"job"`
		Progress models.Progress `json:"progress"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Job.ID != "job-9" {
		t.Errorf("job id = %q", body.Job.ID)
	}
	if body.Progress.Current != 2 || body.Progress.Total != 5 {
		t.Errorf("progress = %+v, want 2/5", body.Progress)
	}
}

func TestGetImportStatusNotFound(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/imports/missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRecordsUnknownCollection(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRecords(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/farmers?page=2&page_size=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var page service.RecordPage
	if err := json.Unmarshal(rec.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Page != 2 || page.PageSize != 10 || page.Total != 1 {
		t.Errorf("page = %+v", page)
	}
}

func TestExportRecords(t *testing.T) {
	router := testRouterWith(t, nil, nil, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/records/offtake/export", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.String() != "idNumber\n1\n" {
		t.Errorf("body = %q", rec.Body.String())
	}
}
