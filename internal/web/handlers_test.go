package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/royalties/internal/config"
	"github.com/JonMunkholm/royalties/internal/core"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	err error

	importReq  core.CreateImportRequest
	importBody string
	stmtReq    core.NewStatement
	resolved   int64
	exportFmt  string
}

func (f *fakeService) Stats(ctx context.Context) (core.Stats, error) {
	return core.Stats{Imports: 2, Royalties: 10}, f.err
}

func (f *fakeService) CreateImport(ctx context.Context, req core.CreateImportRequest, body io.Reader) (core.Import, error) {
	if err := core.ValidateRequest(req); err != nil {
		return core.Import{}, err
	}
	b, _ := io.ReadAll(body)
	f.importReq, f.importBody = req, string(b)
	return core.Import{ID: uuid.New(), OriginalFileName: req.FileName, Status: core.StatusPending}, f.err
}

func (f *fakeService) ListImports(ctx context.Context) ([]core.Import, error) {
	return []core.Import{{ID: uuid.New()}}, f.err
}

func (f *fakeService) GetImport(ctx context.Context, id uuid.UUID) (core.Import, error) {
	return core.Import{ID: id}, f.err
}

func (f *fakeService) RollbackImport(ctx context.Context, id uuid.UUID) (core.RollbackResult, error) {
	return core.RollbackResult{ImportID: id, RoyaltiesDeleted: 3}, f.err
}

func (f *fakeService) CreateStatement(ctx context.Context, req core.NewStatement) (core.Statement, error) {
	if err := core.ValidateRequest(req); err != nil {
		return core.Statement{}, err
	}
	f.stmtReq = req
	return core.Statement{ID: uuid.New(), Status: core.StatusPending}, f.err
}

func (f *fakeService) ListStatements(ctx context.Context) ([]core.Statement, error) {
	return nil, f.err
}

func (f *fakeService) GetStatement(ctx context.Context, id uuid.UUID) (core.Statement, error) {
	return core.Statement{ID: id}, f.err
}

func (f *fakeService) DeleteStatement(ctx context.Context, id uuid.UUID) error {
	return f.err
}

func (f *fakeService) MarkInvoiced(ctx context.Context, id uuid.UUID) (core.Statement, error) {
	return core.Statement{ID: id, Invoiced: true}, f.err
}

func (f *fakeService) OpenExport(ctx context.Context, id uuid.UUID, format string) (io.ReadCloser, string, string, error) {
	f.exportFmt = format
	if f.err != nil {
		return nil, "", "", f.err
	}
	return io.NopCloser(strings.NewReader("WORK_ID\nTOTAL\n")), "statement_Q1_2024_x.csv", core.ContentTypeCSV, nil
}

func (f *fakeService) ListConflicts(ctx context.Context, statementID uuid.UUID) ([]core.Conflict, error) {
	return []core.Conflict{{ID: 7, StatementID: statementID}}, f.err
}

func (f *fakeService) ResolveConflict(ctx context.Context, statementID uuid.UUID, conflictID int64) error {
	f.resolved = conflictID
	return f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Port: 8080},
		Upload: config.UploadConfig{MaxFileSize: 1 << 20},
	}
}

func newTestServer(t *testing.T, svc Service, cfg *config.Config, health HealthFunc) *Server {
	t.Helper()
	s := NewServer(svc, cfg, health)
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func multipartBody(t *testing.T, fields map[string]string, fileName, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	down := newTestServer(t, &fakeService{}, testConfig(), func(context.Context) error {
		return errors.New("connection refused")
	})
	rec = do(down, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStats(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats core.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(10), stats.Royalties)
}

func TestCreateImport(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, testConfig(), nil)

	body, ctype := multipartBody(t, map[string]string{"fiscal_year": "2024", "fiscal_quarter": "2"}, "q2.csv", "WORK_ID\n")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, core.CreateImportRequest{FileName: "q2.csv", FiscalYear: 2024, FiscalQuarter: 2}, svc.importReq)
	assert.Equal(t, "WORK_ID\n", svc.importBody)
}

func TestCreateImport_Validation(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)

	body, ctype := multipartBody(t, map[string]string{"fiscal_year": "2024", "fiscal_quarter": "Q5"}, "q.csv", "x")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "VAL003", resp.Code)
	assert.Equal(t, "required", resp.Fields["fiscal_quarter"])
}

func TestCreateImport_MissingFile(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)

	body, ctype := multipartBody(t, map[string]string{"fiscal_year": "2024"}, "", "")
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateImport_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	s := newTestServer(t, &fakeService{}, cfg, nil)

	body, ctype := multipartBody(t, nil, "big.csv", strings.Repeat("x", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/imports", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestPreviewImport(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)

	csv := "WORK_ID,WORK_TITLE,WRITERS,BATCH_ID,RIGHT_TYPE,RIGHT_TYPE_GROUP,TERRITORY,DISTRIBUTED_AMOUNT,ROYALTY_PERIOD_START_DATE\n" +
		`W1,Song,"Doe, Jane [IP1]",B1,Perf,PERF,US,1.00,` + "\n"
	body, ctype := multipartBody(t, nil, "q.csv", csv)
	req := httptest.NewRequest(http.MethodPost, "/api/imports/preview", body)
	req.Header.Set("Content-Type", ctype)
	rec := do(s, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res core.PreviewResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, 1, res.TotalRows)
	assert.Equal(t, 1, res.Works)
	assert.Equal(t, 1, res.Writers)
}

func TestGetImport_BadID(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/imports/nope", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "uuid", decodeError(t, rec).Fields["id"])
}

func TestRollbackImport_Locked(t *testing.T) {
	s := newTestServer(t, &fakeService{err: fmt.Errorf("rollback: %w", core.ErrImportLocked)}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/imports/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "IMP001", decodeError(t, rec).Code)
}

func TestCreateStatement(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, testConfig(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/statements",
		strings.NewReader(`{"fiscal_year":2024,"fiscal_quarter":1,"writer_ids":[3,1]}`))
	rec := do(s, req)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []int64{3, 1}, svc.stmtReq.WriterIDs)
}

func TestCreateStatement_BadBody(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)

	for _, body := range []string{`{`, `{"fiscal_year":2024,"extra":1}`, `{"fiscal_year":2024,"fiscal_quarter":1,"writer_ids":[]}`} {
		rec := do(s, httptest.NewRequest(http.MethodPost, "/api/statements", strings.NewReader(body)))
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "VAL003", decodeError(t, rec).Code, body)
	}
}

func TestGetStatement_NotFound(t *testing.T) {
	s := newTestServer(t, &fakeService{err: &core.NotFoundError{Resource: "statement", ID: "x"}}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/"+uuid.NewString(), nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "NF001", resp.Code)
	assert.NotEmpty(t, resp.Action)
}

func TestInvoiceStatement_Conflicts(t *testing.T) {
	s := newTestServer(t, &fakeService{err: core.ErrUnresolvedConflicts}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodPost, "/api/statements/"+uuid.NewString()+"/invoice", nil))

	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "STM002", decodeError(t, rec).Code)
}

func TestDeleteStatement(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodDelete, "/api/statements/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	s = newTestServer(t, &fakeService{err: core.ErrInvoiced}, testConfig(), nil)
	rec = do(s, httptest.NewRequest(http.MethodDelete, "/api/statements/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestExportStatement(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/"+uuid.NewString()+"/export?format=CSV", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.ContentTypeCSV, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="statement_Q1_2024_x.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "WORK_ID\nTOTAL\n", rec.Body.String())
	assert.Equal(t, "csv", svc.exportFmt)
}

func TestExportStatement_BadFormatAndMissing(t *testing.T) {
	s := newTestServer(t, &fakeService{}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/"+uuid.NewString()+"/export?format=pdf", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	s = newTestServer(t, &fakeService{err: core.ErrNoExport}, testConfig(), nil)
	rec = do(s, httptest.NewRequest(http.MethodGet, "/api/statements/"+uuid.NewString()+"/export", nil))
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "STM004", decodeError(t, rec).Code)
}

func TestConflicts(t *testing.T) {
	svc := &fakeService{}
	s := newTestServer(t, svc, testConfig(), nil)
	id := uuid.NewString()

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/statements/"+id+"/conflicts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var conflicts []core.Conflict
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conflicts))
	require.Len(t, conflicts, 1)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/statements/"+id+"/conflicts/7/resolve", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(7), svc.resolved)

	rec = do(s, httptest.NewRequest(http.MethodPost, "/api/statements/"+id+"/conflicts/abc/resolve", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInternalErrorIsSanitized(t *testing.T) {
	s := newTestServer(t, &fakeService{err: errors.New("pq: secret table exploded")}, testConfig(), nil)
	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/imports", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "ERR000", resp.Code)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k"}}
	s := newTestServer(t, &fakeService{}, cfg, nil)

	assert.Equal(t, http.StatusUnauthorized, do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil)).Code)
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/healthz", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats", nil)
	req.Header.Set("X-API-Key", "k")
	assert.Equal(t, http.StatusOK, do(s, req).Code)
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, UploadLimit: 1}
	s := newTestServer(t, &fakeService{}, cfg, nil)

	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil)).Code)
	assert.Equal(t, http.StatusOK, do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil)).Code)

	rec := do(s, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}

func TestRateLimiter_WindowReset(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	defer rl.stop()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"))

	now = now.Add(2 * time.Minute)
	assert.True(t, rl.allow("a"))
}
