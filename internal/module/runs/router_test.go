package runs

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/controller"
	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
	"github.com/StevenZev/ExpressDiff/internal/stage"
	"github.com/StevenZev/ExpressDiff/internal/store"
	"github.com/StevenZev/ExpressDiff/internal/tmpl"
)

type fakeRunner struct{}

func (fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "sbatch" {
		return []byte("777;cluster\n"), nil, nil
	}
	return nil, nil, nil
}

func testRouter(t *testing.T) (*gin.Engine, *controller.Controller) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	installDir := t.TempDir()
	workDir := t.TempDir()
	templatesDir := filepath.Join(installDir, "slurm_templates")
	if err := os.MkdirAll(templatesDir, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, def := range stage.All() {
		if err := os.WriteFile(filepath.Join(templatesDir, def.Template), []byte("#!/bin/bash\necho {RUN_ID}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(workDir, "generated_slurm"), 0o755); err != nil {
		t.Fatal(err)
	}

	paths := runpath.Paths{InstallDir: installDir, WorkDir: workDir}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s := store.New(paths)
	g := scheduler.New(fakeRunner{}, time.Second, time.Second, logger, installDir)
	e := tmpl.New(paths)
	ctrl := controller.New(s, g, e, logger)

	r := gin.New()
	NewRouter(ctrl, logger).Register(r)
	return r, ctrl
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetRun(t *testing.T) {
	r, _ := testRouter(t)

	createRec := doJSON(t, r, http.MethodPost, "/runs", createRunRequest{Name: "exp1", Account: "acct-A"})
	if createRec.Code != http.StatusOK {
		t.Fatalf("create status = %d, body=%s", createRec.Code, createRec.Body.String())
	}
	var created store.Run
	if err := json.Unmarshal(createRec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created run: %v", err)
	}
	if created.RunID == "" {
		t.Fatal("created run has empty run_id")
	}

	getRec := doJSON(t, r, http.MethodGet, "/runs/"+created.RunID, nil)
	if getRec.Code != http.StatusOK {
		t.Fatalf("get status = %d, body=%s", getRec.Code, getRec.Body.String())
	}
}

func TestGetUnknownRunIsNotFound(t *testing.T) {
	r, _ := testRouter(t)
	rec := doJSON(t, r, http.MethodGet, "/runs/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	r, _ := testRouter(t)
	doJSON(t, r, http.MethodPost, "/runs", createRunRequest{Name: "exp1", Account: "acct-A"})
	doJSON(t, r, http.MethodPost, "/runs", createRunRequest{Name: "exp2", Account: "acct-A"})

	rec := doJSON(t, r, http.MethodGet, "/runs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var runList []*store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &runList); err != nil {
		t.Fatalf("unmarshal run list: %v", err)
	}
	if len(runList) != 2 {
		t.Fatalf("got %d runs, want 2", len(runList))
	}
}

func createTestRun(t *testing.T, r *gin.Engine) string {
	t.Helper()
	rec := doJSON(t, r, http.MethodPost, "/runs", createRunRequest{Name: "exp1", Account: "acct-A"})
	var created store.Run
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal created run: %v", err)
	}
	return created.RunID
}

func TestSubmitStageDependencyGatingOverHTTP(t *testing.T) {
	r, _ := testRouter(t)
	runID := createTestRun(t, r)

	rec := doJSON(t, r, http.MethodPost, "/runs/"+runID+"/stages/trim", submitStageRequest{Account: "acct-A"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 (dependency not completed); body=%s", rec.Code, rec.Body.String())
	}
}

func TestUploadRoutesByExtension(t *testing.T) {
	r, ctrl := testRouter(t)
	runID := createTestRun(t, r)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("files", "sample1_1.fq.gz")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte("fake fastq bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	badPart, err := w.CreateFormFile("files", "notes.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := badPart.Write([]byte("pdf bytes")); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/runs/"+runID+"/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 because one file has an unrecognized extension; body=%s", rec.Code, rec.Body.String())
	}

	savedPath := filepath.Join(ctrl.RunDir(runID), "raw", "sample1_1.fq.gz")
	if _, err := os.Stat(savedPath); err != nil {
		t.Fatalf("expected fastq file to be routed into raw/: %v", err)
	}
}

func TestValidateStageEndpoint(t *testing.T) {
	r, _ := testRouter(t)
	runID := createTestRun(t, r)

	rec := doJSON(t, r, http.MethodGet, "/runs/"+runID+"/stages/qc_raw/validate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body=%s", rec.Code, rec.Body.String())
	}
	var result struct {
		Valid  bool     `json:"valid"`
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("unmarshal validate result: %v", err)
	}
	if result.Valid {
		t.Fatal("Valid = true with no FASTQ files uploaded, want false")
	}
}

func TestDeleteRunThenGetIsNotFound(t *testing.T) {
	r, _ := testRouter(t)
	runID := createTestRun(t, r)

	delRec := doJSON(t, r, http.MethodDelete, "/runs/"+runID, nil)
	if delRec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", delRec.Code)
	}

	getRec := doJSON(t, r, http.MethodGet, "/runs/"+runID, nil)
	if getRec.Code != http.StatusNotFound {
		t.Fatalf("get-after-delete status = %d, want 404", getRec.Code)
	}
}

func TestFeatureCountsSummaryMissingIsNotFound(t *testing.T) {
	r, _ := testRouter(t)
	runID := createTestRun(t, r)

	rec := doJSON(t, r, http.MethodGet, "/runs/"+runID+"/featurecounts-summary", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404; body=%s", rec.Code, rec.Body.String())
	}
}
