package meta

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/StevenZev/ExpressDiff/internal/runpath"
	"github.com/StevenZev/ExpressDiff/internal/scheduler"
)

type fakeAccountsRunner struct{}

func (fakeAccountsRunner) Run(ctx context.Context, name string, args ...string) ([]byte, []byte, error) {
	if name == "sacctmgr" {
		return []byte("acct-a\nacct-b\n"), nil, nil
	}
	return nil, nil, nil
}

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	paths := runpath.Paths{InstallDir: t.TempDir(), WorkDir: t.TempDir()}
	g := scheduler.New(fakeAccountsRunner{}, time.Second, time.Second, logger, paths.InstallDir)
	NewRouter(g, paths, logger).Register(r)
	return r
}

func TestHealthEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body healthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status field = %q, want ok", body.Status)
	}
}

func TestAccountsEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var accounts []string
	if err := json.Unmarshal(rec.Body.Bytes(), &accounts); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(accounts) != 2 || accounts[0] != "acct-a" {
		t.Fatalf("accounts = %v, want [acct-a acct-b]", accounts)
	}
}

func TestStagesEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/stages", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body stagesResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(body.Stages) != 6 {
		t.Fatalf("got %d stages, want 6", len(body.Stages))
	}
}

func TestStorageInfoEndpoint(t *testing.T) {
	r := testRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/storage-info", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body storageInfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if body.StorageType != "posix" {
		t.Fatalf("storage_type = %q, want posix", body.StorageType)
	}
}
