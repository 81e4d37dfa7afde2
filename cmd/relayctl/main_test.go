package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sumire/verdictrelay/internal/domain"
	"github.com/sumire/verdictrelay/internal/repository"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedJobs(t *testing.T) string {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "jobs.db")
	t.Setenv("DATABASE_URL", dsn)

	db, err := repository.Open(context.Background(), dsn)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	repo := repository.NewJobRepository(db)
	job := domain.NewJob("job-1", domain.JobKindVerdict, "X", "")
	if err := repo.Create(context.Background(), job); err != nil {
		t.Fatal(err)
	}
	if err := repo.Complete(context.Background(), "job-1", "Guilty."); err != nil {
		t.Fatal(err)
	}
	return dsn
}

func TestJobGet(t *testing.T) {
	seedJobs(t)

	out, err := execute(t, "job", "get", "job-1")
	if err != nil {
		t.Fatalf("job get error = %v", err)
	}
	var job domain.Job
	if err := json.Unmarshal([]byte(out), &job); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if job.ID != "job-1" || job.Status != domain.JobStatusCompleted || job.ArtifactRef() != "Guilty." {
		t.Errorf("job = %+v", job)
	}

	if _, err := execute(t, "job", "get", "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("missing job error = %v", err)
	}
}

func TestJobsExport(t *testing.T) {
	seedJobs(t)
	out := filepath.Join(t.TempDir(), "jobs.xlsx")

	if _, err := execute(t, "jobs", "export", "--out", out); err != nil {
		t.Fatalf("jobs export error = %v", err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Errorf("export file: %v", err)
	}
}

func TestCreditsAdd(t *testing.T) {
	var written map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/fb/subscriber/getInfo":
			w.Write([]byte(`{"status":"success","data":{"id":"42","custom_fields":[{"id":12880026,"name":"credits","value":4}]}}`))
		case "/fb/subscriber/setCustomField":
			json.NewDecoder(r.Body).Decode(&written)
			w.Write([]byte(`{"status":"success"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	t.Setenv("MANYCHAT_API_KEY", "mc")
	t.Setenv("MANYCHAT_BASE_URL", srv.URL)

	out, err := execute(t, "credits", "add", "42", "3")
	if err != nil {
		t.Fatalf("credits add error = %v", err)
	}
	if !strings.Contains(out, "42: 7 credits") {
		t.Errorf("output = %q", out)
	}
	if written["field_value"] != float64(7) {
		t.Errorf("written = %v", written)
	}

	if _, err := execute(t, "credits", "add", "42", "lots"); err == nil {
		t.Error("non-integer amount accepted")
	}
}

func TestNotifyRequiresAPIKey(t *testing.T) {
	t.Setenv("MANYCHAT_API_KEY", "")
	if _, err := execute(t, "notify", "42", "hello"); err == nil {
		t.Error("notify without MANYCHAT_API_KEY succeeded")
	}
}
