package cli

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func versionServer(t *testing.T, version string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/health" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"` + version + `"}`))
	}))
}

func TestCheckServerVersionCompatible(t *testing.T) {
	srv := versionServer(t, "1.2.3")
	defer srv.Close()

	if err := checkServerVersion(srv.URL, "1.0.0"); err != nil {
		t.Fatalf("expected compatible versions, got %v", err)
	}
}

func TestCheckServerVersionMajorMismatch(t *testing.T) {
	srv := versionServer(t, "2.0.0")
	defer srv.Close()

	if err := checkServerVersion(srv.URL, "1.0.0"); err == nil {
		t.Fatal("expected error for major version mismatch")
	}
}

func TestCheckServerVersionDevBuild(t *testing.T) {
	srv := versionServer(t, "2.0.0")
	defer srv.Close()

	if err := checkServerVersion(srv.URL, "dev"); err != nil {
		t.Fatalf("dev build should always pass, got %v", err)
	}
}

func TestCheckServerVersionUnreachable(t *testing.T) {
	if err := checkServerVersion("http://127.0.0.1:1", "1.0.0"); err == nil {
		t.Fatal("expected error for unreachable server")
	}
}
