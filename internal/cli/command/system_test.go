package command

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yndnr/mirrorsync/internal/infra/buildinfo"
	"github.com/yndnr/mirrorsync/internal/server/httpserver/handler"
	"github.com/yndnr/mirrorsync/internal/storage/memory"
)

func newStatusServer(t *testing.T) *httptest.Server {
	t.Helper()
	store := memory.New()
	if err := store.Set(t.Context(), "mirrorsync-a", "1"); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(handler.New(store, nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestVersion(t *testing.T) {
	env := newTestEnv(t)
	if out := env.mustRun("version"); !strings.Contains(out, buildinfo.Version) {
		t.Errorf("version = %q, want %q", out, buildinfo.Version)
	}

	var info buildinfo.Info
	if err := json.Unmarshal([]byte(env.mustRun("-o", "json", "version")), &info); err != nil {
		t.Fatalf("decode version: %v", err)
	}
	if info.GoVersion == "" {
		t.Error("GoVersion should be set")
	}
}

func TestServerStatus(t *testing.T) {
	srv := newStatusServer(t)
	env := newTestEnv(t)

	out := env.mustRun("server", "--server", srv.URL, "status")
	for _, want := range []string{"Backend:  memory", "Keys:     1", srv.URL} {
		if !strings.Contains(out, want) {
			t.Errorf("status output missing %q:\n%s", want, out)
		}
	}

	var status handler.StatusResponse
	if err := json.Unmarshal([]byte(env.mustRun("-o", "json", "server", "--server", srv.URL, "status")), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Keys != 1 {
		t.Errorf("Keys = %d, want 1", status.Keys)
	}
}

func TestServerHealth(t *testing.T) {
	srv := newStatusServer(t)
	env := newTestEnv(t)

	out := env.mustRun("server", "--server", srv.URL, "health")
	if !strings.Contains(out, "healthz") || !strings.Contains(out, "readyz") {
		t.Errorf("health output = %q", out)
	}
}

func TestServerHealth_Unhealthy(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable","error":"disk gone"}`))
	}))
	defer srv.Close()

	env := newTestEnv(t)
	out, err := env.run("server", "--server", srv.URL, "health")
	if err == nil {
		t.Fatal("expected error for unhealthy server")
	}
	if !strings.Contains(out, "fail") {
		t.Errorf("health output = %q, want failed checks", out)
	}
}

func TestServer_RemoteAddressFallback(t *testing.T) {
	srv := newStatusServer(t)
	env := newTestEnv(t)

	out := env.mustRun("--remote", srv.URL, "server", "version")
	if !strings.Contains(out, "VERSION") && !strings.Contains(out, "version") {
		t.Errorf("version output = %q", out)
	}
}

func TestServer_NoAddress(t *testing.T) {
	env := newTestEnv(t)
	if _, err := env.run("server", "status"); err == nil {
		t.Error("expected error without a server address")
	}
}
