package startup

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.OS == "" || info.Arch == "" {
		t.Error("Expected OS and Arch to be set")
	}
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetRoutes(t *testing.T) {
	noop := func(http.ResponseWriter, *http.Request) {}
	r := mux.NewRouter()
	r.HandleFunc("/api/thumbnail", noop).Methods(http.MethodGet).Name("thumbnail")
	r.HandleFunc("/api/cache", noop).Methods(http.MethodDelete, http.MethodPost)
	r.HandleFunc("/livez", noop)

	routes, err := GetRoutes(r)
	if err != nil {
		t.Fatalf("GetRoutes() error = %v", err)
	}
	if len(routes) != 4 {
		t.Fatalf("got %d routes, want 4: %+v", len(routes), routes)
	}
	if routes[0].Name != "thumbnail" || routes[0].Method != http.MethodGet {
		t.Errorf("routes[0] = %+v", routes[0])
	}
	if routes[3].Method != "*" {
		t.Errorf("route without methods = %+v", routes[3])
	}
}

func TestGetRouteGroup(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/cache/stats", "api/cache"},
		{"/api/thumbnail", "api/thumbnail"},
		{"/healthz", "healthz"},
		{"/", ""},
	}
	for _, tt := range tests {
		if got := getRouteGroup(tt.path); got != tt.want {
			t.Errorf("getRouteGroup(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestEnsureDirectory(t *testing.T) {
	base := t.TempDir()

	created := filepath.Join(base, "a", "b")
	if err := ensureDirectory(created, "cache"); err != nil {
		t.Fatalf("ensureDirectory() error = %v", err)
	}
	if info, err := os.Stat(created); err != nil || !info.IsDir() {
		t.Error("directory was not created")
	}

	file := filepath.Join(base, "file")
	if err := os.WriteFile(file, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ensureDirectory(file, "cache"); err == nil {
		t.Error("expected error for a regular file")
	}
}

func TestTestWriteAccess(t *testing.T) {
	dir := t.TempDir()
	if err := testWriteAccess(dir); err != nil {
		t.Errorf("testWriteAccess() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".write-test")); !os.IsNotExist(err) {
		t.Error("write test file should be removed")
	}
}

func TestCheckToolMissing(t *testing.T) {
	if err := checkTool("movieview-no-such-binary"); err == nil {
		t.Error("expected error for missing binary")
	}
}
