package middleware

import (
	"bytes"
	"compress/gzip"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func TestNewResponseWriter(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected default status code 200, got %d", rw.statusCode)
	}
	if rw.bytesWritten != 0 || rw.wroteHeader {
		t.Error("Expected a fresh writer")
	}
}

func TestResponseWriterWriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.statusCode != http.StatusNotFound {
		t.Error("Status code should not change after first WriteHeader")
	}
}

func TestResponseWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newResponseWriter(w)

	data := []byte("test data")
	n, err := rw.Write(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(data) || rw.bytesWritten != int64(len(data)) {
		t.Errorf("Expected %d bytes written, got n=%d counted=%d", len(data), n, rw.bytesWritten)
	}
	if !rw.wroteHeader {
		t.Error("Expected wroteHeader to be true after Write")
	}
}

func TestShouldSkip(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		config LoggingConfig
		want   bool
	}{
		{"regular request", "/api/thumbnail", DefaultLoggingConfig(), false},
		{"metrics skipped by default", "/metrics", DefaultLoggingConfig(), true},
		{"health logged when enabled", "/healthz", LoggingConfig{LogHealthChecks: true}, false},
		{"health skipped when disabled", "/healthz", LoggingConfig{LogHealthChecks: false}, true},
		{"liveness skipped when disabled", "/livez", LoggingConfig{LogHealthChecks: false}, true},
		{"custom prefix", "/api/cache/stats", LoggingConfig{SkipPaths: []string{"/api/cache"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldSkip(tt.path, tt.config); got != tt.want {
				t.Errorf("shouldSkip(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestLoggerMiddlewarePassesThrough(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("X-Thumbnail-Source", "memory")
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/api/thumbnail?path=a.mp4&t=1", http.NoBody)
	w := httptest.NewRecorder()
	Logger(DefaultLoggingConfig())(handler).ServeHTTP(w, req)

	if w.Code != http.StatusTeapot || w.Body.String() != "ok" {
		t.Errorf("got %d %q", w.Code, w.Body.String())
	}
}

func TestSanitizeLogField(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"line\nbreak", "line break"},
		{"cr\rlf", "cr lf"},
		{"nul\x00byte", "nulbyte"},
		{"\x1b[31mred", "[31mred"},
		{"tab\tkept", "tab\tkept"},
	}
	for _, tt := range tests {
		if got := sanitizeLogField(tt.input); got != tt.want {
			t.Errorf("sanitizeLogField(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded list", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "1.1.1.1:80", "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.3"}, "1.1.1.1:80", "10.0.0.3"},
		{"remote addr", nil, "192.168.1.5:5555", "192.168.1.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEscapeW3CField(t *testing.T) {
	if got := escapeW3CField("curl/8.0"); got != "curl/8.0" {
		t.Errorf("got %q", got)
	}
	if got := escapeW3CField(`Mozilla/5.0 "x"`); got != `"Mozilla/5.0 ""x"""` {
		t.Errorf("got %q", got)
	}
}

func TestHeaderOrDash(t *testing.T) {
	h := http.Header{}
	if got := headerOrDash(h, "X-Thumbnail-Source"); got != "-" {
		t.Errorf("missing header = %q", got)
	}
	h.Set("X-Thumbnail-Source", "disk")
	if got := headerOrDash(h, "X-Thumbnail-Source"); got != "disk" {
		t.Errorf("header = %q", got)
	}
}

// =============================================================================
// Compression Tests
// =============================================================================

func TestCompressionMiddleware(t *testing.T) {
	tests := []struct {
		name              string
		method            string
		responseBody      string
		contentType       string
		acceptEncoding    string
		expectCompression bool
	}{
		{"compresses large JSON", http.MethodGet, strings.Repeat(`{"key":"value"}`, 200), "application/json", "gzip", true},
		{"skips small responses", http.MethodGet, "{}", "application/json", "gzip", false},
		{"skips JPEG thumbnails", http.MethodGet, strings.Repeat("data", 500), "image/jpeg", "gzip", false},
		{"skips HTML", http.MethodGet, strings.Repeat("<p>", 500), "text/html", "gzip", false},
		{"respects client without gzip", http.MethodGet, strings.Repeat("data", 500), "application/json", "", false},
		{"skips HEAD", http.MethodHead, strings.Repeat("data", 500), "application/json", "gzip", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", tt.contentType)
				w.WriteHeader(http.StatusOK)
				w.Write([]byte(tt.responseBody))
			})

			req := httptest.NewRequest(tt.method, "/api/cache/stats", http.NoBody)
			if tt.acceptEncoding != "" {
				req.Header.Set("Accept-Encoding", tt.acceptEncoding)
			}
			w := httptest.NewRecorder()
			Compression(DefaultCompressionConfig())(handler).ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", w.Code)
			}

			isCompressed := w.Header().Get("Content-Encoding") == "gzip"
			if isCompressed != tt.expectCompression {
				t.Fatalf("Expected compression=%v, got %v", tt.expectCompression, isCompressed)
			}

			if tt.expectCompression {
				gr, err := gzip.NewReader(w.Body)
				if err != nil {
					t.Fatalf("Failed to create gzip reader: %v", err)
				}
				defer gr.Close()

				decompressed, err := io.ReadAll(gr)
				if err != nil {
					t.Fatalf("Failed to decompress: %v", err)
				}
				if string(decompressed) != tt.responseBody {
					t.Error("Decompressed content doesn't match original")
				}
			}
		})
	}
}

func TestCompressionLevels(t *testing.T) {
	body := strings.Repeat(`{"thumbnail":"abc"}`, 300)
	for _, level := range []int{gzip.BestSpeed, gzip.BestCompression} {
		handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		})
		config := DefaultCompressionConfig()
		config.Level = level

		req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
		req.Header.Set("Accept-Encoding", "gzip")
		w := httptest.NewRecorder()
		Compression(config)(handler).ServeHTTP(w, req)

		gr, err := gzip.NewReader(w.Body)
		if err != nil {
			t.Fatalf("level %d: %v", level, err)
		}
		got, _ := io.ReadAll(gr)
		if string(got) != body {
			t.Errorf("level %d: body mismatch", level)
		}
	}
}

func TestGzipResponseWriterBuffering(t *testing.T) {
	w := httptest.NewRecorder()
	grw := newGzipResponseWriter(w, DefaultCompressionConfig())

	smallData := []byte("small")
	n, err := grw.Write(smallData)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if n != len(smallData) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(smallData), n)
	}
	if !bytes.Equal(grw.buffer, smallData) {
		t.Error("Buffer content doesn't match written data")
	}
}

// =============================================================================
// Metrics Middleware Tests
// =============================================================================

func TestMetricsResponseWriterWriteHeader(t *testing.T) {
	w := httptest.NewRecorder()
	rw := newMetricsResponseWriter(w)

	rw.WriteHeader(http.StatusConflict)
	if rw.statusCode != http.StatusConflict || w.Code != http.StatusConflict {
		t.Errorf("status = %d / %d", rw.statusCode, w.Code)
	}
}

func TestRouteLabel(t *testing.T) {
	var got string
	r := mux.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			got = routeLabel(req)
			next.ServeHTTP(w, req)
		})
	})
	r.HandleFunc("/api/thumbnail", func(http.ResponseWriter, *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/thumbnail?path=a/b.mp4&t=3", http.NoBody))
	if got != "/api/thumbnail" {
		t.Errorf("routeLabel() = %q", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/nowhere", http.NoBody)
	if label := routeLabel(req); label != unmatchedRoute {
		t.Errorf("routeLabel() without route = %q", label)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"records route", "/api/cache/stats", http.StatusOK},
		{"records errors", "/api/cache/stats", http.StatusInternalServerError},
		{"skips metrics path", "/metrics", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			w := httptest.NewRecorder()
			Metrics(DefaultMetricsConfig())(handler).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, http.NoBody))
			if w.Code != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, w.Code)
			}
		})
	}
}

func BenchmarkLoggingMiddleware(b *testing.B) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	wrappedHandler := Logger(LoggingConfig{SkipPaths: []string{"/api"}})(handler)
	req := httptest.NewRequest(http.MethodGet, "/api/test", http.NoBody)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		wrappedHandler.ServeHTTP(httptest.NewRecorder(), req)
	}
}
