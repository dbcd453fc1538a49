package media

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestPreviewRegistryAcquireRelease checks handles are revocable once.
func TestPreviewRegistryAcquireRelease(t *testing.T) {
	var observed []int
	registry := NewPreviewRegistry(func(live int) { observed = append(observed, live) })
	src, err := NewSource("clip.mp4", "video/mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}

	handle := registry.Acquire(src)
	if !strings.HasPrefix(handle.URL, PreviewPathPrefix) {
		t.Fatalf("url = %q", handle.URL)
	}
	if registry.Live() != 1 {
		t.Fatalf("live = %d, want 1", registry.Live())
	}

	handle.Release()
	handle.Release()
	if registry.Live() != 0 {
		t.Fatalf("live = %d, want 0", registry.Live())
	}
	if _, ok := registry.Resolve(handle.URL); ok {
		t.Fatal("released handle still resolves")
	}
	if len(observed) != 2 || observed[0] != 1 || observed[1] != 0 {
		t.Fatalf("observed = %v, want [1 0]", observed)
	}
}

// TestPreviewRegistryServeHTTP checks live handles stream and revoked ones 404.
func TestPreviewRegistryServeHTTP(t *testing.T) {
	registry := NewPreviewRegistry(nil)
	src, err := NewSource("clip.mp4", "video/mp4", []byte("video-bytes"))
	if err != nil {
		t.Fatalf("NewSource() error = %v", err)
	}
	handle := registry.Acquire(src)

	rec := httptest.NewRecorder()
	registry.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, handle.URL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("content type = %q", got)
	}
	body, _ := io.ReadAll(rec.Body)
	if string(body) != "video-bytes" {
		t.Fatalf("body = %q", body)
	}

	handle.Release()
	rec = httptest.NewRecorder()
	registry.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, handle.URL, nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after release = %d, want 404", rec.Code)
	}
}
