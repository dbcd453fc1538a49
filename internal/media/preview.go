package media

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// PreviewPathPrefix is the URL space preview handles are minted in.
const PreviewPathPrefix = "/preview/"

// PreviewRegistry hands out revocable preview URLs for selected sources and
// streams their bytes to the webview.
type PreviewRegistry struct {
	mu      sync.RWMutex
	handles map[string]*SourceMedia
	onLive  func(live int)
}

// NewPreviewRegistry creates an empty registry. onLive, when set, observes
// the number of live handles after every acquire and release.
func NewPreviewRegistry(onLive func(live int)) *PreviewRegistry {
	return &PreviewRegistry{
		handles: make(map[string]*SourceMedia),
		onLive:  onLive,
	}
}

// PreviewHandle is one live reference into the registry.
type PreviewHandle struct {
	URL string

	id       string
	registry *PreviewRegistry
	once     sync.Once
}

// Acquire registers src and returns a handle that must be released.
func (r *PreviewRegistry) Acquire(src *SourceMedia) *PreviewHandle {
	id := uuid.NewString()

	r.mu.Lock()
	r.handles[id] = src
	live := len(r.handles)
	r.mu.Unlock()
	r.notify(live)

	return &PreviewHandle{
		URL:      PreviewPathPrefix + id,
		id:       id,
		registry: r,
	}
}

// Release revokes the handle. Calling it more than once is a no-op.
func (h *PreviewHandle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		h.registry.revoke(h.id)
	})
}

// Live reports how many handles are currently registered.
func (r *PreviewRegistry) Live() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handles)
}

// Resolve returns the source behind a preview URL if it is still live.
func (r *PreviewRegistry) Resolve(url string) (*SourceMedia, bool) {
	id := strings.TrimPrefix(url, PreviewPathPrefix)
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.handles[id]
	return src, ok
}

// ServeHTTP streams a live preview with range support; revoked ids get 404.
func (r *PreviewRegistry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	src, ok := r.Resolve(req.URL.Path)
	if !ok {
		http.NotFound(w, req)
		return
	}

	content, err := src.open()
	if err != nil {
		http.Error(w, "preview unavailable", http.StatusInternalServerError)
		return
	}
	defer content.Close()

	w.Header().Set("Content-Type", src.MediaType)
	http.ServeContent(w, req, src.Name, time.Time{}, content)
}

func (r *PreviewRegistry) revoke(id string) {
	r.mu.Lock()
	delete(r.handles, id)
	live := len(r.handles)
	r.mu.Unlock()
	r.notify(live)
}

func (r *PreviewRegistry) notify(live int) {
	if r.onLive != nil {
		r.onLive(live)
	}
}
