// Package playback hands out revocable local URLs for audio files the
// user just picked, so the shell can play them before (or regardless
// of) the server round-trip. Handles are backed by a loopback HTTP
// server; revoking a handle makes its URL dead immediately.
package playback

import (
	"net/http"
	"os"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Handle is a live local playback reference. Valid until released.
type Handle struct {
	token string
	name  string
	url   string
}

// URL returns the loopback address the audio is served from.
func (h *Handle) URL() string { return h.url }

// Name returns the display name of the underlying file.
func (h *Handle) Name() string { return h.name }

// Manager owns the token registry and the serving handler.
type Manager struct {
	addr   string
	logger *zap.Logger

	mu    sync.Mutex
	files map[string]string // token -> path
}

// NewManager builds a manager serving on addr (host:port).
func NewManager(addr string, logger *zap.Logger) *Manager {
	return &Manager{
		addr:   addr,
		logger: logger,
		files:  make(map[string]string),
	}
}

// Handler returns the router serving acquired handles.
func (m *Manager) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/audio/{token}", m.serveAudio)
	return r
}

func (m *Manager) serveAudio(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	m.mu.Lock()
	path, ok := m.files[token]
	m.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, path)
}

// Acquire registers the file and returns a live handle for it.
func (m *Manager) Acquire(name, path string) (*Handle, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrap(err, "audio file not readable")
	}

	token := shortuuid.New()

	m.mu.Lock()
	m.files[token] = path
	m.mu.Unlock()

	m.logger.Debug("playback handle acquired",
		zap.String("token", token), zap.String("file", name))

	return &Handle{
		token: token,
		name:  name,
		url:   "http://" + m.addr + "/audio/" + token,
	}, nil
}

// Release revokes the handle. Releasing an already-released handle is
// a no-op, but it is logged: a double release means the caller's
// single-slot discipline broke.
func (m *Manager) Release(h *Handle) {
	if h == nil {
		return
	}

	m.mu.Lock()
	_, live := m.files[h.token]
	delete(m.files, h.token)
	m.mu.Unlock()

	if !live {
		m.logger.Warn("double release of playback handle",
			zap.String("token", h.token), zap.String("file", h.name))
		return
	}
	m.logger.Debug("playback handle released", zap.String("token", h.token))
}

// Outstanding reports the number of live handles.
func (m *Manager) Outstanding() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}
