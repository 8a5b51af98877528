// Package controller owns session identity and sequences every
// user-visible operation: upload, chat, reset, session switch, and
// the sign-in/sign-out boundary. The rendering shell is a pure
// projection of its snapshots.
package controller

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/narekokr/text-guided-audio-split/internal/conversation"
	"github.com/narekokr/text-guided-audio-split/internal/gateway"
	"github.com/narekokr/text-guided-audio-split/internal/identity"
	"github.com/narekokr/text-guided-audio-split/internal/model/chat"
	"github.com/narekokr/text-guided-audio-split/internal/playback"
	"github.com/narekokr/text-guided-audio-split/pkg/utils"
)

// State of the controller's visible machine.
type State int

const (
	StateUnauthenticated State = iota
	StateIdle
	StateUploading
	StateReady
	StateSending
	StateSwitchingSession
	StateResetting
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateIdle:
		return "idle"
	case StateUploading:
		return "uploading"
	case StateReady:
		return "ready"
	case StateSending:
		return "sending"
	case StateSwitchingSession:
		return "switching-session"
	case StateResetting:
		return "resetting"
	default:
		return "unknown"
	}
}

// sessionListTimeout bounds background sidebar refreshes, which have
// no caller to carry a deadline for them.
const sessionListTimeout = 30 * time.Second

var (
	ErrNotAuthenticated = errors.New("no authenticated identity")
	ErrNoActiveFile     = errors.New("no processed file in this session")
	ErrBusy             = errors.New("another operation is in flight")
)

// Gateway is the slice of the remote backend the controller consumes.
type Gateway interface {
	Upload(ctx context.Context, file io.Reader, filename, sessionID, userID string) error
	Chat(ctx context.Context, sessionID, message, userID string) (*gateway.ChatResponse, error)
	Reset(ctx context.Context, sessionID, userID string) error
	ListSessions(ctx context.Context, userID string) ([]chat.SessionSummary, error)
	History(ctx context.Context, sessionID, userID string) (*gateway.HistoryResponse, error)
}

// Snapshot is the full visible state at one instant.
type Snapshot struct {
	State     State
	Identity  *identity.Identity
	SessionID string
	Filename  string
	AudioURL  string
	AuthError string
	Messages  []chat.Message
	Sessions  []chat.SessionSummary
}

// Controller is the top-level orchestrator. All mutation happens
// under its lock; network waits happen outside it, and results are
// applied only if the session they were issued for is still active.
type Controller struct {
	gw     Gateway
	log    *conversation.Log
	media  *playback.Manager
	base   string
	logger *zap.Logger

	mu            sync.Mutex
	state         State
	identity      *identity.Identity
	session       chat.Session
	filename      string
	handle        *playback.Handle
	remoteAudio   string
	authErr       string
	sessions      []chat.SessionSummary
	serverSession bool

	onChange func()
}

// New wires the controller. base is the backend address artifact
// locators resolve against.
func New(gw Gateway, log *conversation.Log, media *playback.Manager, base string, logger *zap.Logger) *Controller {
	return &Controller{
		gw:     gw,
		log:    log,
		media:  media,
		base:   base,
		logger: logger,
		state:  StateUnauthenticated,
	}
}

// newSession mints a client-side session bound to the identity, the
// way a session must exist before the server has ever heard of it.
func newSession(id *identity.Identity) chat.Session {
	return chat.Session{
		ID:            uuid.NewString(),
		CreatedAt:     time.Now().UTC(),
		BoundIdentity: id.UID,
	}
}

// Notify registers the change callback invoked after every visible
// transition. It runs without the controller lock held. Must be called
// before any operation or identity event can fire.
func (c *Controller) Notify(fn func()) {
	c.onChange = fn
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// Snapshot captures the current visible state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	audioURL := c.remoteAudio
	if c.handle != nil {
		audioURL = c.handle.URL()
	}
	sessions := make([]chat.SessionSummary, len(c.sessions))
	copy(sessions, c.sessions)

	return Snapshot{
		State:     c.state,
		Identity:  c.identity,
		SessionID: c.session.ID,
		Filename:  c.filename,
		AudioURL:  audioURL,
		AuthError: c.authErr,
		Messages:  c.log.Messages(),
		Sessions:  sessions,
	}
}

// HandleIdentity reacts to the identity gate's transitions. A present
// identity moves the machine out of Unauthenticated with a fresh
// session id; an absent one hard-resets all in-memory state without a
// server call, since there is no identity to address one to.
func (c *Controller) HandleIdentity(id *identity.Identity) {
	c.mu.Lock()
	if id == nil {
		c.releaseHandleLocked()
		c.log.Clear()
		c.identity = nil
		c.session = chat.Session{}
		c.filename = ""
		c.remoteAudio = ""
		c.authErr = ""
		c.sessions = nil
		c.serverSession = false
		c.state = StateUnauthenticated
		c.mu.Unlock()
		c.logger.Info("identity gone, state cleared")
		c.notify()
		return
	}

	c.identity = id
	c.authErr = ""
	if c.state == StateUnauthenticated {
		c.session = newSession(id)
		c.state = StateIdle
	}
	sid := c.session.ID
	c.mu.Unlock()

	c.logger.Info("identity present", zap.String("uid", id.UID), zap.String("session", sid))
	c.notify()
	go c.refreshSessionsBestEffort()
}

// HandleAuthError surfaces a sign-in failure in the dedicated auth
// slot; no session may exist yet, so the conversation log is not used.
func (c *Controller) HandleAuthError(err error) {
	c.mu.Lock()
	c.authErr = err.Error()
	c.mu.Unlock()
	c.notify()
}

// Upload processes a newly selected audio file. A local playback
// handle is acquired immediately, before and independent of the
// server round-trip; the previous handle, if any, is released first.
func (c *Controller) Upload(ctx context.Context, filePath string) error {
	name := path.Base(filePath)

	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	if c.state != StateIdle && c.state != StateReady {
		c.mu.Unlock()
		return ErrBusy
	}

	c.releaseHandleLocked()
	handle, err := c.media.Acquire(name, filePath)
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.handle = handle
	c.remoteAudio = ""
	c.filename = name
	c.log.Clear()
	c.state = StateUploading
	sid := c.session.ID
	uid := c.identity.UID
	hadServer := c.serverSession
	c.mu.Unlock()
	c.notify()

	// A re-upload reuses the session id, so server-side leftovers of
	// the previous file are cleared first. Best effort.
	if hadServer {
		if err := c.gw.Reset(ctx, sid, uid); err != nil {
			c.logger.Warn("pre-upload reset failed", zap.Error(err))
		}
	}

	f, err := os.Open(filePath)
	if err == nil {
		err = c.gw.Upload(ctx, f, name, sid, uid)
		f.Close()
	}

	c.mu.Lock()
	if c.session.ID != sid {
		c.mu.Unlock()
		c.logger.Warn("stale upload result discarded", zap.String("session", sid))
		return nil
	}

	if err != nil {
		c.releaseHandleLocked()
		c.filename = ""
		c.state = StateIdle
		c.log.AppendDiagnostic("Upload failed: " + err.Error())
		c.mu.Unlock()
		c.notify()
		return nil
	}

	c.serverSession = true
	c.state = StateReady
	c.log.AppendDiagnostic("File ready! You can now start chatting below.")
	c.mu.Unlock()
	c.notify()
	return nil
}

// Send runs one chat turn. The user message is appended optimistically
// and never rolled back; failures append a diagnostic instead.
func (c *Controller) Send(ctx context.Context, message string) error {
	if message == "" {
		return nil
	}

	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	if c.state != StateReady {
		busy := c.stateIsBusy()
		c.mu.Unlock()
		if busy {
			return ErrBusy
		}
		return ErrNoActiveFile
	}

	c.log.AppendUser(message)
	c.state = StateSending
	sid := c.session.ID
	uid := c.identity.UID
	c.mu.Unlock()
	c.notify()

	resp, err := c.gw.Chat(ctx, sid, message, uid)

	c.mu.Lock()
	if c.session.ID != sid {
		c.mu.Unlock()
		c.logger.Warn("stale chat result discarded", zap.String("session", sid))
		return nil
	}

	if err != nil {
		c.log.AppendDiagnostic("Assistant failed: " + err.Error())
	} else {
		c.log.ApplyChatResponse(resp)
	}
	c.state = StateReady
	c.mu.Unlock()
	c.notify()
	return nil
}

// SwitchSession activates a prior session: the target id becomes
// active immediately, its history replaces the log wholesale, and the
// server-hosted original audio is used directly (no local handle). A
// history response arriving after a newer switch started is discarded.
func (c *Controller) SwitchSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	c.releaseHandleLocked()
	c.session = chat.Session{ID: sessionID, BoundIdentity: c.identity.UID}
	c.filename = ""
	c.remoteAudio = ""
	c.state = StateSwitchingSession
	uid := c.identity.UID
	c.mu.Unlock()
	c.notify()

	resp, err := c.gw.History(ctx, sessionID, uid)

	c.mu.Lock()
	if c.session.ID != sessionID {
		c.mu.Unlock()
		c.logger.Warn("stale history response discarded", zap.String("session", sessionID))
		return nil
	}

	if err != nil {
		c.log.Clear()
		c.log.AppendDiagnostic("Could not load this session: " + err.Error())
		c.serverSession = false
		c.state = StateIdle
		c.mu.Unlock()
		c.notify()
		return nil
	}

	c.log.ReplaceFromHistory(resp.Messages)
	c.remoteAudio = utils.ResolveLocator(c.base, resp.AudioPath)
	if resp.AudioPath != "" {
		c.filename = path.Base(resp.AudioPath)
	}
	c.serverSession = true
	c.state = StateReady
	c.mu.Unlock()
	c.notify()
	return nil
}

// Reset starts a new chat: best-effort server-side delete of the
// active session, then a clean slate with a fresh session id. With no
// server-side state to delete, no network call is made, so resetting
// an already-reset session is a no-op that cannot fail.
func (c *Controller) Reset(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}

	needServer := c.serverSession
	sid := c.session.ID
	uid := c.identity.UID
	c.state = StateResetting
	c.mu.Unlock()
	c.notify()

	if needServer {
		if err := c.gw.Reset(ctx, sid, uid); err != nil {
			c.logger.Warn("server-side reset failed", zap.Error(err))
		}
	}

	c.mu.Lock()
	if c.session.ID != sid {
		// A newer switch overtook the reset; its state wins.
		c.mu.Unlock()
		c.logger.Warn("stale reset completion discarded", zap.String("session", sid))
		return nil
	}
	c.releaseHandleLocked()
	c.log.Clear()
	c.session = newSession(c.identity)
	c.filename = ""
	c.remoteAudio = ""
	c.serverSession = false
	c.state = StateIdle
	c.mu.Unlock()
	c.notify()

	// The deleted session must drop out of the sidebar.
	go c.refreshSessionsBestEffort()
	return nil
}

// RefreshSessions reloads the session list for the sidebar. Server
// ordering is kept as served. A list arriving after the identity it
// was requested for is gone is discarded.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	c.mu.Lock()
	if c.identity == nil {
		c.mu.Unlock()
		return ErrNotAuthenticated
	}
	uid := c.identity.UID
	c.mu.Unlock()

	summaries, err := c.gw.ListSessions(ctx, uid)
	if err != nil {
		c.logger.Warn("session list refresh failed", zap.Error(err))
		return err
	}

	c.mu.Lock()
	if c.identity == nil || c.identity.UID != uid {
		c.mu.Unlock()
		c.logger.Warn("stale session list discarded", zap.String("uid", uid))
		return nil
	}
	c.sessions = summaries
	c.mu.Unlock()
	c.notify()
	return nil
}

// refreshSessionsBestEffort runs the sidebar refresh off the caller's
// path; failures are already logged by RefreshSessions.
func (c *Controller) refreshSessionsBestEffort() {
	ctx, cancel := context.WithTimeout(context.Background(), sessionListTimeout)
	defer cancel()
	_ = c.RefreshSessions(ctx)
}

// releaseHandleLocked frees the single playback handle slot. Always
// release-then-acquire or release-then-clear; the manager logs if the
// discipline ever breaks.
func (c *Controller) releaseHandleLocked() {
	if c.handle != nil {
		c.media.Release(c.handle)
		c.handle = nil
	}
}

func (c *Controller) stateIsBusy() bool {
	switch c.state {
	case StateUploading, StateSending, StateSwitchingSession, StateResetting:
		return true
	}
	return false
}
