package identity

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Gate observes the provider's auth state stream and exposes the
// current identity plus login/logout transitions to a registered sink.
type Gate struct {
	provider Provider
	logger   *zap.Logger

	mu      sync.RWMutex
	current *Identity

	onChange func(*Identity)
	onError  func(error)
}

// NewGate wires a gate to the external provider.
func NewGate(provider Provider, logger *zap.Logger) *Gate {
	return &Gate{provider: provider, logger: logger}
}

// Notify registers the transition sink and the auth-error sink. Must be
// called before Run.
func (g *Gate) Notify(onChange func(*Identity), onError func(error)) {
	g.onChange = onChange
	g.onError = onError
}

// Current returns the authenticated identity, or nil when signed out.
func (g *Gate) Current() *Identity {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.current
}

// Run consumes provider events until the context is cancelled.
func (g *Gate) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-g.provider.Events():
			if !ok {
				return
			}
			g.handle(ev)
		}
	}
}

func (g *Gate) handle(ev Event) {
	if ev.Err != nil {
		g.logger.Warn("identity provider error", zap.Error(ev.Err))
		if g.onError != nil {
			g.onError(&AuthError{Reason: ev.Err.Error()})
		}
		return
	}

	if ev.Token == "" {
		g.mu.Lock()
		g.current = nil
		g.mu.Unlock()
		g.logger.Info("signed out")
		if g.onChange != nil {
			g.onChange(nil)
		}
		return
	}

	id, err := FromToken(ev.Token)
	if err != nil {
		g.logger.Warn("unusable identity token", zap.Error(err))
		if g.onError != nil {
			g.onError(&AuthError{Reason: err.Error()})
		}
		return
	}

	g.mu.Lock()
	g.current = id
	g.mu.Unlock()
	g.logger.Info("signed in", zap.String("uid", id.UID))
	if g.onChange != nil {
		g.onChange(id)
	}
}

// BeginSignIn asks the provider to start its sign-in flow.
func (g *Gate) BeginSignIn(ctx context.Context) error {
	return g.provider.BeginSignIn(ctx)
}

// SignOut asks the provider to drop the current identity.
func (g *Gate) SignOut(ctx context.Context) error {
	return g.provider.SignOut(ctx)
}
