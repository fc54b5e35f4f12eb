// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package session manages authenticated provider sessions: login, liveness
// probing, and cookie persistence across runs.
//
// A session is established at most once per provider per run; later callers
// get the cached session. Persisted cookie state lets a fresh run skip the
// login entirely when the provider still honors the old cookies.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/library-engine/pkg/types"
)

const defaultLoginRetries = 1

// AuthError means a provider session could not be established or has become
// invalid. Callers treat it as terminal for that provider within the run.
type AuthError struct {
	Provider types.ProviderID
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authenticating with %s: %v", e.Provider, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// Authenticator is the provider-side half of session establishment.
type Authenticator interface {
	ID() types.ProviderID
	BaseURL() string
	RequiresLogin() bool
	Login(ctx context.Context, client *http.Client, cred types.Credential) error
	Probe(ctx context.Context, client *http.Client) error
}

// CredentialSource supplies stored credentials. Satisfied by vault.Vault.
type CredentialSource interface {
	Load(provider types.ProviderID) (types.Credential, bool)
}

// Session is an authenticated HTTP surface for one provider. The client
// carries the provider's cookies.
type Session struct {
	Provider types.ProviderID
	Client   *http.Client

	jar *cookiejar.Jar
}

// Manager establishes and caches provider sessions.
type Manager struct {
	cfg   types.SessionConfig
	creds CredentialSource
	log   *zap.Logger

	mu      sync.Mutex
	entries map[types.ProviderID]*entry
}

// entry serializes establishment per provider. The manager lock guards only
// the map, so one provider's slow login never delays another provider's
// Ensure.
type entry struct {
	mu sync.Mutex
	s  *Session
}

// NewManager builds a Manager backed by the given credential source.
func NewManager(cfg types.SessionConfig, creds CredentialSource, log *zap.Logger) *Manager {
	return &Manager{
		cfg:     cfg,
		creds:   creds,
		log:     log,
		entries: make(map[types.ProviderID]*entry),
	}
}

// Ensure returns a live session for the provider, establishing one if
// needed. Establishment order: cached session, persisted cookies validated
// by a liveness probe, fresh login. Login failures come back as *AuthError
// and wipe any persisted state so the next run starts clean.
//
// Establishment is serialized per provider; concurrent Ensure calls for
// different providers proceed independently.
func (m *Manager) Ensure(ctx context.Context, auth Authenticator) (*Session, error) {
	e := m.entry(auth.ID())

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.s != nil {
		return e.s, nil
	}
	s, err := m.establish(ctx, auth)
	if err != nil {
		return nil, err
	}
	e.s = s
	return s, nil
}

func (m *Manager) entry(id types.ProviderID) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		e = &entry{}
		m.entries[id] = e
	}
	return e
}

func (m *Manager) establish(ctx context.Context, auth Authenticator) (*Session, error) {
	id := auth.ID()
	s, err := m.newSession(id)
	if err != nil {
		return nil, err
	}

	if !auth.RequiresLogin() {
		return s, nil
	}

	// Persisted cookies are only trusted after a successful probe.
	if m.restoreCookies(s, auth.BaseURL()) {
		if err := auth.Probe(ctx, s.Client); err == nil {
			m.log.Debug("reusing persisted session", zap.String("provider", string(id)))
			return s, nil
		}
		m.log.Debug("persisted session is stale", zap.String("provider", string(id)))
		m.invalidate(id)
		if s, err = m.newSession(id); err != nil {
			return nil, err
		}
	}

	if err := m.login(ctx, auth, s); err != nil {
		m.invalidate(id)
		return nil, err
	}

	m.persistCookies(s, auth.BaseURL())
	return s, nil
}

// IsLive reports whether the provider's cached session still passes its
// liveness probe. Providers without login are always live; a provider with
// no cached session is not. The probe is a heuristic: it checks that an
// account-only resource still answers, nothing stronger.
func (m *Manager) IsLive(ctx context.Context, auth Authenticator) bool {
	if !auth.RequiresLogin() {
		return true
	}
	m.mu.Lock()
	e, ok := m.entries[auth.ID()]
	m.mu.Unlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	s := e.s
	e.mu.Unlock()
	if s == nil {
		return false
	}
	return auth.Probe(ctx, s.Client) == nil
}

// Invalidate forgets the provider's session and persisted state, forcing a
// fresh login on the next Ensure. Used when a mid-run request reveals the
// session has expired.
func (m *Manager) Invalidate(provider types.ProviderID) {
	m.mu.Lock()
	delete(m.entries, provider)
	m.mu.Unlock()
	m.invalidate(provider)
}

func (m *Manager) login(ctx context.Context, auth Authenticator, s *Session) error {
	id := auth.ID()
	cred, ok := m.creds.Load(id)
	if !ok {
		return &AuthError{Provider: id, Err: fmt.Errorf("no stored credentials")}
	}

	retries := m.cfg.LoginRetries
	if retries <= 0 {
		retries = defaultLoginRetries
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := auth.Login(ctx, s.Client, cred); err != nil {
			lastErr = err
			m.log.Warn("login attempt failed",
				zap.String("provider", string(id)), zap.Int("attempt", attempt+1), zap.Error(err))
			continue
		}
		m.log.Info("session established", zap.String("provider", string(id)))
		return nil
	}
	return &AuthError{Provider: id, Err: lastErr}
}

func (m *Manager) newSession(id types.ProviderID) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	timeout := m.cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Session{
		Provider: id,
		Client:   &http.Client{Jar: jar, Timeout: timeout},
		jar:      jar,
	}, nil
}

// persistedCookie is the on-disk subset of http.Cookie worth keeping.
type persistedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Domain  string    `json:"domain,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

func (m *Manager) statePath(id types.ProviderID) string {
	return filepath.Join(m.cfg.StateDir, fmt.Sprintf("%s_cookies.json", id))
}

func (m *Manager) restoreCookies(s *Session, baseURL string) bool {
	if m.cfg.StateDir == "" {
		return false
	}
	data, err := os.ReadFile(m.statePath(s.Provider))
	if err != nil {
		return false
	}
	var persisted []persistedCookie
	if err := json.Unmarshal(data, &persisted); err != nil {
		m.log.Warn("corrupt session state, discarding",
			zap.String("provider", string(s.Provider)), zap.Error(err))
		m.invalidate(s.Provider)
		return false
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return false
	}

	cookies := make([]*http.Cookie, 0, len(persisted))
	for _, c := range persisted {
		if !c.Expires.IsZero() && c.Expires.Before(time.Now()) {
			continue
		}
		cookies = append(cookies, &http.Cookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain, Expires: c.Expires,
		})
	}
	if len(cookies) == 0 {
		return false
	}
	s.jar.SetCookies(u, cookies)
	return true
}

func (m *Manager) persistCookies(s *Session, baseURL string) {
	if m.cfg.StateDir == "" {
		return
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return
	}
	live := s.jar.Cookies(u)
	if len(live) == 0 {
		return
	}

	persisted := make([]persistedCookie, 0, len(live))
	for _, c := range live {
		persisted = append(persisted, persistedCookie{
			Name: c.Name, Value: c.Value, Path: c.Path, Domain: c.Domain, Expires: c.Expires,
		})
	}
	data, err := json.MarshalIndent(persisted, "", "  ")
	if err != nil {
		return
	}

	if err := os.MkdirAll(m.cfg.StateDir, 0o700); err != nil {
		m.log.Warn("cannot create state dir", zap.Error(err))
		return
	}
	// Session cookies are access tokens in disguise; keep them private.
	if err := os.WriteFile(m.statePath(s.Provider), data, 0o600); err != nil {
		m.log.Warn("cannot persist session state",
			zap.String("provider", string(s.Provider)), zap.Error(err))
	}
}

func (m *Manager) invalidate(id types.ProviderID) {
	if m.cfg.StateDir == "" {
		return
	}
	os.Remove(m.statePath(id))
}
