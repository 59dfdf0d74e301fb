package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"casehub-backend/internal/cache"
	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/history"
	"casehub-backend/internal/workflow"
	"github.com/google/uuid"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// Loader provides the stored collection a new session starts from.
type Loader interface {
	LoadAll(ctx context.Context) ([]casestudies.CaseRecord, error)
}

type ManagerOptions struct {
	Storage     cache.Cache
	SessionTTL  time.Duration
	Debounce    time.Duration
	HistorySize int
	DefaultRole workflow.Role
	Log         *slog.Logger
	OnSnapshot  func(size int)
	Now         func() time.Time
}

// Manager owns the editor sessions of this process. A session ID that is
// unknown here but still has history in Storage is rebuilt from it, so a
// reload within the browser session keeps the undo stack.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	// opening holds a channel per session ID being loaded; it is closed once
	// the load finished either way.
	opening map[string]chan struct{}
	loader  Loader
	opts    ManagerOptions
}

func NewManager(loader Loader, opts ManagerOptions) *Manager {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 8 * time.Hour
	}
	if opts.DefaultRole == "" {
		opts.DefaultRole = workflow.RoleAdmin
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		sessions: make(map[string]*Session),
		opening:  make(map[string]chan struct{}),
		loader:   loader,
		opts:     opts,
	}
}

func NewSessionID() string {
	return uuid.NewString()
}

// Get returns the session for id, creating it when needed. Loading a new
// session happens outside the manager lock; concurrent calls for the same id
// wait for the first load instead of loading twice.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrInvalidSessionID
	}
	now := m.opts.Now()

	for {
		m.mu.Lock()
		m.sweepLocked(now)
		if s, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			s.touch(now)
			return s, nil
		}
		wait, busy := m.opening[id]
		if !busy {
			done := make(chan struct{})
			m.opening[id] = done
			m.mu.Unlock()
			return m.finishOpen(ctx, id, now, done)
		}
		m.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (m *Manager) finishOpen(ctx context.Context, id string, now time.Time, done chan struct{}) (*Session, error) {
	s, err := m.open(ctx, id, now)

	m.mu.Lock()
	delete(m.opening, id)
	if err == nil {
		m.sessions[id] = s
	}
	m.mu.Unlock()
	close(done)

	if err != nil {
		return nil, err
	}
	return s, nil
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Close stops every session's pending history timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.close()
		delete(m.sessions, id)
	}
}

func (m *Manager) open(ctx context.Context, id string, now time.Time) (*Session, error) {
	store := history.New(history.Options{
		Debounce: m.opts.Debounce,
		Limit:    m.opts.HistorySize,
		Storage:  m.opts.Storage,
		Key:      "cms:history:" + id,
		TTL:      m.opts.SessionTTL,
		Log:      m.opts.Log.With(slog.String("session", id)),
		OnCommit: m.opts.OnSnapshot,
	})

	s := &Session{
		ID:       id,
		role:     m.opts.DefaultRole,
		history:  store,
		lastSeen: now,
		now:      m.opts.Now,
	}

	latest, ok, err := store.Load(ctx)
	if err != nil {
		m.opts.Log.Warn("editor session: history not restored", slog.String("session", id), slog.String("error", err.Error()))
	}
	if ok {
		s.cases = NewCollection(latest)
		m.opts.Log.Info("editor session: restored", slog.String("session", id), slog.Int("snapshots", store.Len()))
		return s, nil
	}

	items, err := m.loader.LoadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cases: %w", err)
	}
	s.cases = NewCollection(items)
	store.RecordMutation(s.cases.Items())
	store.Flush()
	m.opts.Log.Info("editor session: opened", slog.String("session", id), slog.Int("cases", len(items)))
	return s, nil
}

// EvictIdle drops sessions idle for longer than the session TTL and reports
// how many went. Their history stays in Storage until it expires.
func (m *Manager) EvictIdle() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweepLocked(m.opts.Now())
}

func (m *Manager) sweepLocked(now time.Time) int {
	evicted := 0
	for id, s := range m.sessions {
		if now.Sub(s.idleSince()) > m.opts.SessionTTL {
			s.close()
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}
