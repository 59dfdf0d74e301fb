// Package history keeps debounced snapshots of an editor collection and
// provides linear undo/redo on top of them.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"casehub-backend/internal/cache"
	"casehub-backend/internal/casestudies"
)

const (
	DefaultDebounce = 300 * time.Millisecond
	DefaultLimit    = 75
)

var ErrIndexOutOfRange = errors.New("history index out of range")

type Snapshot = []casestudies.CaseRecord

type Options struct {
	Debounce time.Duration
	Limit    int

	// Storage persists the stacks under Key for TTL; nil keeps them in memory only.
	Storage cache.Cache
	Key     string
	TTL     time.Duration

	Log      *slog.Logger
	OnCommit func(size int)
}

// Store is safe for concurrent use; the debounce timer commits from its own
// goroutine.
type Store struct {
	mu   sync.Mutex
	opts Options

	undo []Snapshot
	redo []Snapshot

	// restored is the collection a Restore moved to; it is not on the undo
	// stack and is cleared by the next stack change.
	restored    Snapshot
	hasRestored bool

	pending    Snapshot
	hasPending bool
	timer      *time.Timer
	generation uint64
}

type persisted struct {
	Undo     []Snapshot `json:"undo"`
	Redo     []Snapshot `json:"redo"`
	Restored Snapshot   `json:"restored,omitempty"`
	// IsRestored tells an empty restored collection apart from none.
	IsRestored bool `json:"isRestored,omitempty"`
}

func New(opts Options) *Store {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}
	return &Store{opts: opts}
}

// Load restores stacks saved earlier in the same session and returns the
// collection the session was at: the restored one after a Restore, the
// latest snapshot otherwise.
func (s *Store) Load(ctx context.Context) (Snapshot, bool, error) {
	if s.opts.Storage == nil || s.opts.Key == "" {
		return nil, false, nil
	}
	state, ok, err := cache.GetJSON[persisted](ctx, s.opts.Storage, s.opts.Key)
	if err != nil || !ok {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.undo = trim(state.Undo, s.opts.Limit)
	s.redo = state.Redo
	s.restored, s.hasRestored = state.Restored, state.IsRestored
	if len(s.undo) == 0 {
		return nil, false, nil
	}
	if s.hasRestored {
		return casestudies.CloneAll(s.restored), true, nil
	}
	return casestudies.CloneAll(s.undo[len(s.undo)-1]), true, nil
}

// RecordMutation schedules items to be snapshotted once no further mutation
// arrives within the debounce window.
func (s *Store) RecordMutation(items []casestudies.CaseRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = casestudies.CloneAll(items)
	s.hasPending = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.generation++
	gen := s.generation
	s.timer = time.AfterFunc(s.opts.Debounce, func() { s.fire(gen) })
}

// Flush commits a pending mutation immediately. It reports whether one was
// pending.
func (s *Store) Flush() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked()
}

// fire ignores timers superseded by a later mutation whose callback was
// already running when Stop was called.
func (s *Store) fire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.commitLocked()
}

func (s *Store) commitLocked() bool {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if !s.hasPending {
		return false
	}
	s.undo = trim(append(s.undo, s.pending), s.opts.Limit)
	s.redo = nil
	s.pending = nil
	s.hasPending = false
	s.clearRestoredLocked()
	s.persistLocked()
	if s.opts.OnCommit != nil {
		s.opts.OnCommit(len(s.undo))
	}
	return true
}

// Undo steps back one snapshot. It needs a previous snapshot to restore and
// reports false otherwise.
func (s *Store) Undo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()

	if len(s.undo) < 2 {
		return nil, false
	}
	last := s.undo[len(s.undo)-1]
	s.undo = s.undo[:len(s.undo)-1]
	s.redo = append(s.redo, last)
	s.clearRestoredLocked()
	s.persistLocked()
	return casestudies.CloneAll(s.undo[len(s.undo)-1]), true
}

// Redo re-applies the most recently undone snapshot.
func (s *Store) Redo() (Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()

	if len(s.redo) == 0 {
		return nil, false
	}
	next := s.redo[len(s.redo)-1]
	s.redo = s.redo[:len(s.redo)-1]
	s.undo = trim(append(s.undo, next), s.opts.Limit)
	s.clearRestoredLocked()
	s.persistLocked()
	return casestudies.CloneAll(next), true
}

// Restore returns the snapshot at index. The stacks are left as they are, so
// the state before a restore is not itself undoable. The restored collection
// is persisted next to the stacks so a rebuilt session comes back at it.
func (s *Store) Restore(index int) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()

	if index < 0 || index >= len(s.undo) {
		return nil, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}
	s.restored = casestudies.CloneAll(s.undo[index])
	s.hasRestored = true
	s.persistLocked()
	return casestudies.CloneAll(s.restored), nil
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.undo)
}

func (s *Store) RedoLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.redo)
}

func (s *Store) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasPending
}

// Snapshots returns copies of the undo history, oldest first.
func (s *Store) Snapshots() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.undo))
	for i, snap := range s.undo {
		out[i] = casestudies.CloneAll(snap)
	}
	return out
}

// Export renders the history as a JSON array of collections.
func (s *Store) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitLocked()

	undo := s.undo
	if undo == nil {
		undo = []Snapshot{}
	}
	return json.MarshalIndent(undo, "", "  ")
}

// Import replaces the history with an exported document. Nothing changes
// unless the whole document parses.
func (s *Store) Import(data []byte) error {
	snaps, err := casestudies.DecodeSnapshots(data)
	if err != nil {
		return err
	}
	s.ImportSnapshots(snaps)
	return nil
}

// ImportSnapshots replaces the history with already decoded snapshots,
// dropping any pending mutation and the redo stack.
func (s *Store) ImportSnapshots(snaps []Snapshot) {
	kept := make([]Snapshot, len(snaps))
	for i, snap := range snaps {
		kept[i] = casestudies.CloneAll(snap)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = nil
	s.hasPending = false
	s.undo = trim(kept, s.opts.Limit)
	s.redo = nil
	s.clearRestoredLocked()
	s.persistLocked()
}

// Reset drops all history, e.g. after the collection was replaced from the
// database.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.undo, s.redo = nil, nil
	s.pending, s.hasPending = nil, false
	s.clearRestoredLocked()
	s.persistLocked()
}

// Close stops the debounce timer without committing.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Store) persistLocked() {
	if s.opts.Storage == nil || s.opts.Key == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	state := persisted{Undo: s.undo, Redo: s.redo, Restored: s.restored, IsRestored: s.hasRestored}
	if err := cache.SetJSON(ctx, s.opts.Storage, s.opts.Key, state, s.opts.TTL); err != nil {
		s.opts.Log.Warn("history persist: storage error", slog.String("key", s.opts.Key), slog.String("error", err.Error()))
	}
}

func (s *Store) clearRestoredLocked() {
	s.restored, s.hasRestored = nil, false
}

func trim(snaps []Snapshot, limit int) []Snapshot {
	if len(snaps) <= limit {
		return snaps
	}
	out := make([]Snapshot, limit)
	copy(out, snaps[len(snaps)-limit:])
	return out
}
