package editor

import (
	"sync"
	"time"

	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/history"
	"casehub-backend/internal/workflow"
)

// Session is one admin's editing context: the working collection, its undo
// history and the role currently simulated in the dashboard. Every change to
// the collection except undo, redo and restore is fed to the history.
type Session struct {
	ID string

	mu       sync.Mutex
	role     workflow.Role
	cases    *Collection
	history  *history.Store
	lastSeen time.Time
	now      func() time.Time
}

func (s *Session) Role() workflow.Role {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) SetRole(role workflow.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.role = role
}

func (s *Session) List(q Query) []casestudies.CaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.List(q)
}

func (s *Session) Items() []casestudies.CaseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.Items()
}

func (s *Session) Get(slug string) (casestudies.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.Get(slug)
}

func (s *Session) Create(rec casestudies.CaseRecord) (casestudies.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.cases.Create(rec)
	if err != nil {
		return casestudies.CaseRecord{}, err
	}
	s.recordLocked()
	return out, nil
}

func (s *Session) Update(slug string, rec casestudies.CaseRecord) (casestudies.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.cases.Update(slug, rec)
	if err != nil {
		return casestudies.CaseRecord{}, err
	}
	s.recordLocked()
	return out, nil
}

func (s *Session) Delete(slug string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.cases.Delete(slug); err != nil {
		return err
	}
	s.recordLocked()
	return nil
}

func (s *Session) BulkDelete(slugs []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.cases.BulkDelete(slugs)
	if n > 0 {
		s.recordLocked()
	}
	return n
}

func (s *Session) BulkEdit(slugs []string, edit BulkEdit) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.cases.BulkEdit(slugs, edit)
	if err != nil {
		return 0, err
	}
	s.recordLocked()
	return n, nil
}

// Transition applies action as the session's current role.
func (s *Session) Transition(slug string, action workflow.Action) (casestudies.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out, err := s.cases.Transition(slug, s.role, action, s.now())
	if err != nil {
		return casestudies.CaseRecord{}, err
	}
	s.recordLocked()
	return out, nil
}

func (s *Session) BulkTransition(slugs []string, action workflow.Action) (BulkTransitionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.cases.BulkTransition(slugs, s.role, action, s.now())
	if err != nil {
		return BulkTransitionResult{}, err
	}
	if len(res.Applied) > 0 {
		s.recordLocked()
	}
	return res, nil
}

func (s *Session) Export() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cases.Export()
}

// Import replaces the collection with a cases.json payload. A malformed
// payload is rejected before confirmation is considered, and replacing a
// non-empty collection needs confirmed.
func (s *Session) Import(data []byte, confirmed bool) (int, error) {
	items, err := ParseImport(data)
	if err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cases.Len() > 0 && !confirmed {
		return 0, ErrConfirmationRequired
	}
	s.cases.Replace(items)
	s.recordLocked()
	return len(items), nil
}

// Reload replaces the collection with the stored one and starts a new
// history from it.
func (s *Session) Reload(items []casestudies.CaseRecord, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cases.Len() > 0 && !confirmed {
		return ErrConfirmationRequired
	}
	s.cases.Replace(items)
	s.history.Reset()
	s.history.RecordMutation(s.cases.Items())
	s.history.Flush()
	return nil
}

func (s *Session) Undo() ([]casestudies.CaseRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Undo()
	if !ok {
		return s.cases.Items(), false
	}
	s.cases.Replace(snap)
	return s.cases.Items(), true
}

func (s *Session) Redo() ([]casestudies.CaseRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.history.Redo()
	if !ok {
		return s.cases.Items(), false
	}
	s.cases.Replace(snap)
	return s.cases.Items(), true
}

// Restore jumps to snapshot index. It always needs confirmation.
func (s *Session) Restore(index int, confirmed bool) ([]casestudies.CaseRecord, error) {
	if !confirmed {
		return nil, ErrConfirmationRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, err := s.history.Restore(index)
	if err != nil {
		return nil, err
	}
	s.cases.Replace(snap)
	return s.cases.Items(), nil
}

type HistoryState struct {
	Snapshots []history.Snapshot `json:"snapshots"`
	CanUndo   bool               `json:"canUndo"`
	CanRedo   bool               `json:"canRedo"`
	Pending   bool               `json:"pending"`
}

func (s *Session) History() HistoryState {
	s.mu.Lock()
	defer s.mu.Unlock()
	snaps := s.history.Snapshots()
	return HistoryState{
		Snapshots: snaps,
		CanUndo:   len(snaps) >= 2,
		CanRedo:   s.history.RedoLen() > 0,
		Pending:   s.history.Pending(),
	}
}

func (s *Session) ExportHistory() ([]byte, error) {
	return s.history.Export()
}

// ImportHistory replaces the undo history with an exported document and
// moves the collection to its latest snapshot.
func (s *Session) ImportHistory(data []byte, confirmed bool) error {
	snaps, err := casestudies.DecodeSnapshots(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.history.Len() > 0 && !confirmed {
		return ErrConfirmationRequired
	}
	s.history.ImportSnapshots(snaps)
	if len(snaps) > 0 {
		s.cases.Replace(snaps[len(snaps)-1])
	}
	return nil
}

func (s *Session) touch(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSeen = at
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) close() {
	s.history.Close()
}

func (s *Session) recordLocked() {
	s.history.RecordMutation(s.cases.Items())
}
