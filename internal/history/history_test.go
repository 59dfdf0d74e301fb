package history

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"casehub-backend/internal/cache"
	"casehub-backend/internal/casestudies"
	"casehub-backend/internal/workflow"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collection(titles ...string) []casestudies.CaseRecord {
	out := make([]casestudies.CaseRecord, 0, len(titles))
	for i, title := range titles {
		out = append(out, casestudies.CaseRecord{Slug: fmt.Sprintf("case-%d", i), TitleEn: title, Status: workflow.StatusDraft})
	}
	return out
}

func commit(s *Store, items []casestudies.CaseRecord) {
	s.RecordMutation(items)
	s.Flush()
}

func TestRapidEditsProduceOneSnapshot(t *testing.T) {
	s := New(Options{Debounce: 50 * time.Millisecond})
	defer s.Close()

	s.RecordMutation(collection("C"))
	s.RecordMutation(collection("Cl"))
	s.RecordMutation(collection("Cloud"))

	require.Eventually(t, func() bool { return s.Len() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(80 * time.Millisecond)

	snaps := s.Snapshots()
	require.Len(t, snaps, 1)
	assert.Equal(t, "Cloud", snaps[0][0].TitleEn)
	assert.False(t, s.Pending())
}

func TestDebounceWaitsForQuietWindow(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	defer s.Close()

	s.RecordMutation(collection("A"))
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Pending())

	assert.True(t, s.Flush())
	assert.Equal(t, 1, s.Len())
	assert.False(t, s.Flush())
}

func TestUndoNeedsTwoSnapshots(t *testing.T) {
	s := New(Options{Debounce: time.Hour})

	_, ok := s.Undo()
	assert.False(t, ok)

	commit(s, collection("A"))
	_, ok = s.Undo()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 0, s.RedoLen())
}

func TestRedoOnEmptyStackIsNoop(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))

	_, ok := s.Redo()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Len())
}

func TestUndoRedo(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))
	commit(s, collection("A", "B"))
	commit(s, collection("A", "B", "C"))

	snap, ok := s.Undo()
	require.True(t, ok)
	assert.Len(t, snap, 2)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.RedoLen())

	snap, ok = s.Undo()
	require.True(t, ok)
	assert.Len(t, snap, 1)

	snap, ok = s.Redo()
	require.True(t, ok)
	assert.Len(t, snap, 2)
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.RedoLen())
}

func TestFreshMutationClearsRedo(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))
	commit(s, collection("A", "B"))

	_, ok := s.Undo()
	require.True(t, ok)
	require.Equal(t, 1, s.RedoLen())

	commit(s, collection("X"))
	assert.Equal(t, 0, s.RedoLen())
	_, ok = s.Redo()
	assert.False(t, ok)
}

func TestUndoCommitsPendingFirst(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))
	s.RecordMutation(collection("A", "B"))

	snap, ok := s.Undo()
	require.True(t, ok)
	assert.Len(t, snap, 1)
	assert.Equal(t, 1, s.RedoLen())
}

func TestHistoryIsCapped(t *testing.T) {
	s := New(Options{Debounce: time.Hour, Limit: 75})
	for i := 0; i < 80; i++ {
		commit(s, collection(fmt.Sprintf("v%d", i)))
	}

	snaps := s.Snapshots()
	require.Len(t, snaps, 75)
	assert.Equal(t, "v5", snaps[0][0].TitleEn)
	assert.Equal(t, "v79", snaps[74][0].TitleEn)
}

// Restoring does not record the pre-restore state, so it cannot be undone
// back to where the user was.
func TestRestoreLeavesStacksUntouched(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))
	commit(s, collection("A", "B"))
	commit(s, collection("A", "B", "C"))

	snap, err := s.Restore(0)
	require.NoError(t, err)
	assert.Len(t, snap, 1)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 0, s.RedoLen())

	_, err = s.Restore(3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Restore(-1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestSnapshotsAreIsolatedFromCaller(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	items := collection("A")
	commit(s, items)

	items[0].TitleEn = "mutated"
	assert.Equal(t, "A", s.Snapshots()[0][0].TitleEn)
}

func TestExportImport(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))
	commit(s, collection("A", "B"))

	data, err := s.Export()
	require.NoError(t, err)

	var decoded [][]casestudies.CaseRecord
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Len(t, decoded, 2)

	other := New(Options{Debounce: time.Hour})
	commit(other, collection("Z"))
	commit(other, collection("Z", "Y"))
	_, _ = other.Undo()

	require.NoError(t, other.Import(data))
	assert.Equal(t, s.Snapshots(), other.Snapshots())
	assert.Equal(t, 0, other.RedoLen())
}

func TestImportRejectsNonArray(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))

	err := s.Import([]byte(`{"undo":[]}`))
	assert.ErrorIs(t, err, casestudies.ErrMalformedImport)
	assert.Equal(t, 1, s.Len())
}

func TestImportRejectsDuplicateSlugs(t *testing.T) {
	s := New(Options{Debounce: time.Hour})
	commit(s, collection("A"))

	err := s.Import([]byte(`[[{"slug":"a"}],[{"slug":"a"},{"slug":"a"}]]`))
	assert.ErrorIs(t, err, casestudies.ErrMalformedImport)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, "A", s.Snapshots()[0][0].TitleEn)
}

func TestImportSnapshotsReplacesStacks(t *testing.T) {
	s := New(Options{Debounce: time.Hour, Limit: 2})
	commit(s, collection("A"))
	commit(s, collection("A", "B"))
	_, _ = s.Undo()
	s.RecordMutation(collection("pending"))

	snaps := []Snapshot{collection("X"), collection("X", "Y"), collection("X", "Y", "Z")}
	s.ImportSnapshots(snaps)
	snaps[2][0].TitleEn = "mutated"

	got := s.Snapshots()
	require.Len(t, got, 2)
	assert.Equal(t, "X", got[1][0].TitleEn)
	assert.Len(t, got[1], 3)
	assert.Equal(t, 0, s.RedoLen())
	assert.False(t, s.Pending())
}

func TestPersistsToSessionStorage(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	storage := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))

	opts := Options{Debounce: time.Hour, Storage: storage, Key: "history:abc", TTL: time.Hour}
	s := New(opts)
	commit(s, collection("A"))
	commit(s, collection("A", "B"))
	_, _ = s.Undo()

	assert.True(t, server.Exists("history:abc"))

	reloaded := New(opts)
	latest, ok, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, latest, 1)
	assert.Equal(t, 1, reloaded.Len())
	assert.Equal(t, 1, reloaded.RedoLen())

	fresh := New(Options{Debounce: time.Hour, Storage: storage, Key: "history:other"})
	_, ok, err = fresh.Load(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoredCollectionSurvivesReload(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(server.Close)
	storage := cache.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: server.Addr()}))
	opts := Options{Debounce: time.Hour, Storage: storage, Key: "history:restore", TTL: time.Hour}

	s := New(opts)
	commit(s, collection("A"))
	commit(s, collection("A", "B"))
	commit(s, collection("A", "B", "C"))
	_, err = s.Restore(0)
	require.NoError(t, err)

	reloaded := New(opts)
	latest, ok, err := reloaded.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, latest, 1, "session comes back at the restored collection")
	assert.Equal(t, 3, reloaded.Len())

	// A later change moves the session off the restored collection.
	commit(reloaded, collection("A", "D"))
	again := New(opts)
	latest, ok, err = again.Load(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, latest, 2)
	assert.Equal(t, "D", latest[1].TitleEn)
}

func TestOnCommitCallback(t *testing.T) {
	var sizes []int
	s := New(Options{Debounce: time.Hour, OnCommit: func(n int) { sizes = append(sizes, n) }})
	commit(s, collection("A"))
	commit(s, collection("B"))
	assert.Equal(t, []int{1, 2}, sizes)
}
