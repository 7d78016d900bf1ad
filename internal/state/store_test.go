package state

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cockpit/internal/types"
)

func TestAppendDuplicateKeepsOneEntry(t *testing.T) {
	s := New(Options{})
	require.NoError(t, s.Tasks().Append(types.Task{ID: "t1", Title: "first"}))
	err := s.Tasks().Append(types.Task{ID: "t1", Title: "second"})
	require.ErrorIs(t, err, ErrDuplicateCacheEntry)

	snap := s.Tasks().Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "first", snap.Items[0].Title)
}

func TestSetDropsLaterDuplicatesAndIsIdempotent(t *testing.T) {
	s := New(Options{})
	input := []types.Project{{ID: "p1", Name: "one"}, {ID: "p2", Name: "two"}, {ID: "p1", Name: "dup"}}
	want := []types.Project{{ID: "p1", Name: "one"}, {ID: "p2", Name: "two"}}

	s.Projects().Set(input)
	first := s.Projects().Snapshot()
	s.Projects().Set(input)
	second := s.Projects().Snapshot()

	if diff := cmp.Diff(want, first.Items); diff != "" {
		t.Fatalf("unexpected items (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("set should be idempotent (-first +second):\n%s", diff)
	}
	assert.True(t, first.Fresh)
}

func TestClearedDiffersFromFreshEmpty(t *testing.T) {
	s := New(Options{})
	assert.True(t, s.Events().Snapshot().Cleared())

	s.Events().Set(nil)
	fresh := s.Events().Snapshot()
	assert.True(t, fresh.Fresh)
	assert.Empty(t, fresh.Items)

	s.ClearCache(types.DomainEvents)
	cleared := s.Events().Snapshot()
	assert.False(t, cleared.Fresh)
	assert.True(t, cleared.Cleared())
}

func TestCommitAfterClearIsStale(t *testing.T) {
	s := New(Options{})
	started := s.Tasks().Generation()

	s.ClearCache(types.DomainTasks)
	err := s.Tasks().Commit(started, []types.Task{{ID: "old"}})
	require.ErrorIs(t, err, ErrStaleFetch)
	assert.Empty(t, s.Tasks().Snapshot().Items)

	current := s.Tasks().Generation()
	require.NoError(t, s.Tasks().Commit(current, []types.Task{{ID: "new"}}))
	snap := s.Tasks().Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, "new", snap.Items[0].ID)
	assert.True(t, snap.Fresh)
}

func TestClearCacheReturnsGeneration(t *testing.T) {
	s := New(Options{})
	assert.Equal(t, uint64(1), s.ClearCache(types.DomainProjects))
	assert.Equal(t, uint64(2), s.ClearCache(types.DomainProjects))
	assert.Equal(t, uint64(0), s.ClearCache(types.Domain("unknown")))
}

func TestSnapshotIsIsolatedFromLaterWrites(t *testing.T) {
	s := New(Options{})
	s.Events().Set([]types.Event{{ID: "e1"}})
	snap := s.Events().Snapshot()
	snap.Items[0].Title = "mutated"
	require.NoError(t, s.Events().Append(types.Event{ID: "e2"}))

	assert.Len(t, snap.Items, 1)
	assert.Equal(t, "", s.Events().Snapshot().Items[0].Title)
}

func TestSetAgentInfoKeepsValueForBlankField(t *testing.T) {
	s := New(Options{})
	var changes []Field
	s.OnChange(func(f Field) { changes = append(changes, f) })

	s.SetAgentInfo("BETO", "gemini-2.5-pro")
	s.SetAgentInfo("", "gemini-2.5-flash")
	s.SetAgentInfo("BETO", "")

	view := s.View()
	assert.Equal(t, "BETO", view.CurrentAgentName)
	assert.Equal(t, "gemini-2.5-flash", view.CurrentModel)
	assert.Equal(t, []Field{FieldAgentInfo, FieldAgentInfo}, changes)
}

func TestSettersNotifyOnlyOnChange(t *testing.T) {
	s := New(Options{DarkTheme: true})
	var changes []Field
	unsubscribe := s.OnChange(func(f Field) { changes = append(changes, f) })

	s.SetDarkTheme(true)
	s.SetDarkTheme(false)
	cfg := types.TaskAPIConfig{Endpoint: "https://tasks.local", APIKey: "k"}
	s.SetTaskAPIConfig(cfg)
	s.SetTaskAPIConfig(cfg)
	s.SetSession(types.Session{ID: "s1"})
	unsubscribe()
	s.SetSession(types.Session{ID: "s2"})

	assert.Equal(t, []Field{FieldDarkTheme, FieldTaskAPI, FieldSessionID}, changes)
	assert.False(t, s.IsDarkTheme())
	assert.Equal(t, cfg, s.TaskAPIConfig())
	assert.Equal(t, "s2", s.SessionID())
}

func TestDisposeStopsNotifications(t *testing.T) {
	s := New(Options{})
	s.Tasks().Set([]types.Task{{ID: "t1"}})
	count := 0
	s.OnChange(func(Field) { count++ })

	s.Dispose()
	s.SetAgentInfo("BETO", "")
	s.OnChange(func(Field) { count++ })
	s.SetAgentInfo("ALFA", "")

	assert.Equal(t, 0, count)
	assert.True(t, s.Tasks().Snapshot().Cleared())
}

func TestConcurrentReadersSeeWholeSlices(t *testing.T) {
	s := New(Options{})
	batchA := []types.Task{{ID: "a1"}, {ID: "a2"}, {ID: "a3"}}
	batchB := []types.Task{{ID: "b1"}, {ID: "b2"}}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				s.Tasks().Set(batchA)
			} else {
				s.Tasks().Set(batchB)
			}
		}
	}()
	torn := false
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			items := s.Tasks().Snapshot().Items
			switch len(items) {
			case 0:
			case 2:
				torn = torn || items[0].ID != "b1"
			case 3:
				torn = torn || items[0].ID != "a1"
			default:
				torn = true
			}
		}
	}()
	wg.Wait()
	assert.False(t, torn)
}
