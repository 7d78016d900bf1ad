package fetch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cockpit/internal/state"
	"cockpit/internal/types"
)

type stubAPI struct {
	mu          sync.Mutex
	events      []types.Event
	tasks       []types.Task
	projects    []types.Project
	info        types.AgentInfo
	failTasks   error
	gotSession  string
	gotProject  string
	beforeReply func(domain types.Domain)
}

func (a *stubAPI) hook(domain types.Domain) {
	if a.beforeReply != nil {
		a.beforeReply(domain)
	}
}

func (a *stubAPI) ListEvents(_ context.Context, sessionID string) ([]types.Event, error) {
	a.mu.Lock()
	a.gotSession = sessionID
	a.mu.Unlock()
	a.hook(types.DomainEvents)
	return a.events, nil
}

func (a *stubAPI) ListTasks(_ context.Context, project string) ([]types.Task, error) {
	a.mu.Lock()
	a.gotProject = project
	a.mu.Unlock()
	a.hook(types.DomainTasks)
	if a.failTasks != nil {
		return nil, a.failTasks
	}
	return a.tasks, nil
}

func (a *stubAPI) ListProjects(context.Context) ([]types.Project, error) {
	a.hook(types.DomainProjects)
	return a.projects, nil
}

func (a *stubAPI) AgentInfo(context.Context, string) (types.AgentInfo, error) {
	return a.info, nil
}

func TestFetchAllPopulatesStore(t *testing.T) {
	api := &stubAPI{
		events:   []types.Event{{ID: "e1"}},
		tasks:    []types.Task{{ID: "t1"}, {ID: "t1"}},
		projects: []types.Project{{ID: "p1"}},
		info:     types.AgentInfo{AgentName: "BETO", Model: "gemini-2.5-pro"},
	}
	store := state.New(state.Options{TaskAPI: types.TaskAPIConfig{DefaultProject: "inbox"}})
	store.SetSession(types.Session{ID: "s1"})

	require.NoError(t, NewService(api, store, nil).FetchAll(context.Background()))

	assert.Len(t, store.Events().Snapshot().Items, 1)
	assert.Len(t, store.Tasks().Snapshot().Items, 1)
	assert.True(t, store.Projects().Snapshot().Fresh)
	assert.Equal(t, "BETO", store.CurrentAgentName())
	assert.Equal(t, "s1", api.gotSession)
	assert.Equal(t, "inbox", api.gotProject)
}

func TestFetchAllContinuesPastFailures(t *testing.T) {
	boom := errors.New("tasks unavailable")
	api := &stubAPI{
		events:    []types.Event{{ID: "e1"}},
		failTasks: boom,
		info:      types.AgentInfo{Model: "gemini-2.5-pro"},
	}
	store := state.New(state.Options{})

	err := NewService(api, store, nil).FetchAll(context.Background())
	require.ErrorIs(t, err, boom)

	assert.True(t, store.Events().Snapshot().Fresh)
	assert.True(t, store.Tasks().Snapshot().Cleared())
	assert.True(t, store.Projects().Snapshot().Fresh)
	assert.Equal(t, "gemini-2.5-pro", store.CurrentModel())
}

func TestFetchDiscardsResultWhenCacheClearedMidFlight(t *testing.T) {
	store := state.New(state.Options{})
	api := &stubAPI{events: []types.Event{{ID: "stale"}}}
	api.beforeReply = func(domain types.Domain) {
		if domain == types.DomainEvents {
			store.ClearCache(types.DomainEvents)
		}
	}

	err := NewService(api, store, nil).FetchEvents(context.Background())
	require.ErrorIs(t, err, state.ErrStaleFetch)
	assert.True(t, store.Events().Snapshot().Cleared())
	assert.Empty(t, store.Events().Snapshot().Items)
}

func TestRefetchRoutesByDomain(t *testing.T) {
	api := &stubAPI{projects: []types.Project{{ID: "p1", Name: "Inbox"}}}
	store := state.New(state.Options{})
	svc := NewService(api, store, nil)

	require.NoError(t, svc.Refetch(context.Background(), types.DomainProjects))
	assert.Equal(t, "Inbox", store.Projects().Snapshot().Items[0].Name)
	assert.Error(t, svc.Refetch(context.Background(), types.Domain("weather")))
}
