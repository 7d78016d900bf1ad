package state

import (
	"sort"
	"strings"
	"sync"

	"cockpit/internal/types"
)

// Field names what changed in an OnChange notification. Cache changes use
// the cache's domain name.
type Field string

const (
	FieldSessionID Field = "session_id"
	FieldAgentInfo Field = "agent_info"
	FieldDarkTheme Field = "dark_theme"
	FieldTaskAPI   Field = "task_api"
	FieldEvents          = Field(types.DomainEvents)
	FieldTasks           = Field(types.DomainTasks)
	FieldProjects        = Field(types.DomainProjects)
)

// View is a consistent copy of the scalar fields.
type View struct {
	SessionID        string
	SessionEphemeral bool
	CurrentAgentName string
	CurrentModel     string
	IsDarkTheme      bool
	TaskAPIConfig    types.TaskAPIConfig
}

type Options struct {
	DarkTheme bool
	TaskAPI   types.TaskAPIConfig
}

// Store is the single shared client state. One instance is created at
// startup and handed to every component that reads or writes it.
type Store struct {
	mu   sync.RWMutex
	view View

	events   *Cache[types.Event]
	tasks    *Cache[types.Task]
	projects *Cache[types.Project]

	observersMu sync.Mutex
	observers   map[uint64]func(Field)
	nextID      uint64
	disposed    bool
}

func New(opts Options) *Store {
	s := &Store{
		view: View{
			IsDarkTheme:   opts.DarkTheme,
			TaskAPIConfig: opts.TaskAPI,
		},
		observers: map[uint64]func(Field){},
	}
	s.events = newCache[types.Event](types.DomainEvents, s.notify)
	s.tasks = newCache[types.Task](types.DomainTasks, s.notify)
	s.projects = newCache[types.Project](types.DomainProjects, s.notify)
	return s
}

func (s *Store) View() View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

func (s *Store) SessionID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.SessionID
}

func (s *Store) CurrentAgentName() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.CurrentAgentName
}

func (s *Store) CurrentModel() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.CurrentModel
}

func (s *Store) IsDarkTheme() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.IsDarkTheme
}

func (s *Store) TaskAPIConfig() types.TaskAPIConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view.TaskAPIConfig
}

func (s *Store) SetSession(session types.Session) {
	s.update(FieldSessionID, func(v *View) bool {
		if v.SessionID == session.ID && v.SessionEphemeral == session.Ephemeral {
			return false
		}
		v.SessionID = session.ID
		v.SessionEphemeral = session.Ephemeral
		return true
	})
}

// SetAgentInfo records the agent currently answering. Blank values leave
// the corresponding field unchanged.
func (s *Store) SetAgentInfo(agentName, model string) {
	agentName = strings.TrimSpace(agentName)
	model = strings.TrimSpace(model)
	s.update(FieldAgentInfo, func(v *View) bool {
		changed := false
		if agentName != "" && agentName != v.CurrentAgentName {
			v.CurrentAgentName = agentName
			changed = true
		}
		if model != "" && model != v.CurrentModel {
			v.CurrentModel = model
			changed = true
		}
		return changed
	})
}

func (s *Store) SetDarkTheme(dark bool) {
	s.update(FieldDarkTheme, func(v *View) bool {
		if v.IsDarkTheme == dark {
			return false
		}
		v.IsDarkTheme = dark
		return true
	})
}

func (s *Store) SetTaskAPIConfig(cfg types.TaskAPIConfig) {
	s.update(FieldTaskAPI, func(v *View) bool {
		if v.TaskAPIConfig == cfg {
			return false
		}
		v.TaskAPIConfig = cfg
		return true
	})
}

func (s *Store) Events() *Cache[types.Event]     { return s.events }
func (s *Store) Tasks() *Cache[types.Task]       { return s.tasks }
func (s *Store) Projects() *Cache[types.Project] { return s.projects }

// ClearCache resets the cache for domain and returns its new generation.
// Unknown domains are ignored and report zero.
func (s *Store) ClearCache(domain types.Domain) uint64 {
	switch domain {
	case types.DomainEvents:
		return s.events.Clear()
	case types.DomainTasks:
		return s.tasks.Clear()
	case types.DomainProjects:
		return s.projects.Clear()
	default:
		return 0
	}
}

// OnChange registers fn to run after every mutation. The returned function
// removes it.
func (s *Store) OnChange(fn func(Field)) func() {
	if fn == nil {
		return func() {}
	}
	s.observersMu.Lock()
	defer s.observersMu.Unlock()
	if s.disposed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.observers[id] = fn
	return func() {
		s.observersMu.Lock()
		defer s.observersMu.Unlock()
		delete(s.observers, id)
	}
}

// Dispose drops every observer and empties the caches. The store stays
// readable but no longer notifies.
func (s *Store) Dispose() {
	s.observersMu.Lock()
	s.disposed = true
	s.observers = map[uint64]func(Field){}
	s.observersMu.Unlock()

	s.events.Clear()
	s.tasks.Clear()
	s.projects.Clear()
}

func (s *Store) update(field Field, apply func(*View) bool) {
	s.mu.Lock()
	changed := apply(&s.view)
	s.mu.Unlock()
	if changed {
		s.notify(field)
	}
}

func (s *Store) notify(field Field) {
	s.observersMu.Lock()
	if len(s.observers) == 0 {
		s.observersMu.Unlock()
		return
	}
	ids := make([]uint64, 0, len(s.observers))
	for id := range s.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(Field), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.observers[id])
	}
	s.observersMu.Unlock()

	for _, fn := range fns {
		fn(field)
	}
}
