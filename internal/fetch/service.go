package fetch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"cockpit/internal/logging"
	"cockpit/internal/state"
	"cockpit/internal/types"
)

type API interface {
	ListEvents(ctx context.Context, sessionID string) ([]types.Event, error)
	ListTasks(ctx context.Context, project string) ([]types.Task, error)
	ListProjects(ctx context.Context) ([]types.Project, error)
	AgentInfo(ctx context.Context, sessionID string) (types.AgentInfo, error)
}

// Service loads remote data into the shared store. Each cache fetch
// records the cache generation before calling out and commits against it,
// so results for a cache cleared in the meantime are discarded.
type Service struct {
	api    API
	store  *state.Store
	logger logging.Logger
}

func NewService(api API, store *state.Store, logger logging.Logger) *Service {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Service{api: api, store: store, logger: logger}
}

func (s *Service) FetchEvents(ctx context.Context) error {
	cache := s.store.Events()
	gen := cache.Generation()
	items, err := s.api.ListEvents(ctx, s.store.SessionID())
	if err != nil {
		return fmt.Errorf("fetch events: %w", err)
	}
	return s.commit(types.DomainEvents, cache.Commit(gen, items), len(items))
}

func (s *Service) FetchTasks(ctx context.Context) error {
	cache := s.store.Tasks()
	gen := cache.Generation()
	items, err := s.api.ListTasks(ctx, s.store.TaskAPIConfig().DefaultProject)
	if err != nil {
		return fmt.Errorf("fetch tasks: %w", err)
	}
	return s.commit(types.DomainTasks, cache.Commit(gen, items), len(items))
}

func (s *Service) FetchProjects(ctx context.Context) error {
	cache := s.store.Projects()
	gen := cache.Generation()
	items, err := s.api.ListProjects(ctx)
	if err != nil {
		return fmt.Errorf("fetch projects: %w", err)
	}
	return s.commit(types.DomainProjects, cache.Commit(gen, items), len(items))
}

func (s *Service) FetchAgentInfo(ctx context.Context) error {
	info, err := s.api.AgentInfo(ctx, s.store.SessionID())
	if err != nil {
		return fmt.Errorf("fetch agent info: %w", err)
	}
	s.store.SetAgentInfo(info.AgentName, info.Model)
	return nil
}

func (s *Service) Refetch(ctx context.Context, domain types.Domain) error {
	switch domain {
	case types.DomainEvents:
		return s.FetchEvents(ctx)
	case types.DomainTasks:
		return s.FetchTasks(ctx)
	case types.DomainProjects:
		return s.FetchProjects(ctx)
	default:
		return fmt.Errorf("unknown domain %q", domain)
	}
}

// FetchAll loads every cache and the agent info in parallel. A failing
// fetch does not cancel the others; failures are logged and returned
// joined.
func (s *Service) FetchAll(ctx context.Context) error {
	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		if err == nil {
			return
		}
		s.logger.Warn("initial_fetch_failed", logging.F("error", err))
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	var eg errgroup.Group
	for _, fn := range []func(context.Context) error{
		s.FetchEvents,
		s.FetchTasks,
		s.FetchProjects,
		s.FetchAgentInfo,
	} {
		eg.Go(func() error {
			record(fn(ctx))
			return nil
		})
	}
	_ = eg.Wait()
	return errors.Join(errs...)
}

func (s *Service) commit(domain types.Domain, err error, count int) error {
	if errors.Is(err, state.ErrStaleFetch) {
		s.logger.Debug("fetch_result_discarded", logging.F("domain", string(domain)))
		return err
	}
	if err != nil {
		return err
	}
	s.logger.Debug("fetch_committed", logging.F("domain", string(domain)), logging.F("count", count))
	return nil
}
