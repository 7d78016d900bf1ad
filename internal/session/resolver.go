package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"cockpit/internal/logging"
	"cockpit/internal/types"
)

// StorageKey is the fixed durable-storage key holding the session identifier.
const StorageKey = "cockpit.session_id"

var ErrStorageUnavailable = errors.New("session storage unavailable")

type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Resolver hands out the persisted session identifier, creating one on first
// use. Storage is consulted on every call so an externally cleared value
// yields a fresh identifier. When storage cannot be used the resolver falls
// back to a process-local identifier that is never persisted.
type Resolver struct {
	storage Storage
	logger  logging.Logger
	newID   func() string

	mu        sync.Mutex
	ephemeral string
}

type ResolverOption func(*Resolver)

func WithLogger(logger logging.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithIDGenerator(fn func() string) ResolverOption {
	return func(r *Resolver) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func NewResolver(storage Storage, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		storage: storage,
		logger:  logging.Nop(),
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) Resolve(ctx context.Context) types.Session {
	id, err := r.resolvePersisted(ctx)
	if err == nil {
		return types.Session{ID: id}
	}
	r.logger.Warn("session_storage_unavailable", logging.F("error", err))
	return types.Session{ID: r.ephemeralID(), Ephemeral: true}
}

// Reset removes the persisted identifier so the next Resolve creates one.
func (r *Resolver) Reset(ctx context.Context) error {
	if r.storage == nil {
		return ErrStorageUnavailable
	}
	if err := r.storage.Delete(ctx, StorageKey); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}

func (r *Resolver) resolvePersisted(ctx context.Context) (string, error) {
	if r.storage == nil {
		return "", ErrStorageUnavailable
	}
	existing, ok, err := r.storage.Get(ctx, StorageKey)
	if err != nil {
		return "", fmt.Errorf("%w: read: %w", ErrStorageUnavailable, err)
	}
	if existing = strings.TrimSpace(existing); ok && existing != "" {
		return existing, nil
	}
	id := r.newID()
	if err := r.storage.Put(ctx, StorageKey, id); err != nil {
		return "", fmt.Errorf("%w: write: %w", ErrStorageUnavailable, err)
	}
	r.logger.Info("session_created", logging.F("session_id", id))
	return id, nil
}

func (r *Resolver) ephemeralID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ephemeral == "" {
		r.ephemeral = r.newID()
	}
	return r.ephemeral
}
