package store

import (
	"context"
	"errors"
	"strings"
)

const (
	BackendFile  = "file"
	BackendBbolt = "bbolt"
)

var ErrKeyRequired = errors.New("storage key is required")

// KV is the durable client storage. It holds a handful of string values that
// must survive restarts, most importantly the session identifier.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Backend() string
	Close() error
}

type Paths struct {
	DBPath   string
	FilePath string
}

func Open(backend string, paths Paths) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case BackendFile:
		return NewFileKV(paths.FilePath)
	case BackendBbolt, "":
		return NewBboltKV(paths.DBPath)
	default:
		return nil, errors.New("unknown storage backend: " + backend)
	}
}

func normalizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrKeyRequired
	}
	return key, nil
}
