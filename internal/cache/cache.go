// Package cache is the client-side read cache of query results, keyed by
// query identity. Values are stored encoded, so a reader always gets its own
// copy and can never mutate the snapshot other readers see.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/jw6ventures/volunteerportal/internal/metrics"
)

// ErrCacheMiss is returned when no snapshot is stored for a key.
var ErrCacheMiss = errors.New("cache: query not cached")

// Key identifies a query result: the query name plus its variables.
type Key struct {
	Name      string
	Variables map[string]string
}

// NewKey builds a key from alternating variable names and values.
func NewKey(name string, kv ...string) Key {
	k := Key{Name: name}
	if len(kv) > 0 {
		k.Variables = make(map[string]string, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			k.Variables[kv[i]] = kv[i+1]
		}
	}
	return k
}

// Identity is the canonical string form of the key; variable order does not
// matter.
func (k Key) Identity() string {
	if len(k.Variables) == 0 {
		return k.Name
	}
	names := make([]string, 0, len(k.Variables))
	for name := range k.Variables {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Name)
	b.WriteByte('(')
	for i, name := range names {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(name)
		b.WriteByte(':')
		b.WriteString(k.Variables[name])
	}
	b.WriteByte(')')
	return b.String()
}

func (k Key) String() string { return k.Identity() }

// Cache stores query snapshots.
type Cache interface {
	// ReadQuery decodes the snapshot for key into dst, or returns ErrCacheMiss.
	ReadQuery(ctx context.Context, key Key, dst any) error
	// WriteQuery replaces the snapshot for key wholesale.
	WriteQuery(ctx context.Context, key Key, data any) error
	// Evict drops the snapshot for key. Evicting a missing key is not an error.
	Evict(ctx context.Context, key Key) error
}

// Backend is the raw byte store behind a Cache.
type Backend interface {
	Get(ctx context.Context, id string) ([]byte, error)
	Set(ctx context.Context, id string, value []byte) error
	Delete(ctx context.Context, id string) error
}

// Store is the Cache implementation shared by all backends.
type Store struct {
	backend Backend
}

// New wraps a backend.
func New(backend Backend) *Store {
	return &Store{backend: backend}
}

func (s *Store) ReadQuery(ctx context.Context, key Key, dst any) error {
	raw, err := s.backend.Get(ctx, key.Identity())
	if err != nil {
		metrics.ObserveCacheRead(key.Name, false)
		return err
	}
	metrics.ObserveCacheRead(key.Name, true)
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (s *Store) WriteQuery(ctx context.Context, key Key, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.backend.Set(ctx, key.Identity(), raw)
}

func (s *Store) Evict(ctx context.Context, key Key) error {
	return s.backend.Delete(ctx, key.Identity())
}

// Close releases the backend when it holds resources.
func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
