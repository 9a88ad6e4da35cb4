// Package viewcache keeps the last synchronized view per API endpoint so the console can
// show something when the management service is unreachable.
package viewcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"mcpdesk/internal/domain"
)

var (
	ErrStoreClosed     = errors.New("view cache is closed")
	ErrMissingEndpoint = errors.New("endpoint is required")
)

// ServerPageRecord is a cached server page together with the query that produced it.
type ServerPageRecord struct {
	Query     domain.ServerQuery `json:"query"`
	Servers   []domain.Server    `json:"servers"`
	Total     int                `json:"total"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// ToolsRecord is a cached tool collection.
type ToolsRecord struct {
	Filter    domain.ToolFilter `json:"filter"`
	Tools     []domain.Tool     `json:"tools"`
	FetchedAt time.Time         `json:"fetchedAt"`
}

type Store struct {
	mu     sync.RWMutex
	db     *bolt.DB
	path   string
	closed bool
}

func OpenStore(path string) (*Store, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return nil, fmt.Errorf("view cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(trimmed), 0o755); err != nil {
		return nil, fmt.Errorf("ensure view cache dir: %w", err)
	}
	db, err := bolt.Open(trimmed, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open view cache: %w", err)
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, path: trimmed}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) SaveServers(endpoint string, record ServerPageRecord) error {
	return s.put(endpoint, serversKey, record)
}

func (s *Store) LoadServers(endpoint string) (ServerPageRecord, bool, error) {
	var record ServerPageRecord
	ok, err := s.get(endpoint, serversKey, &record)
	return record, ok, err
}

func (s *Store) SaveTools(endpoint string, record ToolsRecord) error {
	return s.put(endpoint, toolsKey, record)
}

func (s *Store) LoadTools(endpoint string) (ToolsRecord, bool, error) {
	var record ToolsRecord
	ok, err := s.get(endpoint, toolsKey, &record)
	return record, ok, err
}

// SaveQuery records the last issued query, which may differ from the one of the cached page.
func (s *Store) SaveQuery(endpoint string, q domain.ServerQuery) error {
	return s.put(endpoint, queryKey, q)
}

func (s *Store) LoadQuery(endpoint string) (domain.ServerQuery, bool, error) {
	var q domain.ServerQuery
	ok, err := s.get(endpoint, queryKey, &q)
	return q, ok, err
}

// Endpoints lists every endpoint with cached data, sorted.
func (s *Store) Endpoints() ([]string, error) {
	var out []string
	err := s.view(func(tx *bolt.Tx) error {
		return endpointsBucket(tx).ForEach(func(key, value []byte) error {
			if value == nil {
				out = append(out, string(key))
			}
			return nil
		})
	})
	sort.Strings(out)
	return out, err
}

// UpdatedAt returns when endpoint was last written.
func (s *Store) UpdatedAt(endpoint string) (time.Time, bool, error) {
	var ts time.Time
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		bucket := endpointsBucket(tx).Bucket([]byte(normalizeEndpoint(endpoint)))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(updatedAtKey))
		if len(raw) == 0 {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, string(raw))
		if err != nil {
			return fmt.Errorf("parse updated at: %w", err)
		}
		ts, found = parsed, true
		return nil
	})
	return ts, found, err
}

// Clear drops everything cached for endpoint.
func (s *Store) Clear(endpoint string) error {
	key := normalizeEndpoint(endpoint)
	if key == "" {
		return ErrMissingEndpoint
	}
	return s.update(func(tx *bolt.Tx) error {
		endpoints := endpointsBucket(tx)
		if endpoints.Bucket([]byte(key)) == nil {
			return nil
		}
		return endpoints.DeleteBucket([]byte(key))
	})
}

func (s *Store) put(endpoint, key string, value any) error {
	name := normalizeEndpoint(endpoint)
	if name == "" {
		return ErrMissingEndpoint
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := endpointsBucket(tx).CreateBucketIfNotExists([]byte(name))
		if err != nil {
			return fmt.Errorf("create endpoint bucket: %w", err)
		}
		if err := bucket.Put([]byte(key), data); err != nil {
			return fmt.Errorf("write %s: %w", key, err)
		}
		return bucket.Put([]byte(updatedAtKey), []byte(time.Now().UTC().Format(time.RFC3339Nano)))
	})
}

func (s *Store) get(endpoint, key string, out any) (bool, error) {
	name := normalizeEndpoint(endpoint)
	if name == "" {
		return false, ErrMissingEndpoint
	}
	var found bool
	err := s.view(func(tx *bolt.Tx) error {
		bucket := endpointsBucket(tx).Bucket([]byte(name))
		if bucket == nil {
			return nil
		}
		raw := bucket.Get([]byte(key))
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode %s: %w", key, err)
		}
		found = true
		return nil
	})
	return found, err
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return s.db.Update(fn)
}

// endpointsBucket relies on ensureSchema having created the bucket.
func endpointsBucket(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket([]byte(rootBucketName)).Bucket([]byte(endpointsBucketName))
}

func normalizeEndpoint(endpoint string) string {
	return strings.TrimRight(strings.TrimSpace(endpoint), "/")
}
