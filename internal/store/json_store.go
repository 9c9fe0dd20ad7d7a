package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// ErrCorruptState marks a state file that exists but cannot be decoded.
var ErrCorruptState = errors.New("corrupt state file")

// stateDocument is the on-disk layout of a JSONStore.
type stateDocument struct {
	ProcessedIDs []string  `json:"processed_ids"`
	LastUpdated  time.Time `json:"last_updated"`
}

// JSONStore keeps processed identifiers in a single JSON document. Every Add
// rereads the whole document and replaces the file atomically.
type JSONStore struct {
	path string
	now  func() time.Time

	mu sync.Mutex
}

// NewJSONStore returns a store backed by the file at path. The file and its
// directory are created on the first Add.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path, now: time.Now}
}

// Path returns the location of the state file.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the state file. A missing or empty file is an empty set.
func (s *JSONStore) Load(ctx context.Context) (IDSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return nil, err
	}
	return NewIDSet(doc.ProcessedIDs...), nil
}

// Add appends id to the state file. A corrupt file is moved aside with a
// ".corrupt" suffix and replaced by a fresh document.
func (s *JSONStore) Add(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if errors.Is(err, ErrCorruptState) {
		if err := os.Rename(s.path, s.path+".corrupt"); err != nil {
			return fmt.Errorf("moving corrupt state file aside: %w", err)
		}
		doc = stateDocument{}
	} else if err != nil {
		return err
	}

	if slices.Contains(doc.ProcessedIDs, id) {
		return nil
	}

	doc.ProcessedIDs = append(doc.ProcessedIDs, id)
	doc.LastUpdated = s.now().UTC()

	return s.write(doc)
}

// LastUpdated returns the timestamp written by the latest Add, or the zero
// time for a missing file.
func (s *JSONStore) LastUpdated(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return time.Time{}, err
	}
	return doc.LastUpdated, nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) read() (stateDocument, error) {
	var doc stateDocument

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return doc, fmt.Errorf("reading state file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, &doc); err != nil {
		return stateDocument{}, fmt.Errorf("%w %s: %v", ErrCorruptState, s.path, err)
	}
	return doc, nil
}

// write replaces the state file through a temp file in the same directory.
func (s *JSONStore) write(doc stateDocument) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
