package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"PolyEdge/internal/domain/models"
	domrepo "PolyEdge/internal/domain/repository"
)

// FileStateStore keeps the ledger snapshot as one JSON document and the
// journal as JSON lines. Snapshots are replaced atomically via temp file + rename.
type FileStateStore struct {
	statePath   string
	journalPath string
	mu          sync.Mutex
}

var _ domrepo.StateStore = (*FileStateStore)(nil)

// NewFileStateStore creates the parent directories of both files.
func NewFileStateStore(statePath, journalPath string) (*FileStateStore, error) {
	for _, p := range []string{statePath, journalPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create state dir: %w", err)
		}
	}
	return &FileStateStore{statePath: statePath, journalPath: journalPath}, nil
}

// Load reads the snapshot. It returns domrepo.ErrStateNotFound when the file does not exist.
func (s *FileStateStore) Load() (*models.LedgerState, error) {
	data, err := os.ReadFile(s.statePath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, domrepo.ErrStateNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st models.LedgerState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", s.statePath, err)
	}
	return &st, nil
}

// Save writes the whole snapshot to a temp file in the same directory, fsyncs it and renames it over the old one.
func (s *FileStateStore) Save(st *models.LedgerState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.statePath), filepath.Base(s.statePath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, s.statePath); err != nil {
		cleanup()
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// AppendJournal appends rec as one JSON line.
func (s *FileStateStore) AppendJournal(rec models.JournalRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode journal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.journalPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("write journal: %w", err)
	}
	return f.Close()
}

// ReadJournal decodes every record in the journal file.
func (s *FileStateStore) ReadJournal() ([]models.JournalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.journalPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var out []models.JournalRecord
	dec := json.NewDecoder(f)
	for dec.More() {
		var rec models.JournalRecord
		if err := dec.Decode(&rec); err != nil {
			return out, fmt.Errorf("decode journal line %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	return out, nil
}
