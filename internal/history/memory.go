package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// MemoryStore implements Store with an in-memory map plus an insertion-order
// index. An optional JSON snapshot file makes records survive restarts;
// empty path disables persistence.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string // record IDs, oldest first

	snapshotPath string
	saveMu       sync.Mutex
}

func NewMemoryStore(snapshotPath string) (*MemoryStore, error) {
	s := &MemoryStore{
		records:      make(map[string]*Record),
		snapshotPath: snapshotPath,
	}
	if snapshotPath != "" {
		if err := s.load(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *MemoryStore) Add(_ context.Context, record *Record) error {
	s.mu.Lock()
	clone := *record
	s.records[record.ID] = &clone
	s.order = append(s.order, record.ID)
	s.mu.Unlock()

	return s.save()
}

func (s *MemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

// List returns one page of matching records, newest first, plus the total
// match count for pagination.
func (s *MemoryStore) List(_ context.Context, filter Filter) ([]Record, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []Record
	for i := len(s.order) - 1; i >= 0; i-- {
		record := s.records[s.order[i]]
		if record == nil || !matchesFilter(record, filter) {
			continue
		}
		matches = append(matches, *record)
	}

	total := len(matches)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage < 1 {
		perPage = 20
	}

	start := (page - 1) * perPage
	if start >= total {
		return []Record{}, total, nil
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

func matchesFilter(record *Record, filter Filter) bool {
	if filter.CourseID != "" && record.CourseID != filter.CourseID {
		return false
	}
	if filter.Subject != "" && record.Subject != filter.Subject {
		return false
	}
	if filter.Topic != "" && record.Topic != filter.Topic {
		return false
	}
	if !filter.General && filter.Lesson != "" && record.Lesson != filter.Lesson {
		return false
	}
	return true
}

type snapshot struct {
	Records []Record `json:"records"`
}

func (s *MemoryStore) load() error {
	data, err := os.ReadFile(s.snapshotPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return err
	}
	for i := range snap.Records {
		record := snap.Records[i]
		s.records[record.ID] = &record
		s.order = append(s.order, record.ID)
	}
	return nil
}

func (s *MemoryStore) save() error {
	if s.snapshotPath == "" {
		return nil
	}

	// Build and write under one lock so a snapshot can never be overwritten
	// by an older one built concurrently.
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.RLock()
	snap := snapshot{Records: make([]Record, 0, len(s.order))}
	for _, id := range s.order {
		if record := s.records[id]; record != nil {
			snap.Records = append(snap.Records, *record)
		}
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.snapshotPath), 0750); err != nil {
		return err
	}
	return os.WriteFile(s.snapshotPath, data, 0600)
}
