package compensacao

import (
	"sync"
	"time"

	"github.com/mmdatafocus/compensacao_backend/models"
)

// RecordSet is the in-memory result of the last successful fetch. A fetch
// replaces it whole; only a confirmed override edits records in place.
type RecordSet struct {
	mu        sync.RWMutex
	records   []models.ReconciliationRecord
	index     map[string]int
	dateRange *DateRange
	loadedAt  time.Time
}

func NewRecordSet() *RecordSet {
	return &RecordSet{index: map[string]int{}}
}

// Replace swaps in a new snapshot. Ids are only unique within one fetch
// window; on a clash the first (newest) record wins the index.
func (s *RecordSet) Replace(records []models.ReconciliationRecord, dateRange *DateRange, at time.Time) {
	index := make(map[string]int, len(records))
	for i, r := range records {
		if _, ok := index[r.ID]; !ok {
			index[r.ID] = i
		}
	}
	var dr *DateRange
	if dateRange != nil {
		copied := *dateRange
		dr = &copied
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	s.index = index
	s.dateRange = dr
	s.loadedAt = at
}

func (s *RecordSet) Snapshot() []models.ReconciliationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ReconciliationRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *RecordSet) Get(id string) (models.ReconciliationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return models.ReconciliationRecord{}, false
	}
	return s.records[i], true
}

// Update applies fn to the record with the given id and returns the result.
func (s *RecordSet) Update(id string, fn func(*models.ReconciliationRecord)) (models.ReconciliationRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return models.ReconciliationRecord{}, false
	}
	// copy on write: earlier snapshots keep the old values
	records := make([]models.ReconciliationRecord, len(s.records))
	copy(records, s.records)
	fn(&records[i])
	s.records = records
	return records[i], true
}

// DateRange is the window of the last successful fetch, nil for unbounded.
func (s *RecordSet) DateRange() *DateRange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dateRange == nil {
		return nil
	}
	dr := *s.dateRange
	return &dr
}

func (s *RecordSet) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

func (s *RecordSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
