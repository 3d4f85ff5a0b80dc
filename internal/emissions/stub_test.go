package emissions

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memStore struct {
	mu      sync.Mutex
	records map[uuid.UUID]Record
	updates int
}

func newMemStore() *memStore {
	return &memStore{records: map[uuid.UUID]Record{}}
}

func (m *memStore) Insert(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return rec, nil
}

func (m *memStore) InsertMany(ctx context.Context, recs []Record) ([]Record, error) {
	out := make([]Record, 0, len(recs))
	for _, rec := range recs {
		saved, _ := m.Insert(ctx, rec)
		out = append(out, saved)
	}
	return out, nil
}

func (m *memStore) Get(_ context.Context, owner, id uuid.UUID) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.UserID != owner {
		return Record{}, ErrRecordNotFound
	}
	return rec, nil
}

func (m *memStore) List(_ context.Context, owner uuid.UUID, filter ListFilter) ([]Record, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.UserID != owner {
			continue
		}
		if filter.Scope != nil && rec.Scope != *filter.Scope {
			continue
		}
		if filter.Year != nil && rec.ReportingPeriod.Year != *filter.Year {
			continue
		}
		if filter.Status != nil && rec.Status != *filter.Status {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportingPeriod.Year != out[j].ReportingPeriod.Year {
			return out[i].ReportingPeriod.Year > out[j].ReportingPeriod.Year
		}
		return out[i].Scope < out[j].Scope
	})
	total := len(out)
	start := (filter.Page - 1) * filter.Limit
	if start > total {
		start = total
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return out[start:end], total, nil
}

func (m *memStore) Update(_ context.Context, rec Record) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.records[rec.ID]
	if !ok || current.UserID != rec.UserID {
		return Record{}, ErrRecordNotFound
	}
	m.records[rec.ID] = rec
	m.updates++
	return rec, nil
}

func (m *memStore) Delete(_ context.Context, owner, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	if !ok || rec.UserID != owner {
		return ErrRecordNotFound
	}
	delete(m.records, id)
	return nil
}

func (m *memStore) SummaryByScope(_ context.Context, owner uuid.UUID, year int) ([]ScopeSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byScope := map[Scope]*ScopeSummary{}
	for _, rec := range m.records {
		if rec.UserID != owner || rec.ReportingPeriod.Year != year {
			continue
		}
		s, ok := byScope[rec.Scope]
		if !ok {
			s = &ScopeSummary{Scope: rec.Scope}
			byScope[rec.Scope] = s
		}
		s.TotalCO2e += rec.TotalCO2e
		s.EntryCount += len(rec.Entries)
	}
	out := []ScopeSummary{}
	for _, scope := range []Scope{Scope1, Scope2, Scope3} {
		if s, ok := byScope[scope]; ok {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) MonthlyTotals(context.Context, uuid.UUID, int) ([]MonthlyTotal, error) {
	return []MonthlyTotal{}, nil
}

type countingInvalidator struct {
	bumps map[uuid.UUID]int
}

func (c *countingInvalidator) Bump(_ context.Context, owner uuid.UUID) error {
	if c.bumps == nil {
		c.bumps = map[uuid.UUID]int{}
	}
	c.bumps[owner]++
	return nil
}
