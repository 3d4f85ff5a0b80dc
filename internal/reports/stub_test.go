package reports

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/odyssey-erp/odyssey-carbon/internal/emissions"
	"github.com/odyssey-erp/odyssey-carbon/internal/shared"
	"github.com/odyssey-erp/odyssey-carbon/internal/suppliers"
)

type memStore struct {
	mu        sync.Mutex
	reports   map[uuid.UUID]Report
	insertErr error
	loadErr   error
	now       func() time.Time
}

func newMemStore() *memStore {
	return &memStore{reports: map[uuid.UUID]Report{}, now: func() time.Time { return fixedNow }}
}

func (m *memStore) Insert(_ context.Context, rep Report) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return Report{}, m.insertErr
	}
	rep.CreatedAt = m.now()
	rep.UpdatedAt = rep.CreatedAt
	m.reports[rep.ID] = rep
	return rep, nil
}

func (m *memStore) Get(_ context.Context, owner, id uuid.UUID) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok || rep.UserID != owner {
		return Report{}, ErrReportNotFound
	}
	return rep, nil
}

func (m *memStore) Load(_ context.Context, id uuid.UUID) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return Report{}, m.loadErr
	}
	rep, ok := m.reports[id]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return rep, nil
}

func (m *memStore) List(_ context.Context, owner uuid.UUID, filter ListFilter) ([]Report, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Report
	for _, rep := range m.reports {
		if rep.UserID != owner {
			continue
		}
		if filter.ReportType != nil && rep.ReportType != *filter.ReportType {
			continue
		}
		if filter.Status != nil && rep.Status != *filter.Status {
			continue
		}
		out = append(out, rep)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
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

func (m *memStore) Recent(ctx context.Context, owner uuid.UUID, limit int) ([]Summary, error) {
	reps, _, err := m.List(ctx, owner, ListFilter{Page: 1, Limit: limit})
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(reps))
	for _, rep := range reps {
		out = append(out, Summary{ID: rep.ID, ReportType: rep.ReportType, Title: rep.Title, Status: rep.Status, CreatedAt: rep.CreatedAt})
	}
	return out, nil
}

func (m *memStore) MarkCompleted(_ context.Context, id uuid.UUID, payload Payload, meta Metadata) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok || rep.Status != StatusGenerating {
		return ErrInvalidStatus
	}
	rep.Status = StatusCompleted
	rep.Data = &payload
	rep.Metadata = meta
	rep.FileInfo.Size = defaultFileSize
	rep.UpdatedAt = m.now()
	m.reports[id] = rep
	return nil
}

func (m *memStore) MarkFailed(_ context.Context, id uuid.UUID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok || rep.Status != StatusGenerating {
		return ErrInvalidStatus
	}
	rep.Status = StatusFailed
	rep.Metadata.Error = reason
	rep.UpdatedAt = m.now()
	m.reports[id] = rep
	return nil
}

func (m *memStore) RecordDownload(_ context.Context, owner, id uuid.UUID, entry AuditEntry) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok || rep.UserID != owner || rep.Status != StatusCompleted {
		return Report{}, ErrReportNotReady
	}
	rep.FileInfo.DownloadCount++
	rep.AuditTrail = append(rep.AuditTrail, entry)
	m.reports[id] = rep
	return rep, nil
}

func (m *memStore) SaveSharing(_ context.Context, owner, id uuid.UUID, sharing Sharing, entry AuditEntry) (Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep, ok := m.reports[id]
	if !ok || rep.UserID != owner {
		return Report{}, ErrReportNotFound
	}
	rep.Sharing = sharing
	rep.AuditTrail = append(rep.AuditTrail, entry)
	m.reports[id] = rep
	return rep, nil
}

func (m *memStore) StaleGenerating(_ context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uuid.UUID
	for id, rep := range m.reports {
		if rep.Status == StatusGenerating && rep.UpdatedAt.Before(cutoff) && len(out) < limit {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *memStore) status(id uuid.UUID) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reports[id].Status
}

func (m *memStore) setUpdatedAt(id uuid.UUID, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rep := m.reports[id]
	rep.UpdatedAt = at
	m.reports[id] = rep
}

type stubQueue struct {
	mu  sync.Mutex
	ids []uuid.UUID
	err error
}

func (q *stubQueue) EnqueueReport(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, id)
	return nil
}

func (q *stubQueue) enqueued() []uuid.UUID {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uuid.UUID(nil), q.ids...)
}

type memKeys struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newMemKeys() *memKeys { return &memKeys{keys: map[string]struct{}{}} }

func (k *memKeys) CheckAndInsert(_ context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.keys[module+"|"+key]; ok {
		return shared.ErrIdempotencyConflict
	}
	k.keys[module+"|"+key] = struct{}{}
	return nil
}

func (k *memKeys) Delete(_ context.Context, key, module string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	delete(k.keys, module+"|"+key)
	return nil
}

type stubEmissions struct {
	records []emissions.Record
	filter  emissions.ReportFilter
	err     error
}

func (s *stubEmissions) ForReport(_ context.Context, owner uuid.UUID, filter emissions.ReportFilter) ([]emissions.Record, error) {
	s.filter = filter
	if s.err != nil {
		return nil, s.err
	}
	var out []emissions.Record
	for _, rec := range s.records {
		if rec.UserID == owner {
			out = append(out, rec)
		}
	}
	return out, nil
}

type stubSuppliers struct {
	active []suppliers.Supplier
}

func (s *stubSuppliers) ListActive(_ context.Context, owner uuid.UUID) ([]suppliers.Supplier, error) {
	var out []suppliers.Supplier
	for _, sup := range s.active {
		if sup.UserID == owner {
			out = append(out, sup)
		}
	}
	return out, nil
}

var errBoom = errors.New("boom")
