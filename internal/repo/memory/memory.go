package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hamed0406/uptimeguard/internal/domain"
	"github.com/hamed0406/uptimeguard/internal/repo"
)

var _ repo.Store = (*Store)(nil)

type summaryKey struct {
	target domain.TargetID
	date   string
}

// Store keeps everything in process. Reads return copies so callers can't
// mutate stored state behind the lock.
type Store struct {
	mu        sync.RWMutex
	targets   map[domain.TargetID]*domain.MonitoredTarget
	records   map[string]domain.CheckRecord
	summaries map[summaryKey]domain.DailySummary
	owners    map[string]domain.Owner

	// ListErr, when set, fails List. Used to simulate an unreachable store.
	ListErr error
}

func New() *Store {
	return &Store{
		targets:   make(map[domain.TargetID]*domain.MonitoredTarget),
		records:   make(map[string]domain.CheckRecord),
		summaries: make(map[summaryKey]domain.DailySummary),
		owners:    make(map[string]domain.Owner),
	}
}

// ---- Seeder ----

func (m *Store) AddTarget(ctx context.Context, t *domain.MonitoredTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == "" {
		t.ID = domain.TargetID(uuid.NewString())
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Status == "" {
		t.Status = domain.StatusUnknown
	}
	m.targets[t.ID] = cloneTarget(t)
	return nil
}

func (m *Store) PutOwner(ctx context.Context, o domain.Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.owners[o.ID] = o
	return nil
}

// RemoveTarget simulates an owner deleting a target.
func (m *Store) RemoveTarget(id domain.TargetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.targets, id)
}

// ---- TargetStore ----

func (m *Store) List(ctx context.Context) ([]*domain.MonitoredTarget, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.MonitoredTarget, 0, len(m.targets))
	for _, t := range m.targets {
		out = append(out, cloneTarget(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Store) Get(ctx context.Context, id domain.TargetID) (*domain.MonitoredTarget, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.targets[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTarget(t), nil
}

func (m *Store) UpdateStatus(ctx context.Context, p domain.StatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.targets[p.TargetID]
	if !ok {
		return repo.ErrNotFound
	}
	p.Apply(t)
	return nil
}

// ApplyStatusBatch applies every patch under one lock, so readers see all or none.
func (m *Store) ApplyStatusBatch(ctx context.Context, ps []domain.StatusPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if t, ok := m.targets[p.TargetID]; ok {
			p.Apply(t)
		}
	}
	return nil
}

// ---- RecordStore ----

func (m *Store) Append(ctx context.Context, r domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	m.records[r.ID] = r
	return nil
}

func (m *Store) Range(ctx context.Context, id domain.TargetID, from, to time.Time) ([]domain.CheckRecord, error) {
	return m.filter(func(r domain.CheckRecord) bool {
		return r.TargetID == id && !r.Timestamp.Before(from) && r.Timestamp.Before(to)
	}), nil
}

func (m *Store) ByDate(ctx context.Context, id domain.TargetID, date string) ([]domain.CheckRecord, error) {
	return m.filter(func(r domain.CheckRecord) bool {
		return r.TargetID == id && r.Date == date
	}), nil
}

func (m *Store) Delete(ctx context.Context, recs []domain.CheckRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range recs {
		delete(m.records, r.ID)
	}
	return nil
}

// RecordCount returns the number of stored check records.
func (m *Store) RecordCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Store) filter(keep func(domain.CheckRecord) bool) []domain.CheckRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.CheckRecord
	for _, r := range m.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// ---- SummaryStore ----

func (m *Store) HasSummary(ctx context.Context, id domain.TargetID, date string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.summaries[summaryKey{id, date}]
	return ok, nil
}

func (m *Store) PutSummary(ctx context.Context, s domain.DailySummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.summaries[summaryKey{s.TargetID, s.Date}] = s
	return nil
}

// Summaries returns every stored summary for id.
func (m *Store) Summaries(id domain.TargetID) []domain.DailySummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []domain.DailySummary
	for k, s := range m.summaries {
		if k.target == id {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// ---- OwnerStore ----

func (m *Store) GetOwner(ctx context.Context, ownerID string) (*domain.Owner, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.owners[ownerID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func cloneTarget(t *domain.MonitoredTarget) *domain.MonitoredTarget {
	cp := *t
	if t.Monitoring != nil {
		mc := *t.Monitoring
		mc.Weekdays = append([]int(nil), t.Monitoring.Weekdays...)
		mc.TimeWindows = append([]domain.TimeWindow(nil), t.Monitoring.TimeWindows...)
		if w := t.Monitoring.Alerts.TimeWindow; w != nil {
			wc := *w
			mc.Alerts.TimeWindow = &wc
		}
		cp.Monitoring = &mc
	}
	cp.Contacts.Emails = append([]string(nil), t.Contacts.Emails...)
	cp.Contacts.Phones = append([]string(nil), t.Contacts.Phones...)
	return &cp
}
