package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// memStore backs the in-memory repository fakes. The transaction manager
// snapshots it on entry and restores it when the unit of work fails, so
// tests can assert that state and timeline commit or roll back together.
type memStore struct {
	mu     sync.Mutex
	apps   map[string]*entity.Application
	events []*entity.TimelineEvent
	visits []*entity.HomeVisit
	seq    int

	failAppend bool
	failUpdate bool
}

func newMemStore() *memStore {
	return &memStore{apps: make(map[string]*entity.Application)}
}

func cloneApp(app *entity.Application) *entity.Application {
	cp := *app
	cp.References = append([]entity.Reference(nil), app.References...)
	return &cp
}

func (s *memStore) snapshot() *memStore {
	cp := &memStore{
		apps:   make(map[string]*entity.Application, len(s.apps)),
		events: append([]*entity.TimelineEvent(nil), s.events...),
		visits: append([]*entity.HomeVisit(nil), s.visits...),
		seq:    s.seq,
	}
	for id, app := range s.apps {
		cp.apps[id] = cloneApp(app)
	}
	return cp
}

func (s *memStore) restore(snap *memStore) {
	s.apps = snap.apps
	s.events = snap.events
	s.visits = snap.visits
	s.seq = snap.seq
}

// nextTime hands out strictly increasing timestamps so event order is
// deterministic
func (s *memStore) nextTime() time.Time {
	s.seq++
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(s.seq) * time.Second)
}

type fakeTxManager struct {
	store *memStore
}

func (m *fakeTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	snap := m.store.snapshot()
	if err := fn(ctx); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

type fakeAppRepo struct {
	store *memStore
}

func (r *fakeAppRepo) Create(ctx context.Context, app *entity.Application) error {
	r.store.apps[app.ApplicationID] = cloneApp(app)
	return nil
}

func (r *fakeAppRepo) GetByID(ctx context.Context, applicationID string) (*entity.Application, error) {
	app, ok := r.store.apps[applicationID]
	if !ok {
		return nil, nil
	}
	return cloneApp(app), nil
}

func (r *fakeAppRepo) UpdateState(ctx context.Context, app *entity.Application, expectedVersion int64) error {
	if r.store.failUpdate {
		return fmt.Errorf("storage unavailable")
	}
	stored, ok := r.store.apps[app.ApplicationID]
	if !ok || stored.Version != expectedVersion {
		return port.ErrVersionConflict
	}
	updated := cloneApp(app)
	updated.References = stored.References
	updated.Version = expectedVersion + 1
	r.store.apps[app.ApplicationID] = updated
	app.Version = updated.Version
	return nil
}

func (r *fakeAppRepo) UpdateReference(ctx context.Context, ref *entity.Reference) error {
	app, ok := r.store.apps[ref.ApplicationID]
	if !ok {
		return fmt.Errorf("application not found")
	}
	for i := range app.References {
		if app.References[i].ReferenceID == ref.ReferenceID {
			app.References[i] = *ref
			return nil
		}
	}
	return fmt.Errorf("reference not found")
}

func (r *fakeAppRepo) List(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, int, error) {
	var matched []*entity.Application
	for _, app := range r.store.apps {
		if filter.Status != "" && app.Status != filter.Status {
			continue
		}
		if filter.Stage != "" && app.Stage != filter.Stage {
			continue
		}
		matched = append(matched, cloneApp(app))
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].SubmittedAt.After(matched[j].SubmittedAt)
	})
	total := len(matched)
	if filter.Offset < len(matched) {
		matched = matched[filter.Offset:]
	} else {
		matched = nil
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

type fakeTimelineRepo struct {
	store *memStore
}

func (r *fakeTimelineRepo) Append(ctx context.Context, event *entity.TimelineEvent) error {
	if r.store.failAppend {
		return fmt.Errorf("timeline storage unavailable")
	}
	if event.TimelineID == "" {
		event.TimelineID = fmt.Sprintf("tl-%d", len(r.store.events)+1)
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = r.store.nextTime()
	}
	r.store.events = append(r.store.events, event)
	return nil
}

func (r *fakeTimelineRepo) ListByApplication(ctx context.Context, applicationID string, q port.TimelineQuery) ([]*entity.TimelineEvent, error) {
	var matched []*entity.TimelineEvent
	for _, ev := range r.store.events {
		if ev.ApplicationID != applicationID {
			continue
		}
		if len(q.EventTypes) > 0 && !containsType(q.EventTypes, ev.EventType) {
			continue
		}
		matched = append(matched, ev)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

func (r *fakeTimelineRepo) CountByApplication(ctx context.Context, applicationID string, eventTypes []entity.EventType) (int, error) {
	count := 0
	for _, ev := range r.store.events {
		if ev.ApplicationID != applicationID {
			continue
		}
		if len(eventTypes) > 0 && !containsType(eventTypes, ev.EventType) {
			continue
		}
		count++
	}
	return count, nil
}

func (r *fakeTimelineRepo) ListByApplications(ctx context.Context, applicationIDs []string) ([]*entity.TimelineEvent, error) {
	var matched []*entity.TimelineEvent
	for _, ev := range r.store.events {
		for _, id := range applicationIDs {
			if ev.ApplicationID == id {
				matched = append(matched, ev)
				break
			}
		}
	}
	return matched, nil
}

func containsType(types []entity.EventType, t entity.EventType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

type fakeVisitRepo struct {
	store *memStore
}

func (r *fakeVisitRepo) Create(ctx context.Context, visit *entity.HomeVisit) error {
	r.store.visits = append(r.store.visits, visit)
	return nil
}

func (r *fakeVisitRepo) ListByApplication(ctx context.Context, applicationID string) ([]*entity.HomeVisit, error) {
	var matched []*entity.HomeVisit
	for _, v := range r.store.visits {
		if v.ApplicationID == applicationID {
			cp := *v
			matched = append(matched, &cp)
		}
	}
	return matched, nil
}

func (r *fakeVisitRepo) Update(ctx context.Context, visit *entity.HomeVisit) error {
	for i, v := range r.store.visits {
		if v.HomeVisitID == visit.HomeVisitID && v.ApplicationID == visit.ApplicationID {
			cp := *visit
			r.store.visits[i] = &cp
			return nil
		}
	}
	return fmt.Errorf("home visit not found")
}

type testLogger struct{}

func (testLogger) Info(msg string, keysAndValues ...interface{})  {}
func (testLogger) Error(msg string, keysAndValues ...interface{}) {}

// newTestWorkflowService wires a workflow service over a fresh in-memory
// store with a deterministic clock
func newTestWorkflowService() (*workflowServiceImpl, *memStore) {
	store := newMemStore()
	svc := NewWorkflowService(
		&fakeAppRepo{store},
		&fakeTimelineRepo{store},
		&fakeVisitRepo{store},
		&fakeTxManager{store},
		testLogger{},
	).(*workflowServiceImpl)
	svc.now = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func newTestTimelineService(store *memStore) TimelineService {
	return NewTimelineService(&fakeAppRepo{store}, &fakeTimelineRepo{store}, &fakeTxManager{store}, testLogger{})
}

// eventTypesFor lists the application's event types in append order
func eventTypesFor(store *memStore, applicationID string) []string {
	var types []string
	for _, ev := range store.events {
		if ev.ApplicationID == applicationID {
			types = append(types, ev.EventType.String())
		}
	}
	return types
}

func joinTypes(types []string) string {
	return strings.Join(types, ",")
}

func portFilter(status entity.Status, stage entity.Stage, limit, offset int) port.ApplicationFilter {
	return port.ApplicationFilter{Status: status, Stage: stage, Limit: limit, Offset: offset}
}
