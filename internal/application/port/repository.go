package port

import (
	"context"
	"errors"

	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// ErrVersionConflict is reported by ApplicationRepository.UpdateState when
// the row's version no longer matches the caller's snapshot, meaning a
// concurrent writer committed first.
var ErrVersionConflict = errors.New("application version conflict")

// ApplicationFilter narrows application listings
type ApplicationFilter struct {
	Status entity.Status
	Stage  entity.Stage
	Limit  int
	Offset int
}

// TimelineQuery narrows timeline reads for one application
type TimelineQuery struct {
	EventTypes []entity.EventType
	Limit      int
	Offset     int
}

// ApplicationRepository defines persistence operations for Application
type ApplicationRepository interface {
	// Create persists a new application together with its references
	Create(ctx context.Context, app *entity.Application) error

	// GetByID retrieves an application with its references, or (nil, nil)
	// when no such application exists
	GetByID(ctx context.Context, applicationID string) (*entity.Application, error)

	// UpdateState writes the application's workflow fields (status, stage,
	// terminal timestamps, rejection reason, notes) guarded by the version
	// the caller read; reports ErrVersionConflict on a stale version
	UpdateState(ctx context.Context, app *entity.Application, expectedVersion int64) error

	// UpdateReference writes one reference's mutable sub-fields
	UpdateReference(ctx context.Context, ref *entity.Reference) error

	// List retrieves applications matching the filter plus the total count
	List(ctx context.Context, filter ApplicationFilter) ([]*entity.Application, int, error)
}

// TimelineRepository defines append-only persistence for TimelineEvent.
// There is intentionally no update or delete operation: history is
// corrected by appending new events, never by editing old ones.
type TimelineRepository interface {
	// Append persists an event, assigning TimelineID and CreatedAt if unset
	Append(ctx context.Context, event *entity.TimelineEvent) error

	// ListByApplication returns one application's events ordered by
	// created_at ascending, optionally filtered and paginated
	ListByApplication(ctx context.Context, applicationID string, q TimelineQuery) ([]*entity.TimelineEvent, error)

	// CountByApplication returns the number of events matching the query's
	// event type filter, ignoring pagination
	CountByApplication(ctx context.Context, applicationID string, eventTypes []entity.EventType) (int, error)

	// ListByApplications returns events for many applications in one read,
	// ordered by created_at ascending within each application
	ListByApplications(ctx context.Context, applicationIDs []string) ([]*entity.TimelineEvent, error)
}

// HomeVisitRepository defines persistence operations for HomeVisit
type HomeVisitRepository interface {
	Create(ctx context.Context, visit *entity.HomeVisit) error
	ListByApplication(ctx context.Context, applicationID string) ([]*entity.HomeVisit, error)

	// Update writes a visit's schedule, status and notes
	Update(ctx context.Context, visit *entity.HomeVisit) error
}

// TransactionManager scopes a function to one database transaction. The
// state mutation and its paired timeline append always share a transaction
// so neither is observable without the other.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
