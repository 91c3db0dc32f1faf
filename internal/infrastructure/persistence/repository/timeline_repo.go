package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// TimelineRepository implements port.TimelineRepository over sqlite.
// The application_timeline table is append-only: this type issues INSERT
// and SELECT statements and nothing else.
type TimelineRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewTimelineRepository creates a new timeline repository
func NewTimelineRepository(db *sql.DB, logger *zap.Logger) port.TimelineRepository {
	return &TimelineRepository{
		db:     db,
		logger: logger,
	}
}

const timelineColumns = `
	timeline_id, application_id, event_type, title, description, metadata,
	created_by, created_by_system, previous_stage, new_stage,
	previous_status, new_status, created_at`

// Append persists an event, assigning TimelineID and CreatedAt when unset.
// The primary key on timeline_id means a reused id fails the insert rather
// than overwriting the prior record.
func (r *TimelineRepository) Append(ctx context.Context, event *entity.TimelineEvent) error {
	if event.TimelineID == "" {
		event.TimelineID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal event metadata: %w", err)
	}

	query := `
		INSERT INTO application_timeline (` + timelineColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = getExecutor(ctx, r.db).ExecContext(ctx, query,
		event.TimelineID,
		event.ApplicationID,
		event.EventType,
		event.Title,
		event.Description,
		string(metadata),
		event.CreatedBy,
		event.CreatedBySystem,
		event.PreviousStage,
		event.NewStage,
		event.PreviousStatus,
		event.NewStatus,
		event.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to append timeline event",
			zap.String("application_id", event.ApplicationID),
			zap.String("event_type", event.EventType.String()),
			zap.Error(err))
		return fmt.Errorf("failed to append timeline event: %w", err)
	}

	return nil
}

// ListByApplication returns one application's events ordered by created_at
// ascending. Ties on created_at fall back to insertion order via rowid.
func (r *TimelineRepository) ListByApplication(ctx context.Context, applicationID string, q port.TimelineQuery) ([]*entity.TimelineEvent, error) {
	query := `SELECT ` + timelineColumns + ` FROM application_timeline WHERE application_id = ?`
	args := []interface{}{applicationID}

	if len(q.EventTypes) > 0 {
		query += ` AND event_type IN (` + placeholders(len(q.EventTypes)) + `)`
		for _, t := range q.EventTypes {
			args = append(args, t)
		}
	}
	query += ` ORDER BY created_at ASC, rowid ASC`
	if q.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, q.Limit, q.Offset)
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list timeline events", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list timeline events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// CountByApplication returns the number of events matching the type filter
func (r *TimelineRepository) CountByApplication(ctx context.Context, applicationID string, eventTypes []entity.EventType) (int, error) {
	query := `SELECT COUNT(*) FROM application_timeline WHERE application_id = ?`
	args := []interface{}{applicationID}

	if len(eventTypes) > 0 {
		query += ` AND event_type IN (` + placeholders(len(eventTypes)) + `)`
		for _, t := range eventTypes {
			args = append(args, t)
		}
	}

	var count int
	if err := getExecutor(ctx, r.db).QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count timeline events", zap.String("application_id", applicationID), zap.Error(err))
		return 0, fmt.Errorf("failed to count timeline events: %w", err)
	}
	return count, nil
}

// ListByApplications returns events for many applications in one read
func (r *TimelineRepository) ListByApplications(ctx context.Context, applicationIDs []string) ([]*entity.TimelineEvent, error) {
	if len(applicationIDs) == 0 {
		return nil, nil
	}

	query := `SELECT ` + timelineColumns + ` FROM application_timeline
		WHERE application_id IN (` + placeholders(len(applicationIDs)) + `)
		ORDER BY application_id, created_at ASC, rowid ASC`
	args := make([]interface{}, len(applicationIDs))
	for i, id := range applicationIDs {
		args[i] = id
	}

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list timeline events in bulk", zap.Error(err))
		return nil, fmt.Errorf("failed to list timeline events in bulk: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// scanEvents reads timeline rows into entities
func scanEvents(rows *sql.Rows) ([]*entity.TimelineEvent, error) {
	var events []*entity.TimelineEvent
	for rows.Next() {
		var ev entity.TimelineEvent
		var description, metadata sql.NullString
		var createdBy sql.NullString
		var prevStage, newStage, prevStatus, newStatus sql.NullString

		err := rows.Scan(
			&ev.TimelineID,
			&ev.ApplicationID,
			&ev.EventType,
			&ev.Title,
			&description,
			&metadata,
			&createdBy,
			&ev.CreatedBySystem,
			&prevStage,
			&newStage,
			&prevStatus,
			&newStatus,
			&ev.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan timeline event: %w", err)
		}

		ev.Description = description.String
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &ev.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event metadata: %w", err)
			}
		}
		if createdBy.Valid {
			ev.CreatedBy = &createdBy.String
		}
		if prevStage.Valid {
			stage := entity.Stage(prevStage.String)
			ev.PreviousStage = &stage
		}
		if newStage.Valid {
			stage := entity.Stage(newStage.String)
			ev.NewStage = &stage
		}
		if prevStatus.Valid {
			status := entity.Status(prevStatus.String)
			ev.PreviousStatus = &status
		}
		if newStatus.Valid {
			status := entity.Status(newStatus.String)
			ev.NewStatus = &status
		}

		events = append(events, &ev)
	}
	return events, rows.Err()
}

// placeholders builds a "?, ?, ?" list of the given length
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// Verify interface compliance
var _ port.TimelineRepository = (*TimelineRepository)(nil)
