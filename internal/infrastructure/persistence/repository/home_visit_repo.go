package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// HomeVisitRepository implements port.HomeVisitRepository over sqlite
type HomeVisitRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewHomeVisitRepository creates a new home visit repository
func NewHomeVisitRepository(db *sql.DB, logger *zap.Logger) port.HomeVisitRepository {
	return &HomeVisitRepository{
		db:     db,
		logger: logger,
	}
}

// Create persists a new home visit record
func (r *HomeVisitRepository) Create(ctx context.Context, visit *entity.HomeVisit) error {
	query := `
		INSERT INTO home_visits (
			home_visit_id, application_id, scheduled_date, staff_member_id,
			status, notes, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		visit.HomeVisitID,
		visit.ApplicationID,
		visit.ScheduledDate,
		visit.StaffMemberID,
		visit.Status,
		visit.Notes,
		visit.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create home visit", zap.String("application_id", visit.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to create home visit: %w", err)
	}
	return nil
}

// ListByApplication retrieves all home visits for an application
func (r *HomeVisitRepository) ListByApplication(ctx context.Context, applicationID string) ([]*entity.HomeVisit, error) {
	query := `
		SELECT home_visit_id, application_id, scheduled_date, staff_member_id,
			status, notes, created_at
		FROM home_visits
		WHERE application_id = ?
		ORDER BY scheduled_date ASC
	`

	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, query, applicationID)
	if err != nil {
		r.logger.Error("Failed to list home visits", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list home visits: %w", err)
	}
	defer rows.Close()

	var visits []*entity.HomeVisit
	for rows.Next() {
		var visit entity.HomeVisit
		var notes sql.NullString
		err := rows.Scan(
			&visit.HomeVisitID,
			&visit.ApplicationID,
			&visit.ScheduledDate,
			&visit.StaffMemberID,
			&visit.Status,
			&notes,
			&visit.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan home visit: %w", err)
		}
		visit.Notes = notes.String
		visits = append(visits, &visit)
	}
	return visits, rows.Err()
}

// Update writes a visit's schedule, status and notes
func (r *HomeVisitRepository) Update(ctx context.Context, visit *entity.HomeVisit) error {
	query := `
		UPDATE home_visits
		SET scheduled_date = ?, status = ?, notes = ?
		WHERE home_visit_id = ? AND application_id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		visit.ScheduledDate,
		visit.Status,
		visit.Notes,
		visit.HomeVisitID,
		visit.ApplicationID,
	)
	if err != nil {
		r.logger.Error("Failed to update home visit", zap.String("home_visit_id", visit.HomeVisitID), zap.Error(err))
		return fmt.Errorf("failed to update home visit: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check home visit update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("home visit %s not found for application %s", visit.HomeVisitID, visit.ApplicationID)
	}
	return nil
}

// Verify interface compliance
var _ port.HomeVisitRepository = (*HomeVisitRepository)(nil)
