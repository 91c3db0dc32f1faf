package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// ApplicationRepository implements port.ApplicationRepository over sqlite
type ApplicationRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApplicationRepository creates a new application repository
func NewApplicationRepository(db *sql.DB, logger *zap.Logger) port.ApplicationRepository {
	return &ApplicationRepository{
		db:     db,
		logger: logger,
	}
}

const applicationColumns = `
	application_id, pet_id, user_id, rescue_id, status, stage,
	basic_info, living_situation, pet_experience, notes, rejection_reason,
	submitted_at, approved_at, rejected_at, withdrawn_at,
	version, created_at, updated_at`

// Create persists a new application together with its references
func (r *ApplicationRepository) Create(ctx context.Context, app *entity.Application) error {
	query := `
		INSERT INTO applications (` + applicationColumns + `
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	exec := getExecutor(ctx, r.db)
	_, err := exec.ExecContext(ctx, query,
		app.ApplicationID,
		app.PetID,
		app.UserID,
		app.RescueID,
		app.Status,
		app.Stage,
		rawOrEmpty(app.BasicInfo),
		rawOrEmpty(app.LivingSituation),
		rawOrEmpty(app.PetExperience),
		app.Notes,
		app.RejectionReason,
		app.SubmittedAt,
		app.ApprovedAt,
		app.RejectedAt,
		app.WithdrawnAt,
		app.Version,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create application", zap.Error(err))
		return fmt.Errorf("failed to create application: %w", err)
	}

	for i := range app.References {
		ref := &app.References[i]
		_, err := exec.ExecContext(ctx, `
			INSERT INTO application_references (
				reference_id, application_id, name, relationship, phone, email,
				status, contacted_at, notes
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			ref.ReferenceID,
			ref.ApplicationID,
			ref.Name,
			ref.Relationship,
			ref.Phone,
			ref.Email,
			ref.Status,
			ref.ContactedAt,
			ref.Notes,
		)
		if err != nil {
			r.logger.Error("Failed to create reference", zap.String("reference_id", ref.ReferenceID), zap.Error(err))
			return fmt.Errorf("failed to create reference: %w", err)
		}
	}

	return nil
}

// GetByID retrieves an application with its references
func (r *ApplicationRepository) GetByID(ctx context.Context, applicationID string) (*entity.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE application_id = ?`

	exec := getExecutor(ctx, r.db)
	app, err := scanApplication(exec.QueryRowContext(ctx, query, applicationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get application", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get application: %w", err)
	}

	refs, err := r.referencesFor(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	app.References = refs

	return app, nil
}

// UpdateState writes the application's workflow fields guarded by the
// version the caller read. Zero affected rows means a concurrent writer
// committed first.
func (r *ApplicationRepository) UpdateState(ctx context.Context, app *entity.Application, expectedVersion int64) error {
	query := `
		UPDATE applications
		SET status = ?, stage = ?, notes = ?, rejection_reason = ?,
			approved_at = ?, rejected_at = ?, withdrawn_at = ?,
			version = version + 1, updated_at = ?
		WHERE application_id = ? AND version = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		app.Status,
		app.Stage,
		app.Notes,
		app.RejectionReason,
		app.ApprovedAt,
		app.RejectedAt,
		app.WithdrawnAt,
		app.UpdatedAt,
		app.ApplicationID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update application state", zap.String("application_id", app.ApplicationID), zap.Error(err))
		return fmt.Errorf("failed to update application state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return port.ErrVersionConflict
	}

	app.Version = expectedVersion + 1
	return nil
}

// UpdateReference writes one reference's mutable sub-fields
func (r *ApplicationRepository) UpdateReference(ctx context.Context, ref *entity.Reference) error {
	query := `
		UPDATE application_references
		SET status = ?, contacted_at = ?, notes = ?
		WHERE reference_id = ? AND application_id = ?
	`

	result, err := getExecutor(ctx, r.db).ExecContext(ctx, query,
		ref.Status,
		ref.ContactedAt,
		ref.Notes,
		ref.ReferenceID,
		ref.ApplicationID,
	)
	if err != nil {
		r.logger.Error("Failed to update reference", zap.String("reference_id", ref.ReferenceID), zap.Error(err))
		return fmt.Errorf("failed to update reference: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reference %s not found on application %s", ref.ReferenceID, ref.ApplicationID)
	}
	return nil
}

// List retrieves applications matching the filter plus the total count
func (r *ApplicationRepository) List(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, int, error) {
	var conditions []string
	var args []interface{}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Stage != "" {
		conditions = append(conditions, "stage = ?")
		args = append(args, filter.Stage)
	}
	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	exec := getExecutor(ctx, r.db)

	var total int
	if err := exec.QueryRowContext(ctx, "SELECT COUNT(*) FROM applications"+where, args...).Scan(&total); err != nil {
		r.logger.Error("Failed to count applications", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to count applications: %w", err)
	}

	query := `SELECT ` + applicationColumns + ` FROM applications` + where +
		` ORDER BY submitted_at DESC LIMIT ? OFFSET ?`
	args = append(args, filter.Limit, filter.Offset)

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list applications", zap.Error(err))
		return nil, 0, fmt.Errorf("failed to list applications: %w", err)
	}
	defer rows.Close()

	var apps []*entity.Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan application: %w", err)
		}
		apps = append(apps, app)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for _, app := range apps {
		refs, err := r.referencesFor(ctx, app.ApplicationID)
		if err != nil {
			return nil, 0, err
		}
		app.References = refs
	}

	return apps, total, nil
}

// referencesFor loads all references for one application
func (r *ApplicationRepository) referencesFor(ctx context.Context, applicationID string) ([]entity.Reference, error) {
	rows, err := getExecutor(ctx, r.db).QueryContext(ctx, `
		SELECT reference_id, application_id, name, relationship, phone, email,
			status, contacted_at, notes
		FROM application_references
		WHERE application_id = ?
		ORDER BY reference_id
	`, applicationID)
	if err != nil {
		r.logger.Error("Failed to load references", zap.String("application_id", applicationID), zap.Error(err))
		return nil, fmt.Errorf("failed to load references: %w", err)
	}
	defer rows.Close()

	var refs []entity.Reference
	for rows.Next() {
		var ref entity.Reference
		var contactedAt sql.NullTime
		var relationship, phone, email, notes sql.NullString
		err := rows.Scan(
			&ref.ReferenceID,
			&ref.ApplicationID,
			&ref.Name,
			&relationship,
			&phone,
			&email,
			&ref.Status,
			&contactedAt,
			&notes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference: %w", err)
		}
		ref.Relationship = relationship.String
		ref.Phone = phone.String
		ref.Email = email.String
		ref.Notes = notes.String
		if contactedAt.Valid {
			ref.ContactedAt = &contactedAt.Time
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanApplication reads one applications row
func scanApplication(row rowScanner) (*entity.Application, error) {
	var app entity.Application
	var basicInfo, livingSituation, petExperience string
	var notes, rejectionReason sql.NullString
	var approvedAt, rejectedAt, withdrawnAt sql.NullTime

	err := row.Scan(
		&app.ApplicationID,
		&app.PetID,
		&app.UserID,
		&app.RescueID,
		&app.Status,
		&app.Stage,
		&basicInfo,
		&livingSituation,
		&petExperience,
		&notes,
		&rejectionReason,
		&app.SubmittedAt,
		&approvedAt,
		&rejectedAt,
		&withdrawnAt,
		&app.Version,
		&app.CreatedAt,
		&app.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	app.BasicInfo = []byte(basicInfo)
	app.LivingSituation = []byte(livingSituation)
	app.PetExperience = []byte(petExperience)
	app.Notes = notes.String
	app.RejectionReason = rejectionReason.String
	if approvedAt.Valid {
		app.ApprovedAt = &approvedAt.Time
	}
	if rejectedAt.Valid {
		app.RejectedAt = &rejectedAt.Time
	}
	if withdrawnAt.Valid {
		app.WithdrawnAt = &withdrawnAt.Time
	}
	return &app, nil
}

// rawOrEmpty stores an empty JSON object for absent payloads
func rawOrEmpty(raw []byte) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

// Verify interface compliance
var _ port.ApplicationRepository = (*ApplicationRepository)(nil)
