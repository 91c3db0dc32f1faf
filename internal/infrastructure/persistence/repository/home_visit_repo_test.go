package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

var homeVisitRows = []string{
	"home_visit_id", "application_id", "scheduled_date", "staff_member_id",
	"status", "notes", "created_at",
}

func TestHomeVisitRepository_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHomeVisitRepository(db, zap.NewNop())

	scheduled := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	visit := &entity.HomeVisit{
		HomeVisitID:   "visit-1",
		ApplicationID: "app-1",
		ScheduledDate: scheduled,
		StaffMemberID: "staff-3",
		Status:        entity.HomeVisitStatusScheduled,
		Notes:         "morning slot",
		CreatedAt:     scheduled.Add(-24 * time.Hour),
	}

	mock.ExpectExec("INSERT INTO home_visits").
		WithArgs("visit-1", "app-1", scheduled, "staff-3",
			entity.HomeVisitStatusScheduled, "morning slot", visit.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.Create(context.Background(), visit))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHomeVisitRepository_ListByApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHomeVisitRepository(db, zap.NewNop())

	scheduled := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("SELECT (.+) FROM home_visits WHERE application_id = \\? ORDER BY scheduled_date ASC").
		WithArgs("app-1").
		WillReturnRows(sqlmock.NewRows(homeVisitRows).
			AddRow("visit-1", "app-1", scheduled, "staff-3", "scheduled", nil, scheduled.Add(-24*time.Hour)))

	visits, err := repo.ListByApplication(context.Background(), "app-1")
	require.NoError(t, err)
	require.Len(t, visits, 1)
	assert.Equal(t, "visit-1", visits[0].HomeVisitID)
	assert.Equal(t, entity.HomeVisitStatusScheduled, visits[0].Status)
	assert.Empty(t, visits[0].Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHomeVisitRepository_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHomeVisitRepository(db, zap.NewNop())

	scheduled := time.Date(2026, 3, 21, 10, 0, 0, 0, time.UTC)
	visit := &entity.HomeVisit{
		HomeVisitID:   "visit-1",
		ApplicationID: "app-1",
		ScheduledDate: scheduled,
		Status:        entity.HomeVisitStatusCompleted,
		Notes:         "yard fenced",
	}

	mock.ExpectExec("UPDATE home_visits SET scheduled_date = \\?, status = \\?, notes = \\? WHERE home_visit_id = \\? AND application_id = \\?").
		WithArgs(scheduled, entity.HomeVisitStatusCompleted, "yard fenced", "visit-1", "app-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Update(context.Background(), visit))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHomeVisitRepository_Update_MissingRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewHomeVisitRepository(db, zap.NewNop())

	visit := &entity.HomeVisit{
		HomeVisitID:   "visit-missing",
		ApplicationID: "app-1",
		Status:        entity.HomeVisitStatusCancelled,
	}

	mock.ExpectExec("UPDATE home_visits").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = repo.Update(context.Background(), visit)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
