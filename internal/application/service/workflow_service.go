package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
	"github.com/pawshome/adoption-workflow/internal/domain/workflow"
	"github.com/pawshome/adoption-workflow/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// CreateApplicationInput carries a new submission into the workflow
type CreateApplicationInput struct {
	PetID           string
	UserID          string
	RescueID        string
	BasicInfo       json.RawMessage
	LivingSituation json.RawMessage
	PetExperience   json.RawMessage
	References      []entity.Reference
}

// ScheduleHomeVisitInput carries a home visit booking request
type ScheduleHomeVisitInput struct {
	ScheduledDate string
	StaffMemberID string
	Notes         string
}

// UpdateHomeVisitInput carries a status change for a scheduled visit.
// ScheduledDate is required only when rescheduling.
type UpdateHomeVisitInput struct {
	Status        entity.HomeVisitStatus
	ScheduledDate string
	Notes         string
}

// WorkflowService is the sole authority over an application's status and
// stage. Every successful mutation appends at least one timeline event in
// the same transaction, so state and history cannot disagree.
type WorkflowService interface {
	CreateApplication(ctx context.Context, input CreateApplicationInput) (*entity.Application, error)
	GetApplication(ctx context.Context, applicationID string) (*entity.Application, error)
	ListApplications(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, int, error)

	ChangeStage(ctx context.Context, applicationID string, newStage entity.Stage, actor entity.Author, notes string) (*entity.Application, error)
	Approve(ctx context.Context, applicationID string, actor entity.Author, notes string) (*entity.Application, error)
	Reject(ctx context.Context, applicationID string, actor entity.Author, reason, notes string) (*entity.Application, error)
	Withdraw(ctx context.Context, applicationID string, actor entity.Author, reason string) (*entity.Application, error)
	Reopen(ctx context.Context, applicationID string, actor entity.Author, notes string) (*entity.Application, error)

	UpdateReferenceStatus(ctx context.Context, applicationID, referenceID string, newStatus entity.ReferenceStatus, actor entity.Author, notes string) (*entity.Reference, error)
	ScheduleHomeVisit(ctx context.Context, applicationID string, input ScheduleHomeVisitInput) (*entity.HomeVisit, error)
	UpdateHomeVisitStatus(ctx context.Context, applicationID, homeVisitID string, input UpdateHomeVisitInput, actor entity.Author) (*entity.HomeVisit, error)
	AddNote(ctx context.Context, applicationID, noteType, content string, actor entity.Author) (*entity.TimelineEvent, error)
}

// noteTypes accepted on timeline notes
var noteTypes = map[string]bool{
	"general":    true,
	"interview":  true,
	"home_visit": true,
	"reference":  true,
}

type workflowServiceImpl struct {
	appRepo   port.ApplicationRepository
	timeline  port.TimelineRepository
	visitRepo port.HomeVisitRepository
	txManager port.TransactionManager
	statuses  *workflow.Builder
	logger    Logger
	now       func() time.Time
}

// NewWorkflowService creates a new WorkflowService
func NewWorkflowService(
	appRepo port.ApplicationRepository,
	timeline port.TimelineRepository,
	visitRepo port.HomeVisitRepository,
	txManager port.TransactionManager,
	logger Logger,
) WorkflowService {
	return &workflowServiceImpl{
		appRepo:   appRepo,
		timeline:  timeline,
		visitRepo: visitRepo,
		txManager: txManager,
		statuses:  workflow.NewStatusMachine(),
		logger:    logger,
		now:       time.Now,
	}
}

// CreateApplication registers a new submission: status=pending,
// stage=initial_review, paired with a status_update event marking intake.
func (s *workflowServiceImpl) CreateApplication(ctx context.Context, input CreateApplicationInput) (*entity.Application, error) {
	ve := &ValidationError{}
	if input.PetID == "" {
		ve.Add("pet_id", "pet_id is required")
	}
	if input.UserID == "" {
		ve.Add("user_id", "user_id is required")
	}
	if input.RescueID == "" {
		ve.Add("rescue_id", "rescue_id is required")
	}
	for i, ref := range input.References {
		if ref.Name == "" {
			ve.Add(fmt.Sprintf("references[%d].name", i), "reference name is required")
		}
		if ref.Email != "" {
			if err := utils.ValidateEmail(ref.Email); err != nil {
				ve.Add(fmt.Sprintf("references[%d].email", i), err.Error())
			}
		}
		if ref.Phone != "" {
			if err := utils.ValidatePhone(ref.Phone); err != nil {
				ve.Add(fmt.Sprintf("references[%d].phone", i), err.Error())
			}
		}
	}
	if len(ve.Fields) > 0 {
		return nil, ve
	}

	now := s.now()
	app := &entity.Application{
		ApplicationID:   uuid.NewString(),
		PetID:           input.PetID,
		UserID:          input.UserID,
		RescueID:        input.RescueID,
		Status:          entity.StatusPending,
		Stage:           entity.StageInitialReview,
		BasicInfo:       input.BasicInfo,
		LivingSituation: input.LivingSituation,
		PetExperience:   input.PetExperience,
		References:      input.References,
		SubmittedAt:     now,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	for i := range app.References {
		if app.References[i].ReferenceID == "" {
			app.References[i].ReferenceID = uuid.NewString()
		}
		app.References[i].ApplicationID = app.ApplicationID
		if app.References[i].Status == "" {
			app.References[i].Status = entity.ReferenceStatusPending
		}
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := s.appRepo.Create(txCtx, app); err != nil {
			return err
		}
		return s.timeline.Append(txCtx, entity.NewSubmittedEvent(app.ApplicationID, entity.SystemAuthor()))
	})
	if err != nil {
		s.logger.Error("Failed to create application", "error", err, "pet_id", input.PetID)
		return nil, err
	}

	s.logger.Info("Application created", "application_id", app.ApplicationID, "pet_id", app.PetID)
	return app, nil
}

// GetApplication retrieves one application by ID
func (s *workflowServiceImpl) GetApplication(ctx context.Context, applicationID string) (*entity.Application, error) {
	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		s.logger.Error("Failed to get application", "error", err, "application_id", applicationID)
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}

// ListApplications retrieves applications matching the filter
func (s *workflowServiceImpl) ListApplications(ctx context.Context, filter port.ApplicationFilter) ([]*entity.Application, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, NewValidationError("status", "unknown status filter")
	}
	if filter.Stage != "" && !filter.Stage.IsValid() {
		return nil, 0, NewValidationError("stage", "unknown stage filter")
	}
	apps, total, err := s.appRepo.List(ctx, filter)
	if err != nil {
		s.logger.Error("Failed to list applications", "error", err)
		return nil, 0, err
	}
	return apps, total, nil
}

// ChangeStage moves the application to a new review stage. Stage jumps are
// not policy-restricted; they are recorded with explicit before/after
// values. A stage move on a pending application marks the start of review,
// firing the pending -> under_review transition alongside the stage change.
// Terminal applications reject any further stage movement.
func (s *workflowServiceImpl) ChangeStage(ctx context.Context, applicationID string, newStage entity.Stage, actor entity.Author, notes string) (*entity.Application, error) {
	if !newStage.IsValid() {
		return nil, NewValidationError("stage", "unknown stage")
	}

	var updated *entity.Application
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return workflow.ErrTerminalStatus
		}

		previousStatus := app.Status
		previousStage := app.Stage
		version := app.Version
		if app.Status == entity.StatusPending {
			machine := s.statuses.Build(app.Status)
			if err := machine.Fire(workflow.TriggerStartReview); err != nil {
				return err
			}
			app.Status = machine.State()
		}
		app.Stage = newStage
		app.UpdatedAt = s.now()
		if err := s.appRepo.UpdateState(txCtx, app, version); err != nil {
			return err
		}

		if app.Status != previousStatus {
			if err := s.timeline.Append(txCtx, entity.NewStatusUpdateEvent(applicationID, previousStatus, app.Status, actor)); err != nil {
				return err
			}
		}
		if err := s.timeline.Append(txCtx, entity.NewStageChangeEvent(applicationID, previousStage, newStage, actor, notes)); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to change stage", "error", err, "application_id", applicationID, "stage", newStage)
		return nil, err
	}

	s.logger.Info("Stage changed", "application_id", applicationID, "stage", newStage)
	return updated, nil
}

// Approve resolves the application positively: status=approved,
// stage=completed, approved_at stamped once.
func (s *workflowServiceImpl) Approve(ctx context.Context, applicationID string, actor entity.Author, notes string) (*entity.Application, error) {
	return s.decide(ctx, applicationID, workflow.TriggerApprove, actor, "", notes)
}

// Reject resolves the application negatively. A reason is mandatory: a
// rejection with no recorded cause is useless for audit and for the adopter.
func (s *workflowServiceImpl) Reject(ctx context.Context, applicationID string, actor entity.Author, reason, notes string) (*entity.Application, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, NewValidationError("reason", "rejection reason is required")
	}
	return s.decide(ctx, applicationID, workflow.TriggerReject, actor, reason, notes)
}

// decide runs the shared terminal-transition path for approve and reject
func (s *workflowServiceImpl) decide(ctx context.Context, applicationID string, trigger workflow.Trigger, actor entity.Author, reason, notes string) (*entity.Application, error) {
	var updated *entity.Application
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}

		machine := s.statuses.Build(app.Status)
		if err := machine.Fire(trigger); err != nil {
			return err
		}

		previousStatus := app.Status
		previousStage := app.Stage
		version := app.Version
		now := s.now()

		app.Status = machine.State()
		app.UpdatedAt = now
		app.AppendNote(notes)
		switch trigger {
		case workflow.TriggerApprove:
			app.Stage = entity.StageCompleted
			app.ApprovedAt = &now
		case workflow.TriggerReject:
			app.RejectedAt = &now
			app.RejectionReason = reason
		}

		if err := s.appRepo.UpdateState(txCtx, app, version); err != nil {
			return err
		}

		if err := s.timeline.Append(txCtx, entity.NewDecisionEvent(applicationID, app.Status, actor, reason)); err != nil {
			return err
		}
		if err := s.timeline.Append(txCtx, entity.NewStatusUpdateEvent(applicationID, previousStatus, app.Status, actor)); err != nil {
			return err
		}
		if previousStage != app.Stage {
			if err := s.timeline.Append(txCtx, entity.NewStageChangeEvent(applicationID, previousStage, app.Stage, actor, "")); err != nil {
				return err
			}
		}
		updated = app
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to record decision", "error", err, "application_id", applicationID, "trigger", trigger.String())
		return nil, err
	}

	s.logger.Info("Decision recorded", "application_id", applicationID, "status", updated.Status.String())
	return updated, nil
}

// Withdraw records the applicant pulling out; terminal like a rejection but
// attributed to the adopter's side of the process.
func (s *workflowServiceImpl) Withdraw(ctx context.Context, applicationID string, actor entity.Author, reason string) (*entity.Application, error) {
	var updated *entity.Application
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}

		machine := s.statuses.Build(app.Status)
		if err := machine.Fire(workflow.TriggerWithdraw); err != nil {
			return err
		}

		previousStatus := app.Status
		version := app.Version
		now := s.now()
		app.Status = machine.State()
		app.WithdrawnAt = &now
		app.UpdatedAt = now
		app.AppendNote(reason)

		if err := s.appRepo.UpdateState(txCtx, app, version); err != nil {
			return err
		}
		if err := s.timeline.Append(txCtx, entity.NewWithdrawnEvent(applicationID, previousStatus, actor, reason)); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to withdraw application", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("Application withdrawn", "application_id", applicationID)
	return updated, nil
}

// Reopen brings a rejected or withdrawn application back into review.
// The terminal timestamp and rejection reason are cleared so that at most
// one terminal timestamp is ever populated for the record's lifetime.
func (s *workflowServiceImpl) Reopen(ctx context.Context, applicationID string, actor entity.Author, notes string) (*entity.Application, error) {
	var updated *entity.Application
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}

		machine := s.statuses.Build(app.Status)
		if err := machine.Fire(workflow.TriggerReopen); err != nil {
			return err
		}

		previousStatus := app.Status
		version := app.Version
		app.Status = machine.State()
		app.RejectedAt = nil
		app.WithdrawnAt = nil
		app.RejectionReason = ""
		app.UpdatedAt = s.now()
		app.AppendNote(notes)

		if err := s.appRepo.UpdateState(txCtx, app, version); err != nil {
			return err
		}
		if err := s.timeline.Append(txCtx, entity.NewReopenedEvent(applicationID, previousStatus, actor, notes)); err != nil {
			return err
		}
		updated = app
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to reopen application", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("Application reopened", "application_id", applicationID)
	return updated, nil
}

// UpdateReferenceStatus updates one reference's verification state and
// records the contact or verification on the timeline
func (s *workflowServiceImpl) UpdateReferenceStatus(ctx context.Context, applicationID, referenceID string, newStatus entity.ReferenceStatus, actor entity.Author, notes string) (*entity.Reference, error) {
	if !newStatus.IsValid() {
		return nil, NewValidationError("status", "unknown reference status")
	}

	var updated *entity.Reference
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}

		ref := app.FindReference(referenceID)
		if ref == nil {
			return ErrReferenceNotFound
		}

		ref.Status = newStatus
		if notes != "" {
			ref.Notes = notes
		}
		if newStatus == entity.ReferenceStatusContacted && ref.ContactedAt == nil {
			now := s.now()
			ref.ContactedAt = &now
		}

		if err := s.appRepo.UpdateReference(txCtx, ref); err != nil {
			return err
		}
		if err := s.timeline.Append(txCtx, entity.NewReferenceEvent(applicationID, ref, newStatus, actor, notes)); err != nil {
			return err
		}
		updated = ref
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update reference", "error", err, "application_id", applicationID, "reference_id", referenceID)
		return nil, err
	}

	s.logger.Info("Reference updated", "application_id", applicationID, "reference_id", referenceID, "status", string(newStatus))
	return updated, nil
}

// ScheduleHomeVisit books a home visit. The date must parse as RFC 3339 and
// must not be in the past; rejecting stale dates here beats discovering them
// at visit time.
func (s *workflowServiceImpl) ScheduleHomeVisit(ctx context.Context, applicationID string, input ScheduleHomeVisitInput) (*entity.HomeVisit, error) {
	if input.StaffMemberID == "" {
		return nil, NewValidationError("staff_member_id", "staff_member_id is required")
	}
	scheduled, err := time.Parse(time.RFC3339, input.ScheduledDate)
	if err != nil {
		return nil, NewValidationError("scheduled_date", "scheduled_date must be an RFC 3339 timestamp")
	}
	if scheduled.Before(s.now()) {
		return nil, NewValidationError("scheduled_date", "scheduled_date must not be in the past")
	}

	var visit *entity.HomeVisit
	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return workflow.ErrTerminalStatus
		}

		visit = &entity.HomeVisit{
			HomeVisitID:   uuid.NewString(),
			ApplicationID: applicationID,
			ScheduledDate: scheduled,
			StaffMemberID: input.StaffMemberID,
			Status:        entity.HomeVisitStatusScheduled,
			Notes:         input.Notes,
			CreatedAt:     s.now(),
		}
		if err := s.visitRepo.Create(txCtx, visit); err != nil {
			return err
		}
		return s.timeline.Append(txCtx,
			entity.NewHomeVisitScheduledEvent(applicationID, visit, entity.HumanAuthor(input.StaffMemberID), input.Notes))
	})
	if err != nil {
		s.logger.Error("Failed to schedule home visit", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("Home visit scheduled", "application_id", applicationID, "home_visit_id", visit.HomeVisitID)
	return visit, nil
}

// UpdateHomeVisitStatus resolves a scheduled visit: completed, cancelled or
// rescheduled. The visit row and its timeline event are written in one
// transaction, mirroring every other mutation in this service.
func (s *workflowServiceImpl) UpdateHomeVisitStatus(ctx context.Context, applicationID, homeVisitID string, input UpdateHomeVisitInput, actor entity.Author) (*entity.HomeVisit, error) {
	if !input.Status.IsValid() || input.Status == entity.HomeVisitStatusScheduled {
		return nil, NewValidationError("status", "status must be one of completed, rescheduled, cancelled")
	}
	var newDate time.Time
	if input.Status == entity.HomeVisitStatusRescheduled {
		if input.ScheduledDate == "" {
			return nil, NewValidationError("scheduled_date", "scheduled_date is required when rescheduling")
		}
		parsed, err := time.Parse(time.RFC3339, input.ScheduledDate)
		if err != nil {
			return nil, NewValidationError("scheduled_date", "scheduled_date must be an RFC 3339 timestamp")
		}
		if parsed.Before(s.now()) {
			return nil, NewValidationError("scheduled_date", "scheduled_date must not be in the past")
		}
		newDate = parsed
	}

	var updated *entity.HomeVisit
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		app, err := s.loadForUpdate(txCtx, applicationID)
		if err != nil {
			return err
		}
		if app.Status.IsTerminal() {
			return workflow.ErrTerminalStatus
		}

		visits, err := s.visitRepo.ListByApplication(txCtx, applicationID)
		if err != nil {
			return err
		}
		var visit *entity.HomeVisit
		for _, v := range visits {
			if v.HomeVisitID == homeVisitID {
				visit = v
				break
			}
		}
		if visit == nil {
			return ErrHomeVisitNotFound
		}

		visit.Status = input.Status
		if input.Status == entity.HomeVisitStatusRescheduled {
			visit.ScheduledDate = newDate
		}
		if input.Notes != "" {
			visit.Notes = input.Notes
		}
		if err := s.visitRepo.Update(txCtx, visit); err != nil {
			return err
		}
		if err := s.timeline.Append(txCtx, entity.NewHomeVisitStatusEvent(applicationID, visit, input.Status, actor, input.Notes)); err != nil {
			return err
		}
		updated = visit
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to update home visit", "error", err, "application_id", applicationID, "home_visit_id", homeVisitID)
		return nil, err
	}

	s.logger.Info("Home visit updated", "application_id", applicationID, "home_visit_id", homeVisitID, "status", string(input.Status))
	return updated, nil
}

// AddNote appends an annotation to the timeline with no state change.
// Notes stay legal on terminal applications: history must remain
// annotatable even after the case is closed.
func (s *workflowServiceImpl) AddNote(ctx context.Context, applicationID, noteType, content string, actor entity.Author) (*entity.TimelineEvent, error) {
	if !noteTypes[noteType] {
		return nil, NewValidationError("note_type", "note_type must be one of general, interview, home_visit, reference")
	}
	if strings.TrimSpace(content) == "" {
		return nil, NewValidationError("content", "note content is required")
	}

	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	ev := entity.NewNoteEvent(applicationID, noteType, utils.SanitizeString(content), actor)
	if err := s.timeline.Append(ctx, ev); err != nil {
		s.logger.Error("Failed to add note", "error", err, "application_id", applicationID)
		return nil, err
	}

	s.logger.Info("Note added", "application_id", applicationID, "note_type", noteType)
	return ev, nil
}

// loadForUpdate fetches an application inside the current transaction,
// translating the missing-row case to ErrApplicationNotFound
func (s *workflowServiceImpl) loadForUpdate(ctx context.Context, applicationID string) (*entity.Application, error) {
	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}
	return app, nil
}
