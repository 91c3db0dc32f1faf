package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/application/service"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
	"github.com/pawshome/adoption-workflow/internal/domain/workflow"
)

// actorHeader carries the authenticated staff user id, injected by the
// auth proxy in front of this service. Authentication itself is out of
// scope here; an absent header on a write endpoint is a 401.
const actorHeader = "X-Staff-ID"

// Handlers contains all HTTP request handlers
type Handlers struct {
	workflowService service.WorkflowService
	timelineService service.TimelineService
	logger          Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(workflowService service.WorkflowService, timelineService service.TimelineService, logger Logger) *Handlers {
	return &Handlers{
		workflowService: workflowService,
		timelineService: timelineService,
		logger:          logger,
	}
}

// Response is the uniform envelope for every endpoint
type Response struct {
	Success bool                 `json:"success"`
	Data    interface{}          `json:"data,omitempty"`
	Message string               `json:"message,omitempty"`
	Errors  []service.FieldError `json:"errors,omitempty"`
}

// Pagination describes the window of a list response
type Pagination struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// CreateApplicationRequest is the submission payload
type CreateApplicationRequest struct {
	PetID           string             `json:"pet_id" binding:"required"`
	UserID          string             `json:"user_id" binding:"required"`
	RescueID        string             `json:"rescue_id" binding:"required"`
	BasicInfo       json.RawMessage    `json:"basic_info"`
	LivingSituation json.RawMessage    `json:"living_situation"`
	PetExperience   json.RawMessage    `json:"pet_experience"`
	References      []entity.Reference `json:"references"`
}

// CreateApplication handles POST /api/v1/applications
func (h *Handlers) CreateApplication(c *gin.Context) {
	var req CreateApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.CreateApplication(c.Request.Context(), service.CreateApplicationInput{
		PetID:           req.PetID,
		UserID:          req.UserID,
		RescueID:        req.RescueID,
		BasicInfo:       req.BasicInfo,
		LivingSituation: req.LivingSituation,
		PetExperience:   req.PetExperience,
		References:      req.References,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, Response{Success: true, Data: app, Message: "Application created successfully"})
}

// ListApplicationsRequest holds list query parameters
type ListApplicationsRequest struct {
	Status string `form:"status"`
	Stage  string `form:"stage"`
	Limit  int    `form:"limit"`
	Offset int    `form:"offset"`
}

// ListApplications handles GET /api/v1/applications
func (h *Handlers) ListApplications(c *gin.Context) {
	var req ListApplicationsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 20
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	apps, total, err := h.workflowService.ListApplications(c.Request.Context(), port.ApplicationFilter{
		Status: entity.Status(req.Status),
		Stage:  entity.Stage(req.Stage),
		Limit:  req.Limit,
		Offset: req.Offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	if apps == nil {
		apps = []*entity.Application{}
	}
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"applications": apps,
			"pagination":   Pagination{Total: total, Limit: req.Limit, Offset: req.Offset},
		},
	})
}

// GetApplication handles GET /api/v1/applications/:id
func (h *Handlers) GetApplication(c *gin.Context) {
	app, err := h.workflowService.GetApplication(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app})
}

// ChangeStageRequest is the stage transition payload
type ChangeStageRequest struct {
	Stage string `json:"stage" binding:"required"`
	Notes string `json:"notes"`
}

// ChangeStage handles PATCH /api/v1/applications/:id/stage
func (h *Handlers) ChangeStage(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req ChangeStageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.ChangeStage(c.Request.Context(), c.Param("id"), entity.Stage(req.Stage), actor, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app, Message: "Stage updated successfully"})
}

// DecisionRequest carries optional notes on approve/reopen
type DecisionRequest struct {
	Notes string `json:"notes"`
}

// Approve handles PATCH /api/v1/applications/:id/approve
func (h *Handlers) Approve(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.Approve(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app, Message: "Application approved"})
}

// RejectRequest carries the mandatory rejection reason
type RejectRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// Reject handles PATCH /api/v1/applications/:id/reject
func (h *Handlers) Reject(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.Reject(c.Request.Context(), c.Param("id"), actor, req.Reason, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app, Message: "Application rejected"})
}

// WithdrawRequest carries an optional withdrawal reason
type WithdrawRequest struct {
	Reason string `json:"reason"`
}

// Withdraw handles PATCH /api/v1/applications/:id/withdraw
func (h *Handlers) Withdraw(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.Withdraw(c.Request.Context(), c.Param("id"), actor, req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app, Message: "Application withdrawn"})
}

// Reopen handles PATCH /api/v1/applications/:id/reopen
func (h *Handlers) Reopen(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "invalid request body", err)
		return
	}

	app, err := h.workflowService.Reopen(c.Request.Context(), c.Param("id"), actor, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: app, Message: "Application reopened"})
}

// UpdateReferenceRequest is the reference status payload
type UpdateReferenceRequest struct {
	Status string `json:"status" binding:"required"`
	Notes  string `json:"notes"`
}

// UpdateReference handles PATCH /api/v1/applications/:id/references/:refId
func (h *Handlers) UpdateReference(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req UpdateReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	ref, err := h.workflowService.UpdateReferenceStatus(c.Request.Context(),
		c.Param("id"), c.Param("refId"), entity.ReferenceStatus(req.Status), actor, req.Notes)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: ref, Message: "Reference updated"})
}

// ScheduleHomeVisitRequest is the home visit booking payload
type ScheduleHomeVisitRequest struct {
	ScheduledDate string `json:"scheduled_date" binding:"required"`
	StaffMemberID string `json:"staff_member_id"`
	Notes         string `json:"notes"`
}

// ScheduleHomeVisit handles POST /api/v1/applications/:id/home-visit
func (h *Handlers) ScheduleHomeVisit(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req ScheduleHomeVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	staffID := req.StaffMemberID
	if staffID == "" {
		staffID, _ = actor.UserID()
	}

	visit, err := h.workflowService.ScheduleHomeVisit(c.Request.Context(), c.Param("id"), service.ScheduleHomeVisitInput{
		ScheduledDate: req.ScheduledDate,
		StaffMemberID: staffID,
		Notes:         req.Notes,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: visit, Message: "Home visit scheduled"})
}

// UpdateHomeVisitRequest is the visit status change payload
type UpdateHomeVisitRequest struct {
	Status        string `json:"status" binding:"required"`
	ScheduledDate string `json:"scheduled_date"`
	Notes         string `json:"notes"`
}

// UpdateHomeVisit handles PATCH /api/v1/applications/:id/home-visit/:visitId
func (h *Handlers) UpdateHomeVisit(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req UpdateHomeVisitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	visit, err := h.workflowService.UpdateHomeVisitStatus(c.Request.Context(),
		c.Param("id"), c.Param("visitId"), service.UpdateHomeVisitInput{
			Status:        entity.HomeVisitStatus(req.Status),
			ScheduledDate: req.ScheduledDate,
			Notes:         req.Notes,
		}, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: visit, Message: "Home visit updated"})
}

// GetTimelineRequest holds timeline query parameters
type GetTimelineRequest struct {
	Limit      int    `form:"limit"`
	Offset     int    `form:"offset"`
	EventTypes string `form:"event_types"`
}

// GetTimeline handles GET /api/v1/applications/:id/timeline
func (h *Handlers) GetTimeline(c *gin.Context) {
	var req GetTimelineRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.badRequest(c, "invalid query parameters", err)
		return
	}

	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}

	var eventTypes []entity.EventType
	if req.EventTypes != "" {
		for _, raw := range strings.Split(req.EventTypes, ",") {
			eventTypes = append(eventTypes, entity.EventType(strings.TrimSpace(raw)))
		}
	}

	events, total, err := h.timelineService.GetTimeline(c.Request.Context(), c.Param("id"), port.TimelineQuery{
		EventTypes: eventTypes,
		Limit:      req.Limit,
		Offset:     req.Offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: gin.H{
			"events":     events,
			"pagination": Pagination{Total: total, Limit: req.Limit, Offset: req.Offset},
		},
	})
}

// AddNoteRequest is the timeline note payload
type AddNoteRequest struct {
	NoteType string `json:"note_type" binding:"required"`
	Content  string `json:"content" binding:"required"`
}

// AddTimelineNote handles POST /api/v1/applications/:id/timeline/notes
func (h *Handlers) AddTimelineNote(c *gin.Context) {
	actor, ok := h.requireActor(c)
	if !ok {
		return
	}
	var req AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	event, err := h.workflowService.AddNote(c.Request.Context(), c.Param("id"), req.NoteType, req.Content, actor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: event, Message: "Note added"})
}

// GetTimelineStats handles GET /api/v1/applications/:id/timeline/stats
func (h *Handlers) GetTimelineStats(c *gin.Context) {
	stats, err := h.timelineService.GetStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: stats})
}

// BulkStatsRequest is the bulk timeline stats payload
type BulkStatsRequest struct {
	ApplicationIDs []string `json:"application_ids" binding:"required"`
}

// GetBulkTimelineStats handles POST /api/v1/timeline/bulk-stats
func (h *Handlers) GetBulkTimelineStats(c *gin.Context) {
	var req BulkStatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "invalid request body", err)
		return
	}

	summaries, err := h.timelineService.GetBulkStats(c.Request.Context(), req.ApplicationIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: gin.H{"summaries": summaries}})
}

// requireActor extracts the authenticated staff user from the request.
// System authorship is never accepted from HTTP callers.
func (h *Handlers) requireActor(c *gin.Context) (entity.Author, bool) {
	staffID := c.GetHeader(actorHeader)
	if staffID == "" {
		c.JSON(http.StatusUnauthorized, Response{
			Success: false,
			Message: "authenticated staff user required",
		})
		return entity.Author{}, false
	}
	return entity.HumanAuthor(staffID), true
}

// badRequest responds with a validation failure envelope
func (h *Handlers) badRequest(c *gin.Context, message string, err error) {
	h.logger.Error("Request validation failed", "error", err, "path", c.FullPath())
	c.JSON(http.StatusBadRequest, Response{Success: false, Message: message})
}

// respondError translates service errors into the uniform failure envelope.
// Internal errors never leak details to the caller.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrApplicationNotFound),
		errors.Is(err, service.ErrReferenceNotFound),
		errors.Is(err, service.ErrHomeVisitNotFound):
		c.JSON(http.StatusNotFound, Response{Success: false, Message: err.Error()})
	case errors.Is(err, workflow.ErrTerminalStatus),
		errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, port.ErrVersionConflict):
		c.JSON(http.StatusConflict, Response{Success: false, Message: err.Error()})
	default:
		if ve, ok := service.AsValidationError(err); ok {
			c.JSON(http.StatusBadRequest, Response{
				Success: false,
				Message: "validation failed",
				Errors:  ve.Fields,
			})
			return
		}
		h.logger.Error("Request failed", "error", err, "path", c.FullPath())
		c.JSON(http.StatusInternalServerError, Response{Success: false, Message: "internal server error"})
	}
}
