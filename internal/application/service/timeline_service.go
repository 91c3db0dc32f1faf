package service

import (
	"context"
	"time"

	"github.com/pawshome/adoption-workflow/internal/application/port"
	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// TimelineStats summarizes one application's event history
type TimelineStats struct {
	TotalEvents   int                      `json:"total_events"`
	EventsByType  map[entity.EventType]int `json:"events_by_type"`
	FirstEvent    *time.Time               `json:"first_event,omitempty"`
	LastEvent     *time.Time               `json:"last_event,omitempty"`
	StaffActivity map[string]int           `json:"staff_activity"`
}

// TimelineSummary is one application's entry in a bulk stats response.
// A summary with Error set reflects that id's own failure without
// poisoning the rest of the batch.
type TimelineSummary struct {
	ApplicationID   string         `json:"application_id"`
	TotalEvents     int            `json:"total_events"`
	LastActivity    *time.Time     `json:"last_activity,omitempty"`
	EventTypeCounts map[string]int `json:"event_type_counts"`
	Error           string         `json:"error,omitempty"`
}

// TimelineService projects the append-only event store into read views.
// It never mutates state.
type TimelineService interface {
	GetTimeline(ctx context.Context, applicationID string, q port.TimelineQuery) ([]*entity.TimelineEvent, int, error)
	GetStats(ctx context.Context, applicationID string) (*TimelineStats, error)
	GetBulkStats(ctx context.Context, applicationIDs []string) ([]*TimelineSummary, error)
}

type timelineServiceImpl struct {
	appRepo   port.ApplicationRepository
	timeline  port.TimelineRepository
	txManager port.TransactionManager
	logger    Logger
}

// NewTimelineService creates a new TimelineService
func NewTimelineService(appRepo port.ApplicationRepository, timeline port.TimelineRepository, txManager port.TransactionManager, logger Logger) TimelineService {
	return &timelineServiceImpl{
		appRepo:   appRepo,
		timeline:  timeline,
		txManager: txManager,
		logger:    logger,
	}
}

// GetTimeline returns an application's events oldest first, with the total
// matching count for pagination. Page and count are read in one transaction
// so a concurrent append cannot make the total disagree with the page. An
// application with no events yields an empty slice, not an error.
func (s *timelineServiceImpl) GetTimeline(ctx context.Context, applicationID string, q port.TimelineQuery) ([]*entity.TimelineEvent, int, error) {
	for _, t := range q.EventTypes {
		if !t.IsValid() {
			return nil, 0, NewValidationError("event_types", "unknown event type: "+t.String())
		}
	}

	var events []*entity.TimelineEvent
	var total int
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		events, err = s.timeline.ListByApplication(txCtx, applicationID, q)
		if err != nil {
			return err
		}
		total, err = s.timeline.CountByApplication(txCtx, applicationID, q.EventTypes)
		return err
	})
	if err != nil {
		s.logger.Error("Failed to get timeline", "error", err, "application_id", applicationID)
		return nil, 0, err
	}

	if events == nil {
		events = []*entity.TimelineEvent{}
	}
	return events, total, nil
}

// GetStats scans one application's events and aggregates counts per type,
// first/last activity and per-staff activity. Zero events yields all-zero
// stats; only a missing application is an error.
func (s *timelineServiceImpl) GetStats(ctx context.Context, applicationID string) (*TimelineStats, error) {
	app, err := s.appRepo.GetByID(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app == nil {
		return nil, ErrApplicationNotFound
	}

	events, err := s.timeline.ListByApplication(ctx, applicationID, port.TimelineQuery{})
	if err != nil {
		s.logger.Error("Failed to load events for stats", "error", err, "application_id", applicationID)
		return nil, err
	}

	stats := &TimelineStats{
		TotalEvents:   len(events),
		EventsByType:  make(map[entity.EventType]int),
		StaffActivity: make(map[string]int),
	}
	if len(events) > 0 {
		first := events[0].CreatedAt
		last := events[len(events)-1].CreatedAt
		stats.FirstEvent = &first
		stats.LastEvent = &last
	}
	for _, ev := range events {
		stats.EventsByType[ev.EventType]++
		if userID, ok := ev.Author().UserID(); ok {
			stats.StaffActivity[userID]++
		}
	}
	return stats, nil
}

// GetBulkStats computes per-application summaries in one call. A bad id
// among many yields a per-id error entry; the batch itself never fails.
func (s *timelineServiceImpl) GetBulkStats(ctx context.Context, applicationIDs []string) ([]*TimelineSummary, error) {
	summaries := make([]*TimelineSummary, 0, len(applicationIDs))
	if len(applicationIDs) == 0 {
		return summaries, nil
	}

	// Validate ids individually so one unknown application cannot abort
	// the batch
	known := make(map[string]bool, len(applicationIDs))
	valid := make([]string, 0, len(applicationIDs))
	for _, id := range applicationIDs {
		app, err := s.appRepo.GetByID(ctx, id)
		if err != nil {
			s.logger.Error("Bulk stats lookup failed", "error", err, "application_id", id)
			continue
		}
		if app == nil {
			continue
		}
		known[id] = true
		valid = append(valid, id)
	}

	byApp := make(map[string][]*entity.TimelineEvent)
	if len(valid) > 0 {
		events, err := s.timeline.ListByApplications(ctx, valid)
		if err != nil {
			s.logger.Error("Bulk stats event load failed", "error", err)
			return nil, err
		}
		for _, ev := range events {
			byApp[ev.ApplicationID] = append(byApp[ev.ApplicationID], ev)
		}
	}

	for _, id := range applicationIDs {
		summary := &TimelineSummary{
			ApplicationID:   id,
			EventTypeCounts: make(map[string]int),
		}
		if !known[id] {
			summary.Error = "application not found"
			summaries = append(summaries, summary)
			continue
		}
		for _, ev := range byApp[id] {
			summary.TotalEvents++
			summary.EventTypeCounts[ev.EventType.String()]++
			if summary.LastActivity == nil || ev.CreatedAt.After(*summary.LastActivity) {
				created := ev.CreatedAt
				summary.LastActivity = &created
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
