package entity

import (
	"fmt"
	"time"
)

// EventType identifies the type of a timeline event
type EventType string

const (
	EventStageChange          EventType = "stage_change"
	EventStatusUpdate         EventType = "status_update"
	EventNoteAdded            EventType = "note_added"
	EventReferenceContacted   EventType = "reference_contacted"
	EventReferenceVerified    EventType = "reference_verified"
	EventInterviewScheduled   EventType = "interview_scheduled"
	EventInterviewCompleted   EventType = "interview_completed"
	EventHomeVisitScheduled   EventType = "home_visit_scheduled"
	EventHomeVisitCompleted   EventType = "home_visit_completed"
	EventHomeVisitRescheduled EventType = "home_visit_rescheduled"
	EventHomeVisitCancelled   EventType = "home_visit_cancelled"
	EventScoreUpdated         EventType = "score_updated"
	EventDocumentUploaded     EventType = "document_uploaded"
	EventDecisionMade         EventType = "decision_made"
	EventApplicationApproved  EventType = "application_approved"
	EventApplicationRejected  EventType = "application_rejected"
	EventApplicationWithdrawn EventType = "application_withdrawn"
	EventApplicationReopened  EventType = "application_reopened"
	EventCommunicationSent    EventType = "communication_sent"
	EventCommunicationRecv    EventType = "communication_received"
	EventSystemAutoProgress   EventType = "system_auto_progression"
	EventManualOverride       EventType = "manual_override"
)

var validEventTypes = map[EventType]bool{
	EventStageChange:          true,
	EventStatusUpdate:         true,
	EventNoteAdded:            true,
	EventReferenceContacted:   true,
	EventReferenceVerified:    true,
	EventInterviewScheduled:   true,
	EventInterviewCompleted:   true,
	EventHomeVisitScheduled:   true,
	EventHomeVisitCompleted:   true,
	EventHomeVisitRescheduled: true,
	EventHomeVisitCancelled:   true,
	EventScoreUpdated:         true,
	EventDocumentUploaded:     true,
	EventDecisionMade:         true,
	EventApplicationApproved:  true,
	EventApplicationRejected:  true,
	EventApplicationWithdrawn: true,
	EventApplicationReopened:  true,
	EventCommunicationSent:    true,
	EventCommunicationRecv:    true,
	EventSystemAutoProgress:   true,
	EventManualOverride:       true,
}

// IsValid checks if the event type is one of the defined constants
func (t EventType) IsValid() bool {
	return validEventTypes[t]
}

// String returns the string representation of the event type
func (t EventType) String() string {
	return string(t)
}

// Author identifies who produced a timeline event: a staff member or the
// system, never both. Constructed only through HumanAuthor or SystemAuthor
// so the exclusivity invariant cannot be violated by callers.
type Author struct {
	userID string
	system bool
}

// HumanAuthor returns an Author for a staff user
func HumanAuthor(userID string) Author {
	return Author{userID: userID}
}

// SystemAuthor returns an Author for automated processing
func SystemAuthor() Author {
	return Author{system: true}
}

// UserID returns the staff user id and true for human authors
func (a Author) UserID() (string, bool) {
	if a.system || a.userID == "" {
		return "", false
	}
	return a.userID, true
}

// IsSystem returns true for system-generated events. The zero Author and a
// HumanAuthor with an empty id both count as system, so an unset author can
// never produce an event attributed to nobody in particular.
func (a Author) IsSystem() bool {
	return a.system || a.userID == ""
}

// TimelineEvent is one immutable fact about an application's history.
// Events are never updated or deleted once appended; the store assigns
// TimelineID and CreatedAt at append time when unset.
type TimelineEvent struct {
	TimelineID    string                 `json:"timeline_id"`
	ApplicationID string                 `json:"application_id"`
	EventType     EventType              `json:"event_type"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`

	CreatedBy       *string `json:"created_by,omitempty"`
	CreatedBySystem bool    `json:"created_by_system"`

	// Populated only on events that represent a state change
	PreviousStage  *Stage  `json:"previous_stage,omitempty"`
	NewStage       *Stage  `json:"new_stage,omitempty"`
	PreviousStatus *Status `json:"previous_status,omitempty"`
	NewStatus      *Status `json:"new_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Author reconstructs the event's author from the stored provenance fields
func (e *TimelineEvent) Author() Author {
	if e.CreatedBySystem || e.CreatedBy == nil {
		return SystemAuthor()
	}
	return HumanAuthor(*e.CreatedBy)
}

// newEvent builds the common shell of a timeline event
func newEvent(applicationID string, eventType EventType, title string, author Author) *TimelineEvent {
	ev := &TimelineEvent{
		ApplicationID: applicationID,
		EventType:     eventType,
		Title:         title,
		Metadata:      map[string]interface{}{},
	}
	if userID, ok := author.UserID(); ok {
		ev.CreatedBy = &userID
	} else {
		ev.CreatedBySystem = true
	}
	return ev
}

// stageDescriptions explain what each stage means in a human-readable history
var stageDescriptions = map[Stage]string{
	StageInitialReview:  "Application is in initial review",
	StageReferenceCheck: "References are being checked",
	StageHomeVisit:      "Home visit phase is underway",
	StageFinalDecision:  "Application is in final decision phase",
	StageCompleted:      "Application review has been completed",
}

// NewStageChangeEvent records a stage transition with explicit before/after values
func NewStageChangeEvent(applicationID string, previous, next Stage, author Author, notes string) *TimelineEvent {
	ev := newEvent(applicationID, EventStageChange,
		fmt.Sprintf("Stage changed from %s to %s", previous, next), author)

	desc, ok := stageDescriptions[next]
	if !ok {
		desc = fmt.Sprintf("Application moved to %s stage", next)
	}
	if notes != "" {
		desc = desc + ": " + notes
	}
	ev.Description = desc
	ev.Metadata["automated"] = author.IsSystem()
	ev.PreviousStage = &previous
	ev.NewStage = &next
	return ev
}

// NewStatusUpdateEvent records a status transition with explicit before/after values
func NewStatusUpdateEvent(applicationID string, previous, next Status, author Author) *TimelineEvent {
	ev := newEvent(applicationID, EventStatusUpdate,
		fmt.Sprintf("Status changed from %s to %s", previous, next), author)
	ev.PreviousStatus = &previous
	ev.NewStatus = &next
	return ev
}

// NewSubmittedEvent records intake of a fresh submission; there is no
// previous status, only the initial pending state
func NewSubmittedEvent(applicationID string, author Author) *TimelineEvent {
	ev := newEvent(applicationID, EventStatusUpdate, "Application submitted", author)
	ev.Description = "Application received and awaiting initial review"
	next := StatusPending
	ev.NewStatus = &next
	return ev
}

// NewDecisionEvent records a final decision (approved or rejected)
func NewDecisionEvent(applicationID string, decision Status, author Author, reason string) *TimelineEvent {
	ev := newEvent(applicationID, EventDecisionMade,
		fmt.Sprintf("Application %s", decision), author)
	if reason != "" {
		ev.Description = reason
	} else {
		ev.Description = fmt.Sprintf("Application has been %s", decision)
	}
	ev.Metadata["decision"] = decision.String()
	if reason != "" {
		ev.Metadata["reason"] = reason
	}
	return ev
}

// NewWithdrawnEvent records a withdrawal by or on behalf of the applicant
func NewWithdrawnEvent(applicationID string, previous Status, author Author, reason string) *TimelineEvent {
	ev := newEvent(applicationID, EventApplicationWithdrawn, "Application withdrawn", author)
	if reason != "" {
		ev.Description = reason
		ev.Metadata["withdrawal_reason"] = reason
	}
	next := StatusWithdrawn
	ev.PreviousStatus = &previous
	ev.NewStatus = &next
	return ev
}

// NewReopenedEvent records a terminal application being brought back into review
func NewReopenedEvent(applicationID string, previous Status, author Author, notes string) *TimelineEvent {
	ev := newEvent(applicationID, EventApplicationReopened, "Application reopened", author)
	if notes != "" {
		ev.Description = notes
	}
	ev.Metadata["reopened_from"] = previous.String()
	next := StatusUnderReview
	ev.PreviousStatus = &previous
	ev.NewStatus = &next
	return ev
}

// noteDescriptionLimit caps how much note text is shown inline in the
// timeline; the full content always lives in metadata.
const noteDescriptionLimit = 100

// NewNoteEvent records a staff note; never a state change, so it is legal
// on applications in any status
func NewNoteEvent(applicationID, noteType, content string, author Author) *TimelineEvent {
	title := noteType + " note added"
	if len(noteType) > 0 {
		title = strUpperFirst(noteType) + " note added"
	}
	ev := newEvent(applicationID, EventNoteAdded, title, author)

	desc := content
	if len(desc) > noteDescriptionLimit {
		desc = desc[:noteDescriptionLimit] + "..."
	}
	ev.Description = desc
	ev.Metadata["note_type"] = noteType
	ev.Metadata["full_content"] = content
	return ev
}

// NewReferenceEvent records a reference status update. Contacted maps to
// reference_contacted, completed to reference_verified; anything else is a
// manual correction of the reference's state.
func NewReferenceEvent(applicationID string, ref *Reference, newStatus ReferenceStatus, author Author, notes string) *TimelineEvent {
	var eventType EventType
	var title string
	switch newStatus {
	case ReferenceStatusContacted:
		eventType = EventReferenceContacted
		title = fmt.Sprintf("Reference contacted: %s", ref.Name)
	case ReferenceStatusCompleted:
		eventType = EventReferenceVerified
		title = fmt.Sprintf("Reference verified: %s", ref.Name)
	default:
		eventType = EventManualOverride
		title = fmt.Sprintf("Reference reset to %s: %s", newStatus, ref.Name)
	}

	ev := newEvent(applicationID, eventType, title, author)
	if notes != "" {
		ev.Description = notes
	}
	ev.Metadata["reference_id"] = ref.ReferenceID
	ev.Metadata["reference_name"] = ref.Name
	ev.Metadata["reference_status"] = string(newStatus)
	return ev
}

// NewHomeVisitScheduledEvent records a home visit being booked
func NewHomeVisitScheduledEvent(applicationID string, visit *HomeVisit, author Author, notes string) *TimelineEvent {
	ev := newEvent(applicationID, EventHomeVisitScheduled, "Home visit scheduled", author)
	ev.Description = fmt.Sprintf("Home visit scheduled for %s", visit.ScheduledDate.Format("2006-01-02"))
	if notes != "" {
		ev.Description = ev.Description + ": " + notes
	}
	ev.Metadata["home_visit_id"] = visit.HomeVisitID
	ev.Metadata["visit_date"] = visit.ScheduledDate.Format(time.RFC3339)
	ev.Metadata["staff_member_id"] = visit.StaffMemberID
	return ev
}

// NewHomeVisitStatusEvent records a scheduled visit being completed,
// cancelled or rescheduled
func NewHomeVisitStatusEvent(applicationID string, visit *HomeVisit, newStatus HomeVisitStatus, author Author, notes string) *TimelineEvent {
	var eventType EventType
	var title string
	switch newStatus {
	case HomeVisitStatusCompleted:
		eventType = EventHomeVisitCompleted
		title = "Home visit completed"
	case HomeVisitStatusCancelled:
		eventType = EventHomeVisitCancelled
		title = "Home visit cancelled"
	default:
		eventType = EventHomeVisitRescheduled
		title = fmt.Sprintf("Home visit rescheduled to %s", visit.ScheduledDate.Format("2006-01-02"))
	}

	ev := newEvent(applicationID, eventType, title, author)
	if notes != "" {
		ev.Description = notes
	}
	ev.Metadata["home_visit_id"] = visit.HomeVisitID
	ev.Metadata["visit_date"] = visit.ScheduledDate.Format(time.RFC3339)
	ev.Metadata["visit_status"] = string(newStatus)
	return ev
}

// NewAutoProgressionEvent records an automatic stage advancement; these
// events never carry a human author
func NewAutoProgressionEvent(applicationID string, trigger string, previous, next Stage) *TimelineEvent {
	ev := newEvent(applicationID, EventSystemAutoProgress, "Automatic stage progression", SystemAuthor())
	ev.Description = fmt.Sprintf("System moved application from %s to %s due to: %s", previous, next, trigger)
	ev.Metadata["trigger"] = trigger
	ev.Metadata["automated"] = true
	ev.PreviousStage = &previous
	ev.NewStage = &next
	return ev
}

func strUpperFirst(s string) string {
	if s == "" {
		return s
	}
	if s[0] >= 'a' && s[0] <= 'z' {
		return string(s[0]-'a'+'A') + s[1:]
	}
	return s
}
