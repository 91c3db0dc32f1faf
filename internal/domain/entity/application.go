package entity

import (
	"encoding/json"
	"time"
)

// Status represents the outcome state of an adoption application.
type Status string

const (
	StatusPending     Status = "pending"
	StatusUnderReview Status = "under_review"
	StatusApproved    Status = "approved"
	StatusRejected    Status = "rejected"
	StatusWithdrawn   Status = "withdrawn"
)

var validStatuses = map[Status]bool{
	StatusPending:     true,
	StatusUnderReview: true,
	StatusApproved:    true,
	StatusRejected:    true,
	StatusWithdrawn:   true,
}

var terminalStatuses = map[Status]bool{
	StatusApproved:  true,
	StatusRejected:  true,
	StatusWithdrawn: true,
}

// IsValid returns true if the status is a known application status
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal returns true if no further workflow transition is permitted
func (s Status) IsTerminal() bool {
	return terminalStatuses[s]
}

// String returns the string representation of the status
func (s Status) String() string {
	return string(s)
}

// Stage represents the current phase of the review workflow.
// Stage transitions are recorded faithfully but not policy-restricted;
// non-adjacent jumps requested by staff are permitted.
type Stage string

const (
	StageInitialReview  Stage = "initial_review"
	StageReferenceCheck Stage = "reference_check"
	StageHomeVisit      Stage = "home_visit"
	StageFinalDecision  Stage = "final_decision"
	StageCompleted      Stage = "completed"
)

var validStages = map[Stage]bool{
	StageInitialReview:  true,
	StageReferenceCheck: true,
	StageHomeVisit:      true,
	StageFinalDecision:  true,
	StageCompleted:      true,
}

// IsValid returns true if the stage is a known review stage
func (s Stage) IsValid() bool {
	return validStages[s]
}

// String returns the string representation of the stage
func (s Stage) String() string {
	return string(s)
}

// ReferenceStatus represents the verification state of a single reference
type ReferenceStatus string

const (
	ReferenceStatusPending   ReferenceStatus = "pending"
	ReferenceStatusContacted ReferenceStatus = "contacted"
	ReferenceStatusCompleted ReferenceStatus = "completed"
)

// IsValid returns true if the reference status is known
func (s ReferenceStatus) IsValid() bool {
	switch s {
	case ReferenceStatusPending, ReferenceStatusContacted, ReferenceStatusCompleted:
		return true
	default:
		return false
	}
}

// Reference is one personal reference attached to an application.
// The workflow engine only ever updates its status sub-fields; the rest
// is owned by the applicant's submission.
type Reference struct {
	ReferenceID   string          `json:"reference_id"`
	ApplicationID string          `json:"application_id"`
	Name          string          `json:"name"`
	Relationship  string          `json:"relationship,omitempty"`
	Phone         string          `json:"phone,omitempty"`
	Email         string          `json:"email,omitempty"`
	Status        ReferenceStatus `json:"status"`
	ContactedAt   *time.Time      `json:"contacted_at,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// Application is the subject of review: an adopter's request to adopt a
// specific pet from a specific rescue. Status and stage are mutated only
// through engine-validated transitions; the record is never hard-deleted.
type Application struct {
	ApplicationID string `json:"application_id"`
	PetID         string `json:"pet_id"`
	UserID        string `json:"user_id"`
	RescueID      string `json:"rescue_id"`

	Status Status `json:"status"`
	Stage  Stage  `json:"stage"`

	// Structured submission payload, opaque to the workflow engine
	BasicInfo       json.RawMessage `json:"basic_info,omitempty"`
	LivingSituation json.RawMessage `json:"living_situation,omitempty"`
	PetExperience   json.RawMessage `json:"pet_experience,omitempty"`

	References []Reference `json:"references"`

	Notes           string `json:"notes,omitempty"`
	RejectionReason string `json:"rejection_reason,omitempty"`

	SubmittedAt time.Time  `json:"submitted_at"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`

	// Version guards concurrent state updates (optimistic concurrency)
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FindReference returns the reference with the given ID, or nil
func (a *Application) FindReference(referenceID string) *Reference {
	for i := range a.References {
		if a.References[i].ReferenceID == referenceID {
			return &a.References[i]
		}
	}
	return nil
}

// TerminalTimestamp returns the timestamp of the terminal transition, if any.
// At most one of approved/rejected/withdrawn is ever populated.
func (a *Application) TerminalTimestamp() *time.Time {
	switch {
	case a.ApprovedAt != nil:
		return a.ApprovedAt
	case a.RejectedAt != nil:
		return a.RejectedAt
	case a.WithdrawnAt != nil:
		return a.WithdrawnAt
	default:
		return nil
	}
}

// AppendNote appends free-form note text to the application's running notes
func (a *Application) AppendNote(notes string) {
	if notes == "" {
		return
	}
	if a.Notes == "" {
		a.Notes = notes
		return
	}
	a.Notes = a.Notes + "\n\n" + notes
}

// HomeVisitStatus represents the lifecycle state of a scheduled home visit
type HomeVisitStatus string

const (
	HomeVisitStatusScheduled   HomeVisitStatus = "scheduled"
	HomeVisitStatusCompleted   HomeVisitStatus = "completed"
	HomeVisitStatusRescheduled HomeVisitStatus = "rescheduled"
	HomeVisitStatusCancelled   HomeVisitStatus = "cancelled"
)

// IsValid returns true if the home visit status is known
func (s HomeVisitStatus) IsValid() bool {
	switch s {
	case HomeVisitStatusScheduled, HomeVisitStatusCompleted, HomeVisitStatusRescheduled, HomeVisitStatusCancelled:
		return true
	default:
		return false
	}
}

// HomeVisit is a scheduled visit to an applicant's home
type HomeVisit struct {
	HomeVisitID   string          `json:"home_visit_id"`
	ApplicationID string          `json:"application_id"`
	ScheduledDate time.Time       `json:"scheduled_date"`
	StaffMemberID string          `json:"staff_member_id"`
	Status        HomeVisitStatus `json:"status"`
	Notes         string          `json:"notes,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}
