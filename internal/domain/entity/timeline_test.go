package entity

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthor_Exclusivity(t *testing.T) {
	human := HumanAuthor("staff-1")
	userID, ok := human.UserID()
	require.True(t, ok)
	assert.Equal(t, "staff-1", userID)
	assert.False(t, human.IsSystem())

	system := SystemAuthor()
	_, ok = system.UserID()
	assert.False(t, ok)
	assert.True(t, system.IsSystem())
}

func TestAuthor_ZeroValueIsSystem(t *testing.T) {
	// A zero Author or an empty user id must never attribute an event to a
	// blank human user
	for name, author := range map[string]Author{
		"zero value":  {},
		"empty human": HumanAuthor(""),
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, author.IsSystem())
			_, ok := author.UserID()
			assert.False(t, ok)

			ev := newEvent("app-1", EventNoteAdded, "note", author)
			assert.Nil(t, ev.CreatedBy)
			assert.True(t, ev.CreatedBySystem)
		})
	}
}

func TestTimelineEvent_AuthorRoundTrip(t *testing.T) {
	ev := NewNoteEvent("app-1", "general", "checked in with adopter", HumanAuthor("staff-7"))
	require.NotNil(t, ev.CreatedBy)
	assert.Equal(t, "staff-7", *ev.CreatedBy)
	assert.False(t, ev.CreatedBySystem)

	author := ev.Author()
	userID, ok := author.UserID()
	require.True(t, ok)
	assert.Equal(t, "staff-7", userID)

	sysEv := NewAutoProgressionEvent("app-1", "all references verified", StageReferenceCheck, StageHomeVisit)
	assert.Nil(t, sysEv.CreatedBy)
	assert.True(t, sysEv.CreatedBySystem)
	assert.True(t, sysEv.Author().IsSystem())
}

func TestNewStageChangeEvent(t *testing.T) {
	ev := NewStageChangeEvent("app-1", StageInitialReview, StageReferenceCheck, HumanAuthor("staff-1"), "looks promising")

	assert.Equal(t, EventStageChange, ev.EventType)
	assert.Equal(t, "Stage changed from initial_review to reference_check", ev.Title)
	assert.Contains(t, ev.Description, "References are being checked")
	assert.Contains(t, ev.Description, "looks promising")
	require.NotNil(t, ev.PreviousStage)
	require.NotNil(t, ev.NewStage)
	assert.Equal(t, StageInitialReview, *ev.PreviousStage)
	assert.Equal(t, StageReferenceCheck, *ev.NewStage)
	assert.Equal(t, false, ev.Metadata["automated"])
}

func TestNewSubmittedEvent(t *testing.T) {
	ev := NewSubmittedEvent("app-1", SystemAuthor())

	assert.Equal(t, EventStatusUpdate, ev.EventType)
	assert.Nil(t, ev.PreviousStatus)
	require.NotNil(t, ev.NewStatus)
	assert.Equal(t, StatusPending, *ev.NewStatus)
	assert.True(t, ev.CreatedBySystem)
}

func TestNewDecisionEvent(t *testing.T) {
	ev := NewDecisionEvent("app-1", StatusRejected, HumanAuthor("staff-2"), "home not suitable for a large dog")

	assert.Equal(t, EventDecisionMade, ev.EventType)
	assert.Equal(t, "Application rejected", ev.Title)
	assert.Equal(t, "home not suitable for a large dog", ev.Description)
	assert.Equal(t, "rejected", ev.Metadata["decision"])
	assert.Equal(t, "home not suitable for a large dog", ev.Metadata["reason"])
}

func TestNewNoteEvent_TruncatesLongContent(t *testing.T) {
	long := strings.Repeat("x", 250)
	ev := NewNoteEvent("app-1", "interview", long, HumanAuthor("staff-1"))

	assert.Equal(t, EventNoteAdded, ev.EventType)
	assert.Equal(t, "Interview note added", ev.Title)
	assert.Len(t, ev.Description, noteDescriptionLimit+3)
	assert.True(t, strings.HasSuffix(ev.Description, "..."))
	assert.Equal(t, long, ev.Metadata["full_content"])
	assert.Equal(t, "interview", ev.Metadata["note_type"])
}

func TestNewNoteEvent_ShortContentKeptWhole(t *testing.T) {
	ev := NewNoteEvent("app-1", "general", "quick call", HumanAuthor("staff-1"))
	assert.Equal(t, "quick call", ev.Description)
	assert.Equal(t, "quick call", ev.Metadata["full_content"])
}

func TestNewReferenceEvent_TypeMapping(t *testing.T) {
	ref := &Reference{ReferenceID: "ref-1", Name: "Jordan Blake"}

	tests := []struct {
		status   ReferenceStatus
		expected EventType
	}{
		{ReferenceStatusContacted, EventReferenceContacted},
		{ReferenceStatusCompleted, EventReferenceVerified},
		{ReferenceStatusPending, EventManualOverride},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ev := NewReferenceEvent("app-1", ref, tt.status, HumanAuthor("staff-1"), "")
			assert.Equal(t, tt.expected, ev.EventType)
			assert.Equal(t, "ref-1", ev.Metadata["reference_id"])
			assert.Equal(t, "Jordan Blake", ev.Metadata["reference_name"])
		})
	}
}

func TestNewHomeVisitScheduledEvent(t *testing.T) {
	date := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	visit := &HomeVisit{
		HomeVisitID:   "visit-1",
		ApplicationID: "app-1",
		ScheduledDate: date,
		StaffMemberID: "staff-3",
		Status:        HomeVisitStatusScheduled,
	}
	ev := NewHomeVisitScheduledEvent("app-1", visit, HumanAuthor("staff-3"), "bring checklist")

	assert.Equal(t, EventHomeVisitScheduled, ev.EventType)
	assert.Contains(t, ev.Description, "2026-03-14")
	assert.Contains(t, ev.Description, "bring checklist")
	assert.Equal(t, date.Format(time.RFC3339), ev.Metadata["visit_date"])
	assert.Equal(t, "staff-3", ev.Metadata["staff_member_id"])
}

func TestNewHomeVisitStatusEvent_TypeMapping(t *testing.T) {
	date := time.Date(2026, 3, 21, 10, 0, 0, 0, time.UTC)
	visit := &HomeVisit{
		HomeVisitID:   "visit-1",
		ApplicationID: "app-1",
		ScheduledDate: date,
		StaffMemberID: "staff-3",
	}

	tests := []struct {
		status   HomeVisitStatus
		expected EventType
	}{
		{HomeVisitStatusCompleted, EventHomeVisitCompleted},
		{HomeVisitStatusCancelled, EventHomeVisitCancelled},
		{HomeVisitStatusRescheduled, EventHomeVisitRescheduled},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			ev := NewHomeVisitStatusEvent("app-1", visit, tt.status, HumanAuthor("staff-3"), "gate code 4411")
			assert.Equal(t, tt.expected, ev.EventType)
			assert.Equal(t, "gate code 4411", ev.Description)
			assert.Equal(t, "visit-1", ev.Metadata["home_visit_id"])
			assert.Equal(t, date.Format(time.RFC3339), ev.Metadata["visit_date"])
			assert.Equal(t, string(tt.status), ev.Metadata["visit_status"])
		})
	}

	ev := NewHomeVisitStatusEvent("app-1", visit, HomeVisitStatusRescheduled, HumanAuthor("staff-3"), "")
	assert.Equal(t, "Home visit rescheduled to 2026-03-21", ev.Title)
}

func TestNewWithdrawnEvent(t *testing.T) {
	ev := NewWithdrawnEvent("app-1", StatusUnderReview, HumanAuthor("staff-1"), "adopter moved away")

	assert.Equal(t, EventApplicationWithdrawn, ev.EventType)
	require.NotNil(t, ev.PreviousStatus)
	require.NotNil(t, ev.NewStatus)
	assert.Equal(t, StatusUnderReview, *ev.PreviousStatus)
	assert.Equal(t, StatusWithdrawn, *ev.NewStatus)
	assert.Equal(t, "adopter moved away", ev.Metadata["withdrawal_reason"])
}

func TestNewReopenedEvent(t *testing.T) {
	ev := NewReopenedEvent("app-1", StatusRejected, HumanAuthor("staff-1"), "new evidence provided")

	assert.Equal(t, EventApplicationReopened, ev.EventType)
	assert.Equal(t, "rejected", ev.Metadata["reopened_from"])
	require.NotNil(t, ev.NewStatus)
	assert.Equal(t, StatusUnderReview, *ev.NewStatus)
}

func TestEventType_IsValid(t *testing.T) {
	assert.True(t, EventStageChange.IsValid())
	assert.True(t, EventSystemAutoProgress.IsValid())
	assert.False(t, EventType("made_up").IsValid())
	assert.False(t, EventType("").IsValid())
}
