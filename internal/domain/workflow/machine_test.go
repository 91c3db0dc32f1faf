package workflow

import (
	"errors"
	"testing"

	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

func TestStatusMachine_HappyPath(t *testing.T) {
	statuses := NewStatusMachine()
	machine := statuses.Build(entity.StatusPending)

	steps := []struct {
		trigger  Trigger
		expected entity.Status
	}{
		{TriggerStartReview, entity.StatusUnderReview},
		{TriggerApprove, entity.StatusApproved},
	}

	for i, step := range steps {
		if err := machine.Fire(step.trigger); err != nil {
			t.Fatalf("Step %d: Fire(%v) failed: %v", i, step.trigger, err)
		}
		if machine.State() != step.expected {
			t.Errorf("Step %d: State = %v, want %v", i, machine.State(), step.expected)
		}
	}
}

func TestStatusMachine_DirectDecisionFromPending(t *testing.T) {
	statuses := NewStatusMachine()

	for _, tt := range []struct {
		trigger  Trigger
		expected entity.Status
	}{
		{TriggerApprove, entity.StatusApproved},
		{TriggerReject, entity.StatusRejected},
		{TriggerWithdraw, entity.StatusWithdrawn},
	} {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			machine := statuses.Build(entity.StatusPending)
			if err := machine.Fire(tt.trigger); err != nil {
				t.Fatalf("Fire(%v) failed: %v", tt.trigger, err)
			}
			if machine.State() != tt.expected {
				t.Errorf("State = %v, want %v", machine.State(), tt.expected)
			}
		})
	}
}

func TestStatusMachine_ApprovedIsFinal(t *testing.T) {
	statuses := NewStatusMachine()
	machine := statuses.Build(entity.StatusApproved)

	for _, trigger := range []Trigger{TriggerStartReview, TriggerApprove, TriggerReject, TriggerWithdraw} {
		err := machine.Fire(trigger)
		if err == nil {
			t.Fatalf("Fire(%v) should fail from approved", trigger)
		}
		if !errors.Is(err, ErrTerminalStatus) {
			t.Errorf("Fire(%v) error = %v, want ErrTerminalStatus", trigger, err)
		}
		if machine.State() != entity.StatusApproved {
			t.Errorf("State changed after failed Fire, got %v", machine.State())
		}
	}

	// Approved cannot even be reopened
	if err := machine.Fire(TriggerReopen); err == nil {
		t.Fatal("Fire(TriggerReopen) should fail from approved")
	}
}

func TestStatusMachine_ReopenPaths(t *testing.T) {
	statuses := NewStatusMachine()

	for _, from := range []entity.Status{entity.StatusRejected, entity.StatusWithdrawn} {
		t.Run(from.String(), func(t *testing.T) {
			machine := statuses.Build(from)
			if err := machine.Fire(TriggerReopen); err != nil {
				t.Fatalf("Fire(TriggerReopen) failed: %v", err)
			}
			if machine.State() != entity.StatusUnderReview {
				t.Errorf("State = %v, want %v", machine.State(), entity.StatusUnderReview)
			}
		})
	}
}

func TestStatusMachine_InvalidTransition(t *testing.T) {
	statuses := NewStatusMachine()
	machine := statuses.Build(entity.StatusUnderReview)

	err := machine.Fire(TriggerStartReview)
	if err == nil {
		t.Fatal("Fire(TriggerStartReview) should fail from under_review")
	}
	if !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("error = %v, want ErrInvalidTransition", err)
	}
	if machine.State() != entity.StatusUnderReview {
		t.Errorf("State should remain under_review, got %v", machine.State())
	}
}

func TestStatusMachine_CanFire(t *testing.T) {
	statuses := NewStatusMachine()
	machine := statuses.Build(entity.StatusPending)

	tests := []struct {
		trigger  Trigger
		expected bool
	}{
		{TriggerStartReview, true},
		{TriggerApprove, true},
		{TriggerReject, true},
		{TriggerWithdraw, true},
		{TriggerReopen, false},
	}

	for _, tt := range tests {
		t.Run(tt.trigger.String(), func(t *testing.T) {
			if got := machine.CanFire(tt.trigger); got != tt.expected {
				t.Errorf("CanFire(%v) = %v, want %v", tt.trigger, got, tt.expected)
			}
		})
	}
}

func TestStatusMachine_PermittedTriggers(t *testing.T) {
	statuses := NewStatusMachine()

	triggers := statuses.Build(entity.StatusRejected).PermittedTriggers()
	if len(triggers) != 1 || triggers[0] != TriggerReopen {
		t.Errorf("PermittedTriggers() = %v, want [reopen]", triggers)
	}

	if got := statuses.Build(entity.StatusApproved).PermittedTriggers(); len(got) != 0 {
		t.Errorf("PermittedTriggers() from approved = %v, want empty", got)
	}
}

func TestStatusMachine_Independence(t *testing.T) {
	statuses := NewStatusMachine()
	machine1 := statuses.Build(entity.StatusPending)
	machine2 := statuses.Build(entity.StatusPending)

	if err := machine1.Fire(TriggerStartReview); err != nil {
		t.Fatalf("Fire failed: %v", err)
	}
	if machine2.State() != entity.StatusPending {
		t.Errorf("machine2 state = %v, machines should be independent", machine2.State())
	}
}

func TestBuilder_ConfigurePanicsOnInvalidStatus(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Configure() should panic on invalid status")
		}
	}()
	NewBuilder().Configure(entity.Status("bogus"))
}

func TestBuilder_BuildPanicsOnInvalidInitialStatus(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Build() should panic on invalid initial status")
		}
	}()
	NewStatusMachine().Build(entity.Status("bogus"))
}
