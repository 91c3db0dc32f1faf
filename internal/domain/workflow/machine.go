// Package workflow holds the status state machine governing adoption
// application transitions. Stage movement is deliberately not modeled here:
// stage jumps requested by staff are recorded, not policy-checked.
package workflow

import (
	"fmt"

	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// Machine tracks a current status and validates triggers against the
// configured transition table.
type Machine struct {
	current     entity.Status
	transitions map[entity.Status]map[Trigger]entity.Status
}

// State returns the current status
func (m *Machine) State() entity.Status {
	return m.current
}

// CanFire returns true if the trigger is permitted in the current status
func (m *Machine) CanFire(trigger Trigger) bool {
	_, ok := m.transitions[m.current][trigger]
	return ok
}

// Fire executes the trigger, moving to the target status if permitted.
// Firing any transition trigger from a terminal status reports
// ErrTerminalStatus so callers can surface the right failure to staff.
func (m *Machine) Fire(trigger Trigger) error {
	next, ok := m.transitions[m.current][trigger]
	if !ok {
		if m.current.IsTerminal() && trigger != TriggerReopen {
			return fmt.Errorf("%w: cannot fire %s from %s", ErrTerminalStatus, trigger, m.current)
		}
		return fmt.Errorf("%w: cannot fire %s from %s", ErrInvalidTransition, trigger, m.current)
	}
	m.current = next
	return nil
}

// PermittedTriggers returns all triggers that can be fired in the current status
func (m *Machine) PermittedTriggers() []Trigger {
	triggers := make([]Trigger, 0, len(m.transitions[m.current]))
	for trigger := range m.transitions[m.current] {
		triggers = append(triggers, trigger)
	}
	return triggers
}
