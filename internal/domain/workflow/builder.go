package workflow

import (
	"fmt"

	"github.com/pawshome/adoption-workflow/internal/domain/entity"
)

// Builder assembles a transition table that machines are stamped from.
// Configuration happens once at startup; Build is cheap and safe to call
// per operation.
type Builder struct {
	transitions map[entity.Status]map[Trigger]entity.Status
}

// StatusConfig configures transitions out of a specific status
type StatusConfig struct {
	builder *Builder
	from    entity.Status
}

// NewBuilder creates an empty state machine builder
func NewBuilder() *Builder {
	return &Builder{
		transitions: make(map[entity.Status]map[Trigger]entity.Status),
	}
}

// Configure returns a configuration handle for the given status
func (b *Builder) Configure(status entity.Status) *StatusConfig {
	if !status.IsValid() {
		panic(fmt.Sprintf("invalid status: %s", status))
	}
	if _, ok := b.transitions[status]; !ok {
		b.transitions[status] = make(map[Trigger]entity.Status)
	}
	return &StatusConfig{builder: b, from: status}
}

// Permit allows a trigger to transition to the target status
func (c *StatusConfig) Permit(trigger Trigger, to entity.Status) *StatusConfig {
	if !to.IsValid() {
		panic(fmt.Sprintf("invalid target status: %s", to))
	}
	c.builder.transitions[c.from][trigger] = to
	return c
}

// Build creates a machine positioned at the given status. The transition
// table is shared read-only between machines.
func (b *Builder) Build(initial entity.Status) *Machine {
	if !initial.IsValid() {
		panic(fmt.Sprintf("invalid initial status: %s", initial))
	}
	return &Machine{
		current:     initial,
		transitions: b.transitions,
	}
}

// NewStatusMachine builds the transition table for the adoption application
// lifecycle: pending -> under_review -> {approved | rejected | withdrawn}.
// Approved is final; rejected and withdrawn can be reopened back into review.
func NewStatusMachine() *Builder {
	b := NewBuilder()

	b.Configure(entity.StatusPending).
		Permit(TriggerStartReview, entity.StatusUnderReview).
		Permit(TriggerApprove, entity.StatusApproved).
		Permit(TriggerReject, entity.StatusRejected).
		Permit(TriggerWithdraw, entity.StatusWithdrawn)

	b.Configure(entity.StatusUnderReview).
		Permit(TriggerApprove, entity.StatusApproved).
		Permit(TriggerReject, entity.StatusRejected).
		Permit(TriggerWithdraw, entity.StatusWithdrawn)

	b.Configure(entity.StatusRejected).
		Permit(TriggerReopen, entity.StatusUnderReview)

	b.Configure(entity.StatusWithdrawn).
		Permit(TriggerReopen, entity.StatusUnderReview)

	return b
}
