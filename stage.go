package mecs

// Stage represents a scheduling stage inside one tick.
// Systems are executed in stage order: Before → Default → After.
type Stage int

const (
	// Before stage runs first. Use for structure validation and input
	// gathering that the simulation depends on.
	Before Stage = iota

	// Default stage runs second. Use for machine simulation: burning fuel,
	// crafting, moving fluids and energy.
	Default

	// After stage runs last. Use for bookkeeping that observes the
	// simulated state. Client sync and saving are flushed after it.
	After

	stageCount
)

// String returns the string representation of the stage.
func (s Stage) String() string {
	switch s {
	case Before:
		return "Before"
	case Default:
		return "Default"
	case After:
		return "After"
	default:
		return "Unknown"
	}
}
