package domain

// Phase is the menstrual-cycle phase a subject is in on the evaluation date.
// It is never drawn directly; the phase engine derives it from the
// reference date and cycle length.
type Phase string

const (
	PhaseFollicular Phase = "follicular"
	PhaseLuteal     Phase = "luteal"
)

// Phases lists every phase in report order.
var Phases = []Phase{PhaseFollicular, PhaseLuteal}

// String returns the string representation of Phase.
func (p Phase) String() string {
	return string(p)
}

// IsValid checks if the phase is a valid value.
func (p Phase) IsValid() bool {
	return p == PhaseFollicular || p == PhaseLuteal
}
