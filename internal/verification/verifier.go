// Package verification checks an exported cohort against a fresh replay of
// its run manifest. Generation is deterministic, so every exported field of
// every subject must come back identical.
package verification

import (
	"context"
	"math"
	"time"

	"synth-cohort/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single subject.
type VerificationResult struct {
	SubjectID   string            // verified subject
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	Total     int                  // subjects verified
	Matched   int                  // subjects that matched exactly
	Divergent int                  // subjects with divergences
	Results   []VerificationResult // individual results, draw order
}

// Verifier verifies exported subjects by replaying generation.
type Verifier interface {
	// VerifySubject verifies a single subject by identifier.
	VerifySubject(ctx context.Context, subjectID string) (*VerificationResult, error)

	// VerifyAll verifies every exported subject.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// CompareSubjects compares the exported fields of two subjects and returns
// divergences. Timestamps compare at second resolution, the resolution they
// are exported with.
func CompareSubjects(stored, replayed *domain.Subject) []FieldDivergence {
	var divergences []FieldDivergence
	add := func(field string, expected, actual interface{}) {
		divergences = append(divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.SubjectID != replayed.SubjectID {
		add("SubjectID", stored.SubjectID, replayed.SubjectID)
	}
	if stored.Credential.PublicKey != replayed.Credential.PublicKey {
		add("PublicKey", stored.Credential.PublicKey, replayed.Credential.PublicKey)
	}
	if stored.Credential.Seed != replayed.Credential.Seed {
		add("Seed", "<redacted>", "<redacted>")
	}

	if stored.Age != replayed.Age {
		add("Age", stored.Age, replayed.Age)
	}
	if stored.DeliveryMethod != replayed.DeliveryMethod {
		add("DeliveryMethod", stored.DeliveryMethod, replayed.DeliveryMethod)
	}

	// Cycle
	if !sameDay(stored.ReferenceDate, replayed.ReferenceDate) {
		add("ReferenceDate", stored.ReferenceDate.Format(time.DateOnly), replayed.ReferenceDate.Format(time.DateOnly))
	}
	if stored.CycleLength != replayed.CycleLength {
		add("CycleLength", stored.CycleLength, replayed.CycleLength)
	}
	if stored.Phase != replayed.Phase {
		add("Phase", stored.Phase, replayed.Phase)
	}

	// Physiology
	if !floatEquals(stored.NightGlucose, replayed.NightGlucose) {
		add("NightGlucose", stored.NightGlucose, replayed.NightGlucose)
	}
	if !floatEquals(stored.BasalInsulin, replayed.BasalInsulin) {
		add("BasalInsulin", stored.BasalInsulin, replayed.BasalInsulin)
	}

	if !sameSecond(stored.CycleAuthoredAt, replayed.CycleAuthoredAt) {
		add("CycleAuthoredAt", stored.CycleAuthoredAt, replayed.CycleAuthoredAt)
	}
	if !sameSecond(stored.InsulinAuthoredAt, replayed.InsulinAuthoredAt) {
		add("InsulinAuthoredAt", stored.InsulinAuthoredAt, replayed.InsulinAuthoredAt)
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}

func sameDay(a, b time.Time) bool {
	return a.UTC().Format(time.DateOnly) == b.UTC().Format(time.DateOnly)
}

func sameSecond(a, b time.Time) bool {
	return a.Truncate(time.Second).Equal(b.Truncate(time.Second))
}
