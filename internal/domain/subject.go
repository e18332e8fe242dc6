package domain

import "time"

// Credential is the key material behind a subject identifier.
// Seed is the 32-byte Ed25519 private seed, hex encoded.
type Credential struct {
	SubjectID string `json:"subject_id"`
	Seed      string `json:"seed"`
	PublicKey string `json:"public_key"`
}

// Subject is one synthetic cohort member. Values are immutable once assembled.
type Subject struct {
	Index     int    // position in draw order
	SubjectID string // did:key identifier, unique within a run

	Age            int
	DeliveryMethod DeliveryMethod

	ReferenceDate time.Time // last period start, UTC midnight
	CycleLength   int       // days
	Phase         Phase     // derived, never drawn
	DaysElapsed   int       // days into the current cycle on the evaluation date
	PhaseBoundary time.Time // first day of the luteal phase in the current cycle

	NightGlucose float64 // mg/dL, 00:00-06:00 average
	BasalInsulin float64 // units per 24h

	CycleAuthoredAt   time.Time // cycle questionnaire submission time
	InsulinAuthoredAt time.Time // insulin questionnaire submission time

	Credential Credential
}
