package domain

// SubjectRow is the flat analytics view of one exported subject.
// Corresponds to the subject_rows table in ClickHouse.
type SubjectRow struct {
	CohortID        string
	Position        int // draw order within the cohort
	SubjectID       string
	Age             int
	DeliveryMethod  DeliveryMethod
	LMPDate         string // YYYY-MM-DD
	CycleLength     int
	CyclePhase      Phase
	BasalInsulin    float64
	NightGlucose    float64
	CycleResponseID string
	CycleAuthored   string // RFC 3339
	InsulinResponse string
	InsulinAuthored string // RFC 3339
}
