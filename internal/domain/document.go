package domain

import "encoding/json"

// Questionnaire schema tags carried by stored documents.
const (
	SchemaCycle   = "flo-cycle-v2"
	SchemaInsulin = "dao-diabetes-insulin-cgm-v2"
)

// StoredDocument is a flat upload record for one questionnaire response.
type StoredDocument struct {
	DocumentID   string          // PRIMARY KEY within a collection
	CollectionID string          // destination collection
	SubjectID    string          // owner identifier
	Schema       string          // SchemaCycle | SchemaInsulin
	Body         json.RawMessage // FHIR QuestionnaireResponse
	StoredAt     int64           // Unix timestamp in milliseconds
}
