package idhash

import (
	"github.com/google/uuid"
)

// responseNamespace scopes questionnaire response ids.
var responseNamespace = uuid.MustParse("5b0c1f1e-6f1d-4c8e-9d55-1b7e2f0a9c31")

// ComputeResponseID computes a deterministic questionnaire response id.
// Formula: UUIDv5(namespace, subject_id|questionnaire_id)
func ComputeResponseID(subjectID, questionnaireID string) string {
	return uuid.NewSHA1(responseNamespace, []byte(subjectID+"|"+questionnaireID)).String()
}
