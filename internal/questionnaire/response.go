// Package questionnaire builds and reads FHIR QuestionnaireResponse documents
// for the cycle and insulin questionnaires.
package questionnaire

import (
	"errors"
	"fmt"
	"time"
)

// Questionnaire identifiers.
const (
	CycleQuestionnaireID   = "38a97cfa-532d-4a38-9541-c9f366a6e1ed"
	InsulinQuestionnaireID = "dbb1ea85-af98-4a86-b2a1-39fb656462da"
)

// Item link ids.
const (
	LinkLMP            = "lmp"
	LinkCycleLength    = "cycle-length"
	LinkDeliveryMethod = "delivery-method"
	LinkBasalDose      = "basal-dose-24h"
	LinkNightGlucose   = "cgm-avg-0006"
	LinkAge            = "age"
)

const (
	resourceType    = "QuestionnaireResponse"
	statusCompleted = "completed"
	dateLayout      = "2006-01-02"
)

// ErrMalformedResponse is returned when a document is not a readable response.
var ErrMalformedResponse = errors.New("malformed questionnaire response")

// Response is a FHIR QuestionnaireResponse.
type Response struct {
	ResourceType  string    `json:"resourceType"`
	ID            string    `json:"id"`
	Questionnaire string    `json:"questionnaire"`
	Status        string    `json:"status"`
	Subject       Reference `json:"subject"`
	Authored      string    `json:"authored"`
	Item          []Item    `json:"item"`
}

// Reference points at the responding subject.
type Reference struct {
	Reference string `json:"reference"`
}

// Item is one answered question.
type Item struct {
	LinkID string   `json:"linkId"`
	Text   string   `json:"text"`
	Answer []Answer `json:"answer"`
}

// Answer holds exactly one typed value.
type Answer struct {
	ValueDate    string   `json:"valueDate,omitempty"`
	ValueInteger *int     `json:"valueInteger,omitempty"`
	ValueString  string   `json:"valueString,omitempty"`
	ValueDecimal *float64 `json:"valueDecimal,omitempty"`
}

// AuthoredAt parses the authored timestamp.
func (r *Response) AuthoredAt() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, r.Authored)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: authored: %v", ErrMalformedResponse, err)
	}
	return t, nil
}

func (r *Response) answer(linkID string) (Answer, error) {
	for _, it := range r.Item {
		if it.LinkID == linkID {
			if len(it.Answer) != 1 {
				return Answer{}, fmt.Errorf("%w: item %s has %d answers", ErrMalformedResponse, linkID, len(it.Answer))
			}
			return it.Answer[0], nil
		}
	}
	return Answer{}, fmt.Errorf("%w: missing item %s", ErrMalformedResponse, linkID)
}

func (r *Response) check(questionnaireID string) error {
	switch {
	case r.ResourceType != resourceType:
		return fmt.Errorf("%w: resourceType %q", ErrMalformedResponse, r.ResourceType)
	case r.Questionnaire != questionnaireID:
		return fmt.Errorf("%w: questionnaire %q, want %q", ErrMalformedResponse, r.Questionnaire, questionnaireID)
	case r.Subject.Reference == "":
		return fmt.Errorf("%w: missing subject reference", ErrMalformedResponse)
	}
	return nil
}

func (r *Response) integer(linkID string) (int, error) {
	a, err := r.answer(linkID)
	if err != nil {
		return 0, err
	}
	if a.ValueInteger == nil {
		return 0, fmt.Errorf("%w: item %s has no valueInteger", ErrMalformedResponse, linkID)
	}
	return *a.ValueInteger, nil
}

func (r *Response) decimal(linkID string) (float64, error) {
	a, err := r.answer(linkID)
	if err != nil {
		return 0, err
	}
	if a.ValueDecimal == nil {
		return 0, fmt.Errorf("%w: item %s has no valueDecimal", ErrMalformedResponse, linkID)
	}
	return *a.ValueDecimal, nil
}

func intAnswer(v int) []Answer {
	return []Answer{{ValueInteger: &v}}
}

func decimalAnswer(v float64) []Answer {
	return []Answer{{ValueDecimal: &v}}
}
