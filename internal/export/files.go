// Package export writes generated cohorts to disk and reads them back.
//
// Layout of an output directory:
//
//	cohort.json          run manifest, subject ids in draw order
//	<fp>.key.json        subject credential
//	<fp>_flo.json        cycle questionnaire response
//	<fp>_dao.json        insulin questionnaire response
//
// where <fp> is the multibase fingerprint of the subject's did:key.
package export

import (
	"errors"
	"path/filepath"

	"synth-cohort/internal/cohort"
	"synth-cohort/internal/identity"
)

// DefaultDir is the output directory used when none is given.
const DefaultDir = "output"

// ManifestFile is the run manifest file name.
const ManifestFile = "cohort.json"

const (
	keySuffix     = ".key.json"
	cycleSuffix   = "_flo.json"
	insulinSuffix = "_dao.json"
)

// KeyType names the credential algorithm in key files.
const KeyType = "Ed25519"

// ErrIncompleteRecord is returned when a subject is missing one of its files.
var ErrIncompleteRecord = errors.New("incomplete subject record")

// RunManifest describes one exported generation run.
type RunManifest struct {
	CohortID       string        `json:"cohort_id"`
	Seed           int64         `json:"seed"`
	Size           int           `json:"size"`
	EvaluationDate string        `json:"evaluation_date"` // YYYY-MM-DD
	Config         cohort.Config `json:"config"`
	Subjects       []string      `json:"subjects"`
}

// KeyFile is the on-disk credential of one subject.
type KeyFile struct {
	SubjectID string `json:"subject_id"`
	KeyType   string `json:"key_type"`
	Seed      string `json:"seed"`
	PublicKey string `json:"public_key"`
	Index     int    `json:"index"`
}

// Paths holds the three file paths of one subject.
type Paths struct {
	Key     string
	Cycle   string
	Insulin string
}

// SubjectPaths returns the file paths for subjectID inside dir.
func SubjectPaths(dir, subjectID string) (Paths, error) {
	fp, err := identity.Fingerprint(subjectID)
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Key:     filepath.Join(dir, fp+keySuffix),
		Cycle:   filepath.Join(dir, fp+cycleSuffix),
		Insulin: filepath.Join(dir, fp+insulinSuffix),
	}, nil
}
