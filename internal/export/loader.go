package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"synth-cohort/internal/questionnaire"
)

// Record is one subject read back from an output directory.
type Record struct {
	Index     int
	SubjectID string
	Key       KeyFile

	Cycle   questionnaire.Response
	Insulin questionnaire.Response

	// Raw documents exactly as written.
	CycleRaw   json.RawMessage
	InsulinRaw json.RawMessage
}

// Load reads every subject in dir. Records follow the manifest order when
// a manifest exists, otherwise key file name order. The manifest is nil when
// absent.
func Load(dir string) (*RunManifest, []Record, error) {
	manifest, err := LoadManifest(dir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, err
	}

	var ids []string
	if manifest != nil {
		ids = manifest.Subjects
	} else {
		ids, err = scanSubjects(dir)
		if err != nil {
			return nil, nil, err
		}
	}

	records := make([]Record, 0, len(ids))
	for i, id := range ids {
		rec, err := LoadSubject(dir, id)
		if err != nil {
			return nil, nil, err
		}
		if manifest != nil {
			rec.Index = i
		}
		records = append(records, *rec)
	}
	return manifest, records, nil
}

// LoadManifest reads the run manifest of dir.
func LoadManifest(dir string) (*RunManifest, error) {
	var m RunManifest
	if err := readJSON(filepath.Join(dir, ManifestFile), &m); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return &m, nil
}

// LoadSubject reads the three files of subjectID.
func LoadSubject(dir, subjectID string) (*Record, error) {
	paths, err := SubjectPaths(dir, subjectID)
	if err != nil {
		return nil, err
	}

	rec := &Record{SubjectID: subjectID}
	if err := readJSON(paths.Key, &rec.Key); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompleteRecord, subjectID, err)
	}
	rec.Index = rec.Key.Index

	if rec.CycleRaw, err = os.ReadFile(paths.Cycle); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompleteRecord, subjectID, err)
	}
	if err := json.Unmarshal(rec.CycleRaw, &rec.Cycle); err != nil {
		return nil, fmt.Errorf("decode cycle response %s: %w", subjectID, err)
	}

	if rec.InsulinRaw, err = os.ReadFile(paths.Insulin); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompleteRecord, subjectID, err)
	}
	if err := json.Unmarshal(rec.InsulinRaw, &rec.Insulin); err != nil {
		return nil, fmt.Errorf("decode insulin response %s: %w", subjectID, err)
	}

	return rec, nil
}

// scanSubjects lists subject ids from key files, ordered by file name.
func scanSubjects(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), keySuffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	ids := make([]string, 0, len(names))
	for _, name := range names {
		var key KeyFile
		if err := readJSON(filepath.Join(dir, name), &key); err != nil {
			return nil, err
		}
		ids = append(ids, key.SubjectID)
	}
	return ids, nil
}
