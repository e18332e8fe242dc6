package upload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Result records the stored document ids of one subject.
type Result struct {
	SubjectID         string `json:"subject_id"`
	CycleDocumentID   string `json:"cycle_document_id"`
	InsulinDocumentID string `json:"insulin_document_id"`
}

// Failure records a subject that could not be uploaded.
type Failure struct {
	SubjectID string `json:"subject_id"`
	Error     string `json:"error"`
}

// Manifest summarizes one upload run. Uploads and Failures follow record order.
type Manifest struct {
	CollectionID  string    `json:"collection_id"`
	Destination   string    `json:"destination"`
	UploadedAt    string    `json:"uploaded_at"` // RFC 3339, UTC
	TotalSubjects int       `json:"total_subjects"`
	Uploads       []Result  `json:"uploads"`
	Failures      []Failure `json:"failures,omitempty"`
}

// Succeeded reports whether every subject was uploaded.
func (m *Manifest) Succeeded() bool {
	return len(m.Failures) == 0 && len(m.Uploads) == m.TotalSubjects
}

// Write saves the manifest as indented JSON, creating parent directories.
func (m *Manifest) Write(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create manifest dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads a manifest written by Write.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}
