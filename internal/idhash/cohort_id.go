package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// ComputeCohortID computes a deterministic cohort_id using SHA256.
// Formula: SHA256(seed|size|evaluation_date)
// Returns hex-encoded hash (64 characters).
func ComputeCohortID(seed int64, size int, evaluationDate time.Time) string {
	data := fmt.Sprintf("%d|%d|%s",
		seed,
		size,
		evaluationDate.UTC().Format("2006-01-02"),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
