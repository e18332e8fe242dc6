package identity

import (
	"fmt"

	"synth-cohort/internal/domain"
)

// MaxMintAttempts bounds redraws after an identifier collision.
const MaxMintAttempts = 8

// SeedSource supplies key seed bytes.
type SeedSource interface {
	Bytes(n int) []byte
}

// Minter issues identifiers that are unique within one run.
type Minter struct {
	issued      map[string]struct{}
	maxAttempts int
}

// NewMinter creates a Minter with an empty issued set.
func NewMinter() *Minter {
	return &Minter{
		issued:      make(map[string]struct{}),
		maxAttempts: MaxMintAttempts,
	}
}

// Mint draws key seeds from src until it finds an unused identifier.
func (m *Minter) Mint(src SeedSource) (domain.Credential, error) {
	for attempt := 0; attempt < m.maxAttempts; attempt++ {
		cred, err := NewCredential(src.Bytes(SeedSize))
		if err != nil {
			return domain.Credential{}, fmt.Errorf("derive credential: %w", err)
		}
		if _, dup := m.issued[cred.SubjectID]; dup {
			continue
		}
		m.issued[cred.SubjectID] = struct{}{}
		return cred, nil
	}
	return domain.Credential{}, fmt.Errorf("%w: %d collisions after %d issued",
		domain.ErrExhaustedIdentifierSpace, m.maxAttempts, len(m.issued))
}

// Issued returns how many identifiers have been minted.
func (m *Minter) Issued() int {
	return len(m.issued)
}
