// Package identity mints did:key subject identifiers from seeded Ed25519 keys.
package identity

import (
	"bytes"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"synth-cohort/internal/domain"
)

const (
	// SeedSize is the Ed25519 private seed length in bytes.
	SeedSize = 32

	didPrefix = "did:key:"
	// multibase prefix for base58btc
	multibaseBase58 = "z"
)

// ed25519-pub multicodec, varint encoded
var ed25519Codec = []byte{0xed, 0x01}

var (
	ErrMalformedDID  = errors.New("malformed did:key")
	ErrKeyMismatch   = errors.New("credential does not match identifier")
	ErrInvalidSeed   = errors.New("invalid key seed")
	errUnsupportedMC = errors.New("unsupported multicodec")
)

// PublicKey derives the Ed25519 public key for a 32-byte seed.
func PublicKey(seed []byte) ([]byte, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidSeed, len(seed))
	}

	h := sha512.Sum512(seed)
	s, err := edwards25519.NewScalar().SetBytesWithClamping(h[:32])
	if err != nil {
		return nil, fmt.Errorf("clamp scalar: %w", err)
	}

	return new(edwards25519.Point).ScalarBaseMult(s).Bytes(), nil
}

// EncodeDID encodes an Ed25519 public key as a did:key identifier.
func EncodeDID(pub []byte) string {
	buf := make([]byte, 0, len(ed25519Codec)+len(pub))
	buf = append(buf, ed25519Codec...)
	buf = append(buf, pub...)
	return didPrefix + multibaseBase58 + base58.Encode(buf)
}

// DecodeDID returns the public key embedded in a did:key identifier.
func DecodeDID(did string) ([]byte, error) {
	fp, err := Fingerprint(did)
	if err != nil {
		return nil, err
	}

	raw, err := base58.Decode(strings.TrimPrefix(fp, multibaseBase58))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDID, err)
	}
	if !bytes.HasPrefix(raw, ed25519Codec) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedDID, errUnsupportedMC)
	}

	pub := raw[len(ed25519Codec):]
	if len(pub) != 32 {
		return nil, fmt.Errorf("%w: public key is %d bytes", ErrMalformedDID, len(pub))
	}
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDID, err)
	}
	return pub, nil
}

// Fingerprint returns the multibase part of a did:key, usable as a file stem.
func Fingerprint(did string) (string, error) {
	fp, ok := strings.CutPrefix(did, didPrefix)
	if !ok || !strings.HasPrefix(fp, multibaseBase58) || len(fp) < 2 {
		return "", fmt.Errorf("%w: %q", ErrMalformedDID, did)
	}
	return fp, nil
}

// NewCredential derives the identifier and public key for seed.
func NewCredential(seed []byte) (domain.Credential, error) {
	pub, err := PublicKey(seed)
	if err != nil {
		return domain.Credential{}, err
	}
	return domain.Credential{
		SubjectID: EncodeDID(pub),
		Seed:      hex.EncodeToString(seed),
		PublicKey: hex.EncodeToString(pub),
	}, nil
}

// Verify re-derives cred from its seed and checks every field.
func Verify(cred domain.Credential) error {
	seed, err := hex.DecodeString(cred.Seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}

	derived, err := NewCredential(seed)
	if err != nil {
		return err
	}

	if derived.SubjectID != cred.SubjectID {
		return fmt.Errorf("%w: seed derives %s", ErrKeyMismatch, derived.SubjectID)
	}
	if derived.PublicKey != cred.PublicKey {
		return fmt.Errorf("%w: public key differs", ErrKeyMismatch)
	}
	return nil
}
