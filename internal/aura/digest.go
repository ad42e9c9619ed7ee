package aura

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"math/bits"

	dErrors "ghostauth/pkg/domain-errors"
)

// DigestSize is the byte length of an aura digest.
const DigestSize = sha256.Size

// Digest is the 32-byte aura of a session.
type Digest [DigestSize]byte

// String renders the digest as 64 lowercase hex characters.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest decodes a 64-character hex digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	if len(s) != hex.EncodedLen(DigestSize) {
		return d, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("digest must be %d hex characters", hex.EncodedLen(DigestSize)))
	}
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, dErrors.Wrap(err, dErrors.CodeValidation, "digest is not valid hex")
	}
	return d, nil
}

// HammingScore compares two hex digests and returns a similarity in [0,100]:
// round((1 - differingBits/256) * 100). Both inputs must be 64-character hex.
func HammingScore(baseline, current string) (int, error) {
	a, err := ParseDigest(baseline)
	if err != nil {
		return 0, fmt.Errorf("baseline: %w", err)
	}
	b, err := ParseDigest(current)
	if err != nil {
		return 0, fmt.Errorf("current: %w", err)
	}

	diff := 0
	for i := range a {
		diff += bits.OnesCount8(a[i] ^ b[i])
	}
	const total = DigestSize * 8
	return max(0, int(math.Round((1-float64(diff)/total)*100))), nil
}
