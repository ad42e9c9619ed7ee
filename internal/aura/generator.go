// Package aura derives the fixed-length behavioral digest of a session.
//
// The feature vector is quantized into an integer cover, a SHA-256 of the raw
// float32 vector is embedded into the cover's least-significant bits, and the
// resulting carrier is hashed again. The carrier has one slot per secret bit
// (256); the 11 cover values are extended with random padding drawn from the
// generator's RandomSource, so the final digest is not a pure function of the
// features.
package aura

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"ghostauth/internal/aura/stego"
	"ghostauth/internal/profiling"
	dErrors "ghostauth/pkg/domain-errors"
)

// QuantizationScale is applied to each feature before rounding to int32.
const QuantizationScale = 1000

// Result exposes every intermediate of one generation.
type Result struct {
	Vector  []float32
	Secret  [sha256.Size]byte
	Cover   []int32
	Carrier []int32
	Digest  Digest
}

// Generator produces aura digests. It is safe for concurrent use when its
// RandomSource is.
type Generator struct {
	source RandomSource
}

// NewGenerator builds a generator drawing padding from source.
func NewGenerator(source RandomSource) *Generator {
	if source == nil {
		source = NewLockedSource()
	}
	return &Generator{source: source}
}

// Generate returns the digest for fv.
func (g *Generator) Generate(fv profiling.FeatureVector) (Digest, error) {
	res, err := g.GenerateDetailed(fv)
	if err != nil {
		return Digest{}, err
	}
	return res.Digest, nil
}

// GenerateDetailed runs the full pipeline and returns its intermediates.
// A non-finite feature means the extractor broke its contract and is
// reported as an internal error.
func (g *Generator) GenerateDetailed(fv profiling.FeatureVector) (*Result, error) {
	for i, v := range fv.Values() {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, dErrors.New(dErrors.CodeInternal,
				fmt.Sprintf("feature %s is not a finite number", profiling.FeatureNames[i]))
		}
	}

	vector := Vectorize(fv)
	secret := SecretDigest(vector)
	cover := Quantize(vector)
	carrier := stego.Embed(cover, secret[:], g.source)

	return &Result{
		Vector:  vector,
		Secret:  secret,
		Cover:   cover,
		Carrier: carrier,
		Digest:  sha256.Sum256(Serialize(carrier)),
	}, nil
}

// Vectorize orders the features by name into a float32 array.
func Vectorize(fv profiling.FeatureVector) []float32 {
	values := fv.Values()
	out := make([]float32, len(values))
	for i, v := range values {
		out[i] = float32(v)
	}
	return out
}

// SecretDigest hashes the little-endian float32 bytes of v.
func SecretDigest(v []float32) [sha256.Size]byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return sha256.Sum256(buf)
}

// Quantize scales v by QuantizationScale in float32 and rounds half away from
// zero to int32, saturating at the int32 range. NaN quantizes to 0.
func Quantize(v []float32) []int32 {
	out := make([]int32, len(v))
	for i, f := range v {
		scaled := float64(f * QuantizationScale)
		switch {
		case math.IsNaN(scaled):
			out[i] = 0
		case scaled >= math.MaxInt32:
			out[i] = math.MaxInt32
		case scaled <= math.MinInt32:
			out[i] = math.MinInt32
		default:
			out[i] = int32(math.Round(scaled))
		}
	}
	return out
}

// Serialize encodes the carrier as little-endian int32s.
func Serialize(carrier []int32) []byte {
	buf := make([]byte, 4*len(carrier))
	for i, v := range carrier {
		binary.LittleEndian.PutUint32(buf[4*i:], uint32(v))
	}
	return buf
}
