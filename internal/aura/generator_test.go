package aura

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"

	"ghostauth/internal/aura/stego"
	"ghostauth/internal/profiling"
	dErrors "ghostauth/pkg/domain-errors"
)

type GeneratorSuite struct {
	suite.Suite
	fv profiling.FeatureVector
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.fv = profiling.FeatureVector{
		Battery:         72.5,
		Hesitation:      1.25,
		HoverMean:       310,
		IntentDrift:     4,
		LocationLat:     37.7749,
		LocationLng:     -122.4194,
		SwitchbackLoops: 2,
		TapMean:         0.43,
		TapStd:          0.07,
		TimeOfDay:       14.5,
		TremorStd:       0.012,
	}
}

func (s *GeneratorSuite) TestPipelineIntermediates() {
	res, err := NewGenerator(NewSeededSource(42)).GenerateDetailed(s.fv)
	s.Require().NoError(err)

	s.Len(res.Vector, len(profiling.FeatureNames))
	s.Equal(float32(72.5), res.Vector[0], "battery sorts first")
	s.Equal(float32(0.012), res.Vector[10], "tremor_std sorts last")

	s.Len(res.Cover, 11)
	s.Equal(int32(72500), res.Cover[0])
	s.Equal(int32(-122419), res.Cover[5])

	s.Require().Len(res.Carrier, 256)
	s.Equal(res.Secret[:], stego.Extract(res.Carrier, sha256.Size))
	for i := range res.Cover {
		s.Equal(res.Cover[i]&^1, res.Carrier[i]&^1, "cover slot %d keeps its high bits", i)
	}
	for i := len(res.Cover); i < len(res.Carrier); i++ {
		s.GreaterOrEqual(res.Carrier[i], int32(0))
		s.Less(res.Carrier[i], int32(256))
	}

	s.Equal(Digest(sha256.Sum256(Serialize(res.Carrier))), res.Digest)
	s.Len(res.Digest.String(), 64)
}

func (s *GeneratorSuite) TestSameSeedSameDigest() {
	a, err := NewGenerator(NewSeededSource(7)).Generate(s.fv)
	s.Require().NoError(err)
	b, err := NewGenerator(NewSeededSource(7)).Generate(s.fv)
	s.Require().NoError(err)
	s.Equal(a, b)

	c, err := NewGenerator(NewSeededSource(8)).Generate(s.fv)
	s.Require().NoError(err)
	s.NotEqual(a, c, "padding drawn from a different seed changes the digest")
}

func (s *GeneratorSuite) TestExtremeValuesStillProduceADigest() {
	for name, fv := range map[string]profiling.FeatureVector{
		"zero":     {},
		"negative": {LocationLat: -89.99, LocationLng: -179.5, Hesitation: -3},
		"huge":     {HoverMean: 1e12, Battery: -1e15},
	} {
		s.Run(name, func() {
			d, err := NewGenerator(NewSeededSource(1)).Generate(fv)
			s.Require().NoError(err)
			s.Regexp(`^[0-9a-f]{64}$`, d.String())
		})
	}
}

func (s *GeneratorSuite) TestNonFiniteFeatureIsInternalError() {
	fv := s.fv
	fv.TapStd = math.NaN()
	_, err := NewGenerator(NewSeededSource(1)).Generate(fv)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))

	fv = s.fv
	fv.Battery = math.Inf(1)
	_, err = NewGenerator(NewSeededSource(1)).Generate(fv)
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

func (s *GeneratorSuite) TestQuantize() {
	got := Quantize([]float32{0.0006, -0.0006, 0.0004, 1.2344, 3e9, -3e9, float32(math.NaN())})
	s.Equal([]int32{1, -1, 0, 1234, math.MaxInt32, math.MinInt32, 0}, got)
}

func (s *GeneratorSuite) TestSecretDigestHashesLittleEndianFloats() {
	v := []float32{1.5, -2}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(1.5))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-2))
	s.Equal(sha256.Sum256(buf), SecretDigest(v))
}

func (s *GeneratorSuite) TestSerialize() {
	s.Equal([]byte{0x01, 0, 0, 0, 0xff, 0xff, 0xff, 0xff}, Serialize([]int32{1, -1}))
}

func (s *GeneratorSuite) TestConcurrentGenerationIsSafe() {
	g := NewGenerator(NewLockedSource())
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := g.Generate(s.fv)
			s.NoError(err)
		}()
	}
	wg.Wait()
}
