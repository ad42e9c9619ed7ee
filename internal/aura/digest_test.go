package aura

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "ghostauth/pkg/domain-errors"
)

func TestHammingScore(t *testing.T) {
	zeros := strings.Repeat("0", 64)
	ones := strings.Repeat("f", 64)

	t.Run("identical digests score 100", func(t *testing.T) {
		score, err := HammingScore(zeros, zeros)
		require.NoError(t, err)
		assert.Equal(t, 100, score)
	})

	t.Run("complementary digests score 0", func(t *testing.T) {
		score, err := HammingScore(zeros, ones)
		require.NoError(t, err)
		assert.Equal(t, 0, score)
	})

	t.Run("one byte of difference", func(t *testing.T) {
		// 8 of 256 bits: round(96.875) = 97
		score, err := HammingScore(zeros, "ff"+strings.Repeat("0", 62))
		require.NoError(t, err)
		assert.Equal(t, 97, score)
	})

	t.Run("symmetric and case-insensitive", func(t *testing.T) {
		a := "a1b2" + strings.Repeat("0", 60)
		b := "A1B3" + strings.Repeat("0", 60)
		ab, err := HammingScore(a, b)
		require.NoError(t, err)
		ba, err := HammingScore(b, a)
		require.NoError(t, err)
		assert.Equal(t, ab, ba)
		assert.Equal(t, 100, ab)
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		for name, pair := range map[string][2]string{
			"not hex":         {"zz" + zeros[2:], zeros},
			"odd length":      {zeros[1:], zeros[1:]},
			"length mismatch": {zeros, zeros[:62]},
			"empty":           {"", ""},
			"short digests":   {"ab", "ab"},
			"over-long pair":  {zeros + "00", zeros + "00"},
		} {
			_, err := HammingScore(pair[0], pair[1])
			require.Error(t, err, name)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), name)
		}
	})
}

func TestDigestText(t *testing.T) {
	hex := "00ff" + strings.Repeat("ab", 30)
	d, err := ParseDigest(hex)
	require.NoError(t, err)
	assert.Equal(t, hex, d.String())

	raw, err := json.Marshal(struct {
		Aura Digest `json:"aura"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"aura":"`+hex+`"}`, string(raw))

	var back Digest
	require.NoError(t, back.UnmarshalText([]byte(hex)))
	assert.Equal(t, d, back)

	_, err = ParseDigest("abc")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	_, err = ParseDigest(strings.Repeat("g", 64))
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
