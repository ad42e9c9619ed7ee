// Package stego hides secret bits in the least-significant bits of an
// integer cover array.
package stego

// Source draws uniform integers in [low, high).
type Source interface {
	IntRange(low, high int) int
}

// PadLow and PadHigh bound the random values used to extend a short cover.
const (
	PadLow  = 0
	PadHigh = 256
)

// Bits unpacks secret into individual bits, most-significant bit first within
// each byte and bytes in order.
func Bits(secret []byte) []uint8 {
	bits := make([]uint8, 0, len(secret)*8)
	for _, b := range secret {
		for shift := 7; shift >= 0; shift-- {
			bits = append(bits, (b>>uint(shift))&1)
		}
	}
	return bits
}

// Embed writes the bits of secret into the LSBs of a copy of cover. When the
// cover has fewer slots than there are secret bits it is extended with values
// drawn from src in [PadLow, PadHigh). Slots beyond the secret length are left
// untouched. cover itself is never modified.
func Embed(cover []int32, secret []byte, src Source) []int32 {
	bits := Bits(secret)

	carrier := make([]int32, len(cover), max(len(cover), len(bits)))
	copy(carrier, cover)
	for len(carrier) < len(bits) {
		carrier = append(carrier, int32(src.IntRange(PadLow, PadHigh)))
	}

	for i, bit := range bits {
		carrier[i] = (carrier[i] &^ 1) | int32(bit)
	}
	return carrier
}

// Extract reads n bits back out of a carrier's LSBs and packs them into bytes.
func Extract(carrier []int32, n int) []byte {
	out := make([]byte, (n+7)/8)
	for i := 0; i < n && i < len(carrier); i++ {
		if carrier[i]&1 == 1 {
			out[i/8] |= 1 << uint(7-i%8)
		}
	}
	return out
}
