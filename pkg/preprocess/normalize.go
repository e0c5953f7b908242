package preprocess

import "math"

var normalizeTable = buildNormalizeTable()

// NormalizeChannel maps v to [-1, 1], clamps, and maps it back to [0, 255].
// The round trip is computed in float32 and rounded half to even.
func NormalizeChannel(v uint8) uint8 {
	return normalizeTable[v]
}

func buildNormalizeTable() [256]uint8 {
	var table [256]uint8
	for v := 0; v < 256; v++ {
		table[v] = normalizeChannel(uint8(v))
	}
	return table
}

func normalizeChannel(v uint8) uint8 {
	n := (float32(v)/255 - 0.5) * 2
	n = max(-1, min(1, n))
	return uint8(math.RoundToEven(float64((n + 1) * 127.5)))
}
