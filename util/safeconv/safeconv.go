package safeconv

import "golang.org/x/exp/constraints"

// Numeric covers the element types that flow through preprocessing tensors.
type Numeric interface {
	constraints.Integer | constraints.Float
}

// NumericSlice converts a numeric slice between element types with plain Go
// conversion semantics, the same truncation and wraparound behavior an
// ndarray astype has.
func NumericSlice[D, S Numeric](input []S) []D {
	out := make([]D, len(input))
	for i, v := range input {
		out[i] = D(v)
	}
	return out
}

// WidenUint16ToInt32 widens uint16 data to int32. Inference runtimes have no
// uint16 kernel coverage; every uint16 value is representable as int32, so
// the conversion is lossless at the cost of doubling storage.
func WidenUint16ToInt32(input []uint16) []int32 {
	return NumericSlice[int32](input)
}
