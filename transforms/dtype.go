package transforms

import (
	"errors"
	"fmt"

	"gorgonia.org/tensor"

	"github.com/vanir-ml/tensorprep/util/safeconv"
)

// ErrInvalidDtype is returned when a dtype identifier does not resolve to a
// supported element type.
var ErrInvalidDtype = errors.New("invalid dtype")

var dtypes = map[string]tensor.Dtype{
	"float32": tensor.Float32,
	"float64": tensor.Float64,
	"int8":    tensor.Int8,
	"uint8":   tensor.Uint8,
	"int16":   tensor.Int16,
	"uint16":  tensor.Uint16,
	"int32":   tensor.Int32,
	"uint32":  tensor.Uint32,
	"int64":   tensor.Int64,
	"uint64":  tensor.Uint64,
}

// dtypeAliases carries the torch-style spellings that appear in upstream
// model configs.
var dtypeAliases = map[string]string{
	"float":  "float32",
	"double": "float64",
	"half":   "float32",
	"long":   "int64",
	"int":    "int32",
	"short":  "int16",
	"byte":   "uint8",
	"char":   "int8",
}

// ResolveDtype resolves a dtype identifier against the supported element
// types. Unknown identifiers fail with ErrInvalidDtype.
func ResolveDtype(name string) (tensor.Dtype, error) {
	if canonical, ok := dtypeAliases[name]; ok {
		name = canonical
	}
	dt, ok := dtypes[name]
	if !ok {
		return tensor.Dtype{}, fmt.Errorf("%w: %q", ErrInvalidDtype, name)
	}
	return dt, nil
}

// DtypeName returns the canonical identifier for a supported element type,
// or the empty string if the type is not supported.
func DtypeName(dt tensor.Dtype) string {
	for name, candidate := range dtypes {
		if candidate == dt {
			return name
		}
	}
	return ""
}

// Cast converts a host array to the given element type with plain Go
// conversion semantics, the equivalent of an ndarray astype. Arrays already
// of that type are returned unchanged.
func Cast(d *tensor.Dense, dt tensor.Dtype) (*tensor.Dense, error) {
	if d.Dtype() == dt {
		return d, nil
	}
	data, err := convertSlice(d.Data(), dt)
	if err != nil {
		return nil, err
	}
	return tensor.New(tensor.WithShape(d.Shape()...), tensor.WithBacking(data)), nil
}

func convertSlice(data any, dt tensor.Dtype) (any, error) {
	switch src := data.(type) {
	case []float32:
		return convertTo(src, dt)
	case []float64:
		return convertTo(src, dt)
	case []int8:
		return convertTo(src, dt)
	case []uint8:
		return convertTo(src, dt)
	case []int16:
		return convertTo(src, dt)
	case []uint16:
		return convertTo(src, dt)
	case []int32:
		return convertTo(src, dt)
	case []uint32:
		return convertTo(src, dt)
	case []int64:
		return convertTo(src, dt)
	case []uint64:
		return convertTo(src, dt)
	default:
		return nil, fmt.Errorf("unsupported element type %T", data)
	}
}

func convertTo[S safeconv.Numeric](src []S, dt tensor.Dtype) (any, error) {
	switch dt {
	case tensor.Float32:
		return safeconv.NumericSlice[float32](src), nil
	case tensor.Float64:
		return safeconv.NumericSlice[float64](src), nil
	case tensor.Int8:
		return safeconv.NumericSlice[int8](src), nil
	case tensor.Uint8:
		return safeconv.NumericSlice[uint8](src), nil
	case tensor.Int16:
		return safeconv.NumericSlice[int16](src), nil
	case tensor.Uint16:
		return safeconv.NumericSlice[uint16](src), nil
	case tensor.Int32:
		return safeconv.NumericSlice[int32](src), nil
	case tensor.Uint32:
		return safeconv.NumericSlice[uint32](src), nil
	case tensor.Int64:
		return safeconv.NumericSlice[int64](src), nil
	case tensor.Uint64:
		return safeconv.NumericSlice[uint64](src), nil
	default:
		return nil, fmt.Errorf("%w: unsupported target dtype %v", ErrInvalidDtype, dt)
	}
}
