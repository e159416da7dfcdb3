package tensorprep

import (
	"fmt"
	"slices"

	"gorgonia.org/tensor"

	"github.com/vanir-ml/tensorprep/transforms"
)

// TensorJSON is the wire form of a tensor in the CLI's jsonl batches. Data
// is carried as float64, the only numeric type JSON has, and converted to
// the declared dtype on decode.
type TensorJSON struct {
	Dtype string    `json:"dtype,omitempty"`
	Shape []int     `json:"shape"`
	Data  []float64 `json:"data"`
}

// ToValue materializes the tensor as a host array of its declared dtype.
// An empty dtype defaults to float32.
func (t TensorJSON) ToValue() (*transforms.Value, error) {
	if len(t.Shape) == 0 {
		return nil, fmt.Errorf("tensor shape is required")
	}
	size := 1
	for _, dim := range t.Shape {
		size *= dim
	}
	if size != len(t.Data) {
		return nil, fmt.Errorf("shape %v does not match %d data values", t.Shape, len(t.Data))
	}
	name := t.Dtype
	if name == "" {
		name = "float32"
	}
	dt, err := transforms.ResolveDtype(name)
	if err != nil {
		return nil, err
	}
	d := tensor.New(tensor.WithShape(t.Shape...), tensor.WithBacking(slices.Clone(t.Data)))
	cast, err := transforms.Cast(d, dt)
	if err != nil {
		return nil, err
	}
	return transforms.FromHost(cast), nil
}

// FromValue converts a value back to the wire form, exporting runtime
// tensors to host memory first.
func FromValue(v *transforms.Value) (TensorJSON, error) {
	hostValue, err := transforms.NewEnsureHost().Apply(v)
	if err != nil {
		return TensorJSON{}, err
	}
	d := hostValue.Host
	asFloat64, err := transforms.Cast(d, tensor.Float64)
	if err != nil {
		return TensorJSON{}, err
	}
	return TensorJSON{
		Dtype: transforms.DtypeName(d.Dtype()),
		Shape: slices.Clone([]int(d.Shape())),
		Data:  asFloat64.Data().([]float64),
	}, nil
}
