package transforms

import (
	"errors"
	"fmt"
	"slices"

	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"

	"github.com/vanir-ml/tensorprep/util/safeconv"
)

// Value holds a tensor in exactly one of two representations: a host-memory
// array or a runtime-owned onnxruntime tensor, which may be device resident.
type Value struct {
	Host *tensor.Dense
	ORT  ort.Value
}

// FromHost wraps a host array.
func FromHost(d *tensor.Dense) *Value {
	return &Value{Host: d}
}

// FromORT wraps a runtime tensor. The value takes no ownership: Destroy must
// still be called exactly once, either on the Value or on the tensor itself.
func FromORT(v ort.Value) *Value {
	return &Value{ORT: v}
}

func (v *Value) IsHost() bool {
	return v.Host != nil
}

// Destroy releases the runtime tensor, if any. Host arrays are garbage
// collected and need no explicit release.
func (v *Value) Destroy() error {
	if v.ORT != nil {
		return v.ORT.Destroy()
	}
	return nil
}

// Batch is a set of named tensors flowing through a preprocessing pipeline.
type Batch map[string]*Value

// Destroy releases every runtime tensor held by the batch.
func (b Batch) Destroy() error {
	destroyErrors := make([]error, 0, len(b))
	for _, value := range b {
		destroyErrors = append(destroyErrors, value.Destroy())
	}
	return errors.Join(destroyErrors...)
}

// exportORT copies the contents of a runtime tensor into a fresh host array.
// The copy is required: the runtime owns the tensor's memory and may free or
// reuse it once the tensor is destroyed.
func exportORT(v ort.Value) (*tensor.Dense, error) {
	switch t := v.(type) {
	case *ort.Tensor[float32]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[float64]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[int8]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[uint8]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[int16]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[uint16]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[int32]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[uint32]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[int64]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	case *ort.Tensor[uint64]:
		return denseOf(t.GetShape(), slices.Clone(t.GetData())), nil
	default:
		return nil, fmt.Errorf("unsupported onnxruntime value type %T", v)
	}
}

// importORT converts a host array to a runtime tensor. The tensor wraps the
// array's backing slice directly, no copy is made. uint16 data is widened to
// int32 first: runtime kernels have no uint16 coverage, and every uint16
// value is representable as int32.
func importORT(d *tensor.Dense) (ort.Value, error) {
	shape := ortShape(d.Shape())
	switch data := d.Data().(type) {
	case []float32:
		return ort.NewTensor(shape, data)
	case []float64:
		return ort.NewTensor(shape, data)
	case []int8:
		return ort.NewTensor(shape, data)
	case []uint8:
		return ort.NewTensor(shape, data)
	case []int16:
		return ort.NewTensor(shape, data)
	case []uint16:
		return ort.NewTensor(shape, safeconv.WidenUint16ToInt32(data))
	case []int32:
		return ort.NewTensor(shape, data)
	case []uint32:
		return ort.NewTensor(shape, data)
	case []int64:
		return ort.NewTensor(shape, data)
	case []uint64:
		return ort.NewTensor(shape, data)
	default:
		return nil, fmt.Errorf("cannot convert host array of type %T to an onnxruntime tensor", data)
	}
}

func denseOf[T any](shape ort.Shape, data []T) *tensor.Dense {
	dims := make([]int, len(shape))
	for i, d := range shape {
		dims[i] = int(d)
	}
	return tensor.New(tensor.WithShape(dims...), tensor.WithBacking(data))
}

func ortShape(shape tensor.Shape) ort.Shape {
	dims := make([]int64, len(shape))
	for i, d := range shape {
		dims[i] = int64(d)
	}
	return ort.NewShape(dims...)
}
