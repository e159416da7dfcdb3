//go:build !NOORT || ALL

package transforms

import (
	"os"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	ort "github.com/yalue/onnxruntime_go"
	"gorgonia.org/tensor"
)

func TestMain(m *testing.M) {
	library := os.Getenv("ONNXRUNTIME_SHARED_LIBRARY")
	if library == "" {
		library = "/usr/lib64/onnxruntime.so"
	}
	ort.SetSharedLibraryPath(library)
	if err := ort.InitializeEnvironment(); err != nil {
		panic(err)
	}
	code := m.Run()
	if err := ort.DestroyEnvironment(); err != nil {
		panic(err)
	}
	os.Exit(code)
}

func TestEnsureTensorPassesRuntimeTensorsThrough(t *testing.T) {
	ortTensor, err := ort.NewTensor(ort.NewShape(2, 2), []float32{1, 2, 3, 4})
	assert.NoError(t, err)
	value := FromORT(ortTensor)
	defer func() {
		assert.NoError(t, value.Destroy())
	}()

	out, err := NewEnsureTensor().Apply(value)
	assert.NoError(t, err)
	assert.Same(t, value, out)
}

func TestEnsureTensorConvertsHostArrays(t *testing.T) {
	backing := []float32{1, 2, 3, 4, 5, 6}
	value := FromHost(tensor.New(tensor.WithShape(2, 3), tensor.WithBacking(backing)))

	out, err := NewEnsureTensor().Apply(value)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, out.Destroy())
	}()

	ortTensor, ok := out.ORT.(*ort.Tensor[float32])
	if !ok {
		t.Fatalf("expected a float32 runtime tensor, got %T", out.ORT)
	}
	assert.Equal(t, backing, ortTensor.GetData())
	assert.Equal(t, []int64{2, 3}, []int64(ortTensor.GetShape()))

	// applying twice is the identity after the first conversion
	again, err := NewEnsureTensor().Apply(out)
	assert.NoError(t, err)
	assert.Same(t, out, again)
}

func TestEnsureTensorWidensUint16(t *testing.T) {
	value := FromHost(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking([]uint16{0, 1, 5, 65535})))

	out, err := NewEnsureTensor().Apply(value)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, out.Destroy())
	}()

	ortTensor, ok := out.ORT.(*ort.Tensor[int32])
	if !ok {
		t.Fatalf("expected an int32 runtime tensor, got %T", out.ORT)
	}
	assert.Equal(t, []int32{0, 1, 5, 65535}, ortTensor.GetData())
}

func TestEnsureHostPassesHostArraysThrough(t *testing.T) {
	value := FromHost(tensor.New(tensor.WithShape(2), tensor.WithBacking([]float32{1, 2})))
	out, err := NewEnsureHost().Apply(value)
	assert.NoError(t, err)
	assert.Same(t, value, out)
}

func TestEnsureHostRoundTrip(t *testing.T) {
	backing := []float64{1.5, -2.5, 3, 4}
	value := FromHost(tensor.New(tensor.WithShape(2, 2), tensor.WithBacking(slices.Clone(backing))))

	asTensor, err := NewEnsureTensor().Apply(value)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, asTensor.Destroy())
	}()

	roundTripped, err := NewEnsureHost().Apply(asTensor)
	assert.NoError(t, err)
	assert.True(t, roundTripped.IsHost())
	assert.Equal(t, tensor.Float64, roundTripped.Host.Dtype())
	assert.Equal(t, backing, roundTripped.Host.Data())
	assert.Equal(t, []int{2, 2}, []int(roundTripped.Host.Shape()))
}

func TestAsTypeOnRuntimeTensor(t *testing.T) {
	ortTensor, err := ort.NewTensor(ort.NewShape(3), []int64{1, 2, 3})
	assert.NoError(t, err)
	value := FromORT(ortTensor)
	defer func() {
		assert.NoError(t, value.Destroy())
	}()

	step, err := NewAsType("float32", true)
	assert.NoError(t, err)
	out, err := step.Apply(value)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, out.Destroy())
	}()

	cast, ok := out.ORT.(*ort.Tensor[float32])
	if !ok {
		t.Fatalf("expected a float32 runtime tensor, got %T", out.ORT)
	}
	assert.Equal(t, []float32{1, 2, 3}, cast.GetData())
}

// uint16 image, converted and averaged over all four channels.
func TestAverageChannelsOnRuntimeTensor(t *testing.T) {
	backing := slices.Repeat([]uint16{5}, 2*4*3*3)
	value := FromHost(tensor.New(tensor.WithShape(2, 4, 3, 3), tensor.WithBacking(backing)))

	asTensor, err := NewEnsureTensor().Apply(value)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, asTensor.Destroy())
	}()

	out, err := NewAverageChannels(intPointer(0), intPointer(4)).Apply(asTensor)
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, out.Destroy())
	}()

	averaged, ok := out.ORT.(*ort.Tensor[float32])
	if !ok {
		t.Fatalf("expected a float32 runtime tensor, got %T", out.ORT)
	}
	assert.Equal(t, []int64{2, 1, 3, 3}, []int64(averaged.GetShape()))
	assert.Equal(t, slices.Repeat([]float32{5}, 2*3*3), averaged.GetData())
}
