package tensorprep

import (
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorgonia.org/tensor"

	"github.com/vanir-ml/tensorprep/transforms"
)

func intPointer(i int) *int {
	return &i
}

func TestNewPipelineFromConfig(t *testing.T) {
	config := PipelineConfig{
		Name: "prep",
		Steps: []StepConfig{
			{Type: "as_type", Dtype: "float32"},
			{Type: "average_channels", StartChannel: intPointer(1), StopChannel: intPointer(3)},
		},
	}
	pipeline, err := NewPipeline(config)
	assert.NoError(t, err)
	assert.Equal(t, "prep", pipeline.Name)

	backing := make([]float64, 1*4*2*2)
	for i := range backing {
		backing[i] = float64((i / 4) % 4)
	}
	batch := transforms.Batch{
		"image": transforms.FromHost(tensor.New(tensor.WithShape(1, 4, 2, 2), tensor.WithBacking(backing))),
	}
	assert.NoError(t, pipeline.Run(batch))

	out := batch["image"].Host
	assert.Equal(t, tensor.Float32, out.Dtype())
	assert.Equal(t, []int{1, 1, 2, 2}, []int(out.Shape()))
	assert.Equal(t, slices.Repeat([]float32{1.5}, 4), out.Data())
}

func TestNewPipelineUnknownStepType(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{Steps: []StepConfig{{Type: "resize"}}})
	assert.ErrorContains(t, err, "step 0 (resize)")
}

func TestNewPipelineInvalidDtype(t *testing.T) {
	_, err := NewPipeline(PipelineConfig{Steps: []StepConfig{{Type: "as_type", Dtype: "float999"}}})
	assert.ErrorIs(t, err, transforms.ErrInvalidDtype)
}

func TestLoadPipelineConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "pipeline.json")
	configJSON := `{
		"name": "prep",
		"steps": [
			{"type": "ensure_tensor", "apply_to": ["image"]},
			{"type": "average_channels", "start_channel": 1, "stop_channel": 3}
		]
	}`
	assert.NoError(t, os.WriteFile(configPath, []byte(configJSON), 0o644))

	config, err := LoadPipelineConfig(configPath)
	assert.NoError(t, err)
	assert.Equal(t, "prep", config.Name)
	assert.Len(t, config.Steps, 2)
	assert.Equal(t, "ensure_tensor", config.Steps[0].Type)
	assert.Equal(t, []string{"image"}, config.Steps[0].ApplyTo)
	if assert.NotNil(t, config.Steps[1].StartChannel) {
		assert.Equal(t, 1, *config.Steps[1].StartChannel)
	}
	if assert.NotNil(t, config.Steps[1].StopChannel) {
		assert.Equal(t, 3, *config.Steps[1].StopChannel)
	}
}

func TestLoadPipelineConfigMissingFile(t *testing.T) {
	_, err := LoadPipelineConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestTensorJSONRoundTrip(t *testing.T) {
	wire := TensorJSON{Dtype: "uint16", Shape: []int{2, 2}, Data: []float64{0, 1, 2, 65535}}

	value, err := wire.ToValue()
	assert.NoError(t, err)
	assert.Equal(t, tensor.Uint16, value.Host.Dtype())
	assert.Equal(t, []uint16{0, 1, 2, 65535}, value.Host.Data())

	back, err := FromValue(value)
	assert.NoError(t, err)
	assert.Equal(t, wire, back)
}

func TestTensorJSONDefaultsToFloat32(t *testing.T) {
	value, err := TensorJSON{Shape: []int{2}, Data: []float64{1.5, 2.5}}.ToValue()
	assert.NoError(t, err)
	assert.Equal(t, tensor.Float32, value.Host.Dtype())
	assert.Equal(t, []float32{1.5, 2.5}, value.Host.Data())
}

func TestTensorJSONShapeMismatch(t *testing.T) {
	_, err := TensorJSON{Dtype: "float32", Shape: []int{2, 2}, Data: []float64{1, 2}}.ToValue()
	assert.ErrorContains(t, err, "does not match")

	_, err = TensorJSON{Dtype: "float32", Data: []float64{1, 2}}.ToValue()
	assert.ErrorContains(t, err, "shape is required")
}
