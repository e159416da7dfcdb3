// Package tensorprep assembles tensor preprocessing pipelines from
// declarative configuration.
package tensorprep

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"

	"github.com/vanir-ml/tensorprep/transforms"
	"github.com/vanir-ml/tensorprep/util/fileutil"
)

// StepConfig describes a single preprocessing step. Type selects the
// transformation; the remaining fields only apply to the types that use them.
type StepConfig struct {
	Type         string   `json:"type"`
	ApplyTo      []string `json:"apply_to,omitempty"`
	Dtype        string   `json:"dtype,omitempty"`
	NonBlocking  bool     `json:"non_blocking,omitempty"`
	StartChannel *int     `json:"start_channel,omitempty"`
	StopChannel  *int     `json:"stop_channel,omitempty"`
}

// PipelineConfig describes a preprocessing pipeline as an ordered list of
// steps.
type PipelineConfig struct {
	Name  string       `json:"name"`
	Steps []StepConfig `json:"steps"`
}

// LoadPipelineConfig reads a pipeline configuration from a local path or
// storage URL.
func LoadPipelineConfig(path string) (PipelineConfig, error) {
	var config PipelineConfig
	configBytes, err := fileutil.ReadFileBytes(path)
	if err != nil {
		return config, err
	}
	if err := jsoniter.Unmarshal(configBytes, &config); err != nil {
		return config, fmt.Errorf("parsing pipeline config %s: %w", path, err)
	}
	return config, nil
}

// NewPipeline builds the transformation pipeline described by the config.
// Configuration errors surface here, before any batch is processed.
func NewPipeline(config PipelineConfig) (*transforms.Pipeline, error) {
	steps := make([]transforms.Step, 0, len(config.Steps))
	for i, stepConfig := range config.Steps {
		var (
			step transforms.Transform
			err  error
		)
		switch stepConfig.Type {
		case "as_type":
			step, err = transforms.NewAsType(stepConfig.Dtype, stepConfig.NonBlocking)
		case "ensure_tensor":
			step = transforms.NewEnsureTensor()
		case "ensure_host":
			step = transforms.NewEnsureHost()
		case "average_channels":
			step = transforms.NewAverageChannels(stepConfig.StartChannel, stepConfig.StopChannel)
		default:
			err = fmt.Errorf("unknown transformation type %q", stepConfig.Type)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, stepConfig.Type, err)
		}
		steps = append(steps, transforms.Step{Transform: step, ApplyTo: stepConfig.ApplyTo})
	}
	return &transforms.Pipeline{Name: config.Name, Steps: steps}, nil
}
