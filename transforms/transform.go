// Package transforms implements per-tensor preprocessing transformations for
// inference pipelines. Each transformation is stateless beyond its
// construction-time configuration and is safe to call from independent
// goroutines.
package transforms

import (
	"fmt"
	"maps"
	"slices"
)

// Transform is the interface that any per-tensor transformation must implement.
type Transform interface {
	Name() string
	Apply(value *Value) (*Value, error)
}

// Step binds a transformation to the batch elements it applies to. An empty
// ApplyTo means every element.
type Step struct {
	Transform Transform
	ApplyTo   []string
}

// Pipeline is an ordered sequence of preprocessing steps applied to a batch.
type Pipeline struct {
	Name  string
	Steps []Step
}

// Run applies the pipeline's steps in order, replacing the chosen batch
// elements in place and passing everything else through untouched. Runtime
// tensors replaced by a step are destroyed; identity pass-throughs are not.
func (p *Pipeline) Run(batch Batch) error {
	for _, step := range p.Steps {
		names := step.ApplyTo
		if len(names) == 0 {
			names = slices.Sorted(maps.Keys(batch))
		}
		for _, name := range names {
			value, ok := batch[name]
			if !ok {
				return fmt.Errorf("pipeline %s: step %s: no batch element named %s", p.Name, step.Transform.Name(), name)
			}
			out, err := step.Transform.Apply(value)
			if err != nil {
				return fmt.Errorf("pipeline %s: step %s: %w", p.Name, step.Transform.Name(), err)
			}
			if out != value {
				if err := value.Destroy(); err != nil {
					return fmt.Errorf("pipeline %s: step %s: %w", p.Name, step.Transform.Name(), err)
				}
				batch[name] = out
			}
		}
	}
	return nil
}
