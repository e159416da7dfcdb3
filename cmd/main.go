package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/advancedclimatesystems/gonnx"
	jsoniter "github.com/json-iterator/go"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"
	"gorgonia.org/tensor"

	"github.com/vanir-ml/tensorprep"
	"github.com/vanir-ml/tensorprep/transforms"
	"github.com/vanir-ml/tensorprep/util/fileutil"
)

var configPath string
var inputPath string
var outputPath string
var modelPath string

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "Apply a preprocessing pipeline to batches of named tensors",
	Description: `Run expects a path to a file with input in .jsonl format. Each json line must be of the format
{"tensors": {"name": {"dtype": "float32", "shape": [2, 4, 3, 3], "data": [...]}}} to be processed.
				`,
	ArgsUsage: `
				--config: path to the pipeline configuration, a json file listing the preprocessing steps to apply.
				--input: path to a .jsonl file or a folder with .jsonl files to process. If omitted, the input will be read from stdin.
				--output: path to a folder where to write the output. If omitted, the output will be sent to stdout.
				--model: optional path to an .onnx model. If provided, each preprocessed batch is run through the model and the model outputs are written alongside the tensors.
				`,
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "Path to the pipeline configuration",
			Aliases:     []string{"c"},
			Destination: &configPath,
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "input",
			Usage:       "Path to the input data",
			Aliases:     []string{"i"},
			Destination: &inputPath,
		},
		&cli.StringFlag{
			Name:        "output",
			Usage:       "Path to output",
			Aliases:     []string{"o"},
			Destination: &outputPath,
		},
		&cli.StringFlag{
			Name:        "model",
			Usage:       "Path to an .onnx model to run on the preprocessed tensors",
			Aliases:     []string{"m"},
			Destination: &modelPath,
		},
	},
	Action: func(ctx *cli.Context) (err error) {
		config, err := tensorprep.LoadPipelineConfig(configPath)
		if err != nil {
			return err
		}
		pipeline, err := tensorprep.NewPipeline(config)
		if err != nil {
			return err
		}

		var model *gonnx.Model
		if modelPath != "" {
			onnxBytes, readErr := fileutil.ReadFileBytes(modelPath)
			if readErr != nil {
				return readErr
			}
			model, err = gonnx.NewModelFromBytes(onnxBytes)
			if err != nil {
				return err
			}
		}

		var writer io.WriteCloser
		if outputPath != "" {
			writer, err = fileutil.NewFileWriter(fileutil.PathJoinSafe(outputPath, "result.jsonl"))
			if err != nil {
				return err
			}
			defer func() {
				err = errors.Join(err, writer.Close())
			}()
		} else {
			writer = os.Stdout
		}

		process := func(reader io.Reader) error {
			scanner := bufio.NewScanner(reader)
			for scanner.Scan() {
				outputBytes, lineErr := processLine(scanner.Bytes(), pipeline, model)
				if lineErr != nil {
					return lineErr
				}
				if _, writeErr := writer.Write(append(outputBytes, '\n')); writeErr != nil {
					return writeErr
				}
			}
			return scanner.Err()
		}

		if inputPath != "" {
			exists, existsErr := fileutil.FileExists(inputPath)
			if existsErr != nil {
				return existsErr
			}
			if !exists {
				return fmt.Errorf("file %s does not exist", inputPath)
			}
			fileWalker := func(_ context.Context, _ string, _ string, info os.FileInfo, reader io.Reader) (toContinue bool, err error) {
				if filepath.Ext(info.Name()) == ".jsonl" {
					if err := process(reader); err != nil {
						return false, err
					}
				}
				return true, nil
			}
			return fileutil.Walk(ctx.Context, inputPath, fileWalker)
		}

		if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
			// there is something to process on stdin
			return process(os.Stdin)
		}
		return nil
	},
}

type batchLine struct {
	Tensors map[string]tensorprep.TensorJSON `json:"tensors"`
	Outputs map[string]tensorprep.TensorJSON `json:"outputs,omitempty"`
}

// processLine decodes one jsonl batch, runs the pipeline on it and
// re-encodes the result. When a model is given the preprocessed tensors are
// fed through it and its outputs are attached to the line.
func processLine(line []byte, pipeline *transforms.Pipeline, model *gonnx.Model) ([]byte, error) {
	var parsed batchLine
	if err := jsoniter.Unmarshal(line, &parsed); err != nil {
		return nil, err
	}
	if len(parsed.Tensors) == 0 {
		return nil, fmt.Errorf("input line has no tensors")
	}

	batch := transforms.Batch{}
	for name, tensorJSON := range parsed.Tensors {
		value, err := tensorJSON.ToValue()
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		batch[name] = value
	}
	defer func() {
		_ = batch.Destroy()
	}()

	if err := pipeline.Run(batch); err != nil {
		return nil, err
	}

	result := batchLine{Tensors: map[string]tensorprep.TensorJSON{}}
	for name, value := range batch {
		tensorJSON, err := tensorprep.FromValue(value)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		result.Tensors[name] = tensorJSON
	}

	if model != nil {
		outputs, err := runModel(model, batch)
		if err != nil {
			return nil, err
		}
		result.Outputs = outputs
	}

	return jsoniter.Marshal(result)
}

// runModel executes a pure-Go onnx model on the preprocessed batch. Runtime
// tensors are exported to host memory first since gonnx operates on host
// arrays.
func runModel(model *gonnx.Model, batch transforms.Batch) (map[string]tensorprep.TensorJSON, error) {
	ensureHost := transforms.NewEnsureHost()
	inputs := map[string]tensor.Tensor{}
	for name, value := range batch {
		hostValue, err := ensureHost.Apply(value)
		if err != nil {
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		inputs[name] = hostValue.Host
	}

	modelOutputs, err := model.Run(inputs)
	if err != nil {
		return nil, err
	}

	outputs := map[string]tensorprep.TensorJSON{}
	for name, modelOutput := range modelOutputs {
		dense, ok := modelOutput.(*tensor.Dense)
		if !ok {
			return nil, fmt.Errorf("model output %s has unexpected type %T", name, modelOutput)
		}
		tensorJSON, convErr := tensorprep.FromValue(transforms.FromHost(dense))
		if convErr != nil {
			return nil, fmt.Errorf("model output %s: %w", name, convErr)
		}
		outputs[name] = tensorJSON
	}
	return outputs, nil
}

func main() {
	app := &cli.App{
		Name:     "tensorprep",
		Usage:    "Tensor preprocessing pipelines from the command line",
		Commands: []*cli.Command{runCommand},
	}
	if err := app.Run(os.Args); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
}
