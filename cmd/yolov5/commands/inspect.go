package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/models/model"
)

type modelSummary struct {
	Input      model.InputSpec  `yaml:"input"`
	Output     model.OutputSpec `yaml:"output"`
	Parameters model.Parameters `yaml:"parameters"`
	Metadata   model.Metadata   `yaml:"metadata"`
}

func newInspectCmd(global *globalFlags) *cobra.Command {
	var weights, device string
	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Print the input, output and metadata of a model",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, global, config.Options{Weights: weights, Device: device})
			if err != nil {
				return err
			}
			defer env.Close()

			summary := modelSummary{
				Input:      env.detector.InputSpec(),
				Output:     env.detector.OutputSpec(),
				Parameters: env.detector.Parameters(),
				Metadata:   env.metadata,
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(summary); err != nil {
				return errors.Wrap(err, "failed to encode model summary")
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&weights, "weights", "", "ONNX model path")
	cmd.Flags().StringVar(&device, "device", "", "execution device")
	return cmd
}
