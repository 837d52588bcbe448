// Package commands implements the yolov5 command line.
package commands

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/detector"
	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/inference/providers"
	"github.com/nvr-ai/go-yolov5/logging"
	"github.com/nvr-ai/go-yolov5/models/model"
)

// OpenEngine loads the model described by cfg. Tests replace it with a fake engine.
var OpenEngine = func(cfg config.ModelConfig) (inference.Engine, error) {
	options, err := providers.ParseDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	provider, err := providers.NewProvider(options)
	if err != nil {
		return nil, err
	}
	session, err := providers.NewSession(provider, providers.Config{
		ModelPath:   cfg.Path,
		LibraryPath: cfg.Library,
		Options:     options,
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

type globalFlags struct {
	configPath string
	logLevel   string
}

// NewRootCmd builds the yolov5 command tree.
func NewRootCmd(version string) *cobra.Command {
	flags := &globalFlags{}
	cmd := &cobra.Command{
		Use:   "yolov5",
		Short: "Object detection with YOLOv5 ONNX models",
		Long: `yolov5 runs YOLOv5 ONNX models through ONNX Runtime.

Settings come from a YAML file (--config, ./yolov5.yaml or $HOME/.yolov5/yolov5.yaml),
YOLOV5_* environment variables (YOLOV5_DETECTION_CONFIDENCE_THRESHOLD) and flags, in
increasing order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "configuration file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(newDetectCmd(flags))
	cmd.AddCommand(newInspectCmd(flags))
	cmd.AddCommand(newServeCmd(flags))
	return cmd
}

// runtimeEnv is what every sub-command needs after loading configuration.
type runtimeEnv struct {
	cfg      *config.Config
	log      *logrus.Logger
	logClose io.Closer
	detector *detector.Detector
	metadata model.Metadata
}

func (e *runtimeEnv) Close() {
	if e.detector != nil {
		if err := e.detector.Close(); err != nil {
			e.log.WithError(err).Warn("failed to release model")
		}
	}
	_ = e.logClose.Close()
}

func setup(cmd *cobra.Command, flags *globalFlags, opts config.Options) (*runtimeEnv, error) {
	opts.LogLevel = flags.logLevel
	cfg, err := config.Load(flags.configPath, opts)
	if err != nil {
		return nil, err
	}
	log, closer, err := logging.New(cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	env := &runtimeEnv{cfg: cfg, log: log, logClose: closer}

	engine, err := OpenEngine(cfg.Model)
	if err != nil {
		env.Close()
		return nil, err
	}

	if src, ok := engine.(inference.MetadataSource); ok {
		raw, err := src.Metadata()
		if err == nil {
			env.metadata, err = model.ParseMetadata(raw)
		}
		if err != nil {
			log.WithError(err).Warn("model metadata unavailable, labels fall back to class ids")
			env.metadata = model.Metadata{Classes: map[int]string{}}
		}
	}

	detOpts := []detector.Option{detector.WithLogger(log)}
	if cfg.Model.ClassAwareNMS {
		detOpts = append(detOpts, detector.WithClassAwareNMS())
	}
	det, err := detector.New(engine, cfg.Detection, detOpts...)
	if err != nil {
		_ = engine.Close()
		env.Close()
		return nil, err
	}
	env.detector = det
	return env, nil
}

// names returns a label lookup when the model declares class names.
func (e *runtimeEnv) names() func(int) string {
	if len(e.metadata.Classes) == 0 {
		return nil
	}
	return e.metadata.ClassName
}
