// Package config loads application settings from defaults, a YAML file, YOLOV5_* environment
// variables and command line overrides.
package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/nvr-ai/go-yolov5/logging"
	"github.com/nvr-ai/go-yolov5/models/model"
)

// EnvPrefix is prepended to every environment override, e.g. YOLOV5_DETECTION_IOU_THRESHOLD.
const EnvPrefix = "YOLOV5"

// Config is the complete application configuration.
type Config struct {
	Model     ModelConfig      `mapstructure:"model" yaml:"model"`
	Detection model.Parameters `mapstructure:"detection" yaml:"detection"`
	Logging   logging.Config   `mapstructure:"logging" yaml:"logging"`
	Server    ServerConfig     `mapstructure:"server" yaml:"server"`
	Output    OutputConfig     `mapstructure:"output" yaml:"output"`
}

// ModelConfig locates the weights and the runtime.
type ModelConfig struct {
	// Path is the ONNX weights file.
	Path string `mapstructure:"path" yaml:"path"`
	// Device is "cpu", a CUDA device id, "cuda:N", "coreml" or "openvino[:TYPE]".
	Device string `mapstructure:"device" yaml:"device"`
	// Library overrides the ONNX Runtime shared library location.
	Library string `mapstructure:"library" yaml:"library"`
	// ClassAwareNMS limits suppression to boxes of the same class.
	ClassAwareNMS bool `mapstructure:"class_aware_nms" yaml:"class_aware_nms"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr"`
	// MaxUploadMB bounds the multipart body of a detection request.
	MaxUploadMB int64 `mapstructure:"max_upload_mb" yaml:"max_upload_mb"`
}

// OutputConfig configures batch reports.
type OutputConfig struct {
	Dir      string `mapstructure:"dir" yaml:"dir"`
	Format   string `mapstructure:"format" yaml:"format"`
	Annotate bool   `mapstructure:"annotate" yaml:"annotate"`
}

// Options are command line values that take precedence over file and environment.
// Zero values leave the loaded setting untouched.
type Options struct {
	Weights    string
	Device     string
	Confidence *float32
	IoU        *float32
	LogLevel   string
	Addr       string
	OutputDir  string
	Format     string
	Annotate   *bool
}

// Load reads configPath (optional) and applies environment and command line overrides.
//
// Arguments:
//   - configPath: A YAML file, or "" to search ./yolov5.yaml and $HOME/.yolov5/.
//   - opts: Command line overrides.
//
// Returns:
//   - *Config: The validated configuration.
//   - error: An error if the file cannot be read or a value is invalid.
func Load(configPath string, opts Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	} else {
		v.SetConfigName("yolov5")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.yolov5")
		_ = v.ReadInConfig()
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	applyOptions(v, opts)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	params := model.DefaultParameters()
	v.SetDefault("model.path", "yolov5s.onnx")
	v.SetDefault("model.device", "cpu")
	v.SetDefault("model.library", "")
	v.SetDefault("model.class_aware_nms", false)

	v.SetDefault("detection.confidence_threshold", params.ConfidenceThreshold)
	v.SetDefault("detection.iou_threshold", params.IoUThreshold)
	v.SetDefault("detection.keep_aspect_ratio", params.KeepAspectRatio)
	v.SetDefault("detection.serialize_inference", params.SerializeInference)
	v.SetDefault("detection.drop_degenerate", params.DropDegenerate)
	v.SetDefault("detection.workers", 0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.file", "")

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_upload_mb", 32)

	v.SetDefault("output.dir", "")
	v.SetDefault("output.format", "json")
	v.SetDefault("output.annotate", false)
}

func applyOptions(v *viper.Viper, opts Options) {
	if opts.Weights != "" {
		v.Set("model.path", opts.Weights)
	}
	if opts.Device != "" {
		v.Set("model.device", opts.Device)
	}
	if opts.Confidence != nil {
		v.Set("detection.confidence_threshold", *opts.Confidence)
	}
	if opts.IoU != nil {
		v.Set("detection.iou_threshold", *opts.IoU)
	}
	if opts.LogLevel != "" {
		v.Set("logging.level", opts.LogLevel)
	}
	if opts.Addr != "" {
		v.Set("server.addr", opts.Addr)
	}
	if opts.OutputDir != "" {
		v.Set("output.dir", opts.OutputDir)
	}
	if opts.Format != "" {
		v.Set("output.format", opts.Format)
	}
	if opts.Annotate != nil {
		v.Set("output.annotate", *opts.Annotate)
	}
}

func (c *Config) validate() error {
	if c.Model.Path == "" {
		return errors.New("model path is required")
	}
	if err := c.Detection.Validate(); err != nil {
		return err
	}
	c.Output.Format = strings.ToLower(c.Output.Format)
	switch c.Output.Format {
	case "json", "yaml":
	default:
		return errors.Errorf("unsupported output format %q", c.Output.Format)
	}
	if c.Output.Annotate && c.Output.Dir == "" {
		return errors.New("annotated output requires an output directory")
	}
	if c.Server.MaxUploadMB <= 0 {
		return errors.Errorf("server max upload must be positive, got %d MB", c.Server.MaxUploadMB)
	}
	return nil
}
