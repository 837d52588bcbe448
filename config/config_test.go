package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-yolov5/models/model"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "yolov5.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load("", Options{})
	require.NoError(t, err)

	params := model.DefaultParameters()
	assert.Equal(t, "yolov5s.onnx", cfg.Model.Path)
	assert.Equal(t, "cpu", cfg.Model.Device)
	assert.Equal(t, params.ConfidenceThreshold, cfg.Detection.ConfidenceThreshold)
	assert.Equal(t, params.IoUThreshold, cfg.Detection.IoUThreshold)
	assert.True(t, cfg.Detection.KeepAspectRatio)
	assert.False(t, cfg.Detection.SerializeInference)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, "json", cfg.Output.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
model:
  path: /models/yolov5m.onnx
  device: "0"
  class_aware_nms: true
detection:
  confidence_threshold: 0.25
  iou_threshold: 0.45
  keep_aspect_ratio: false
  serialize_inference: true
  workers: 2
logging:
  level: debug
  format: json
output:
  dir: out
  format: YAML
  annotate: true
`)
	cfg, err := Load(path, Options{})
	require.NoError(t, err)

	assert.Equal(t, "/models/yolov5m.onnx", cfg.Model.Path)
	assert.Equal(t, "0", cfg.Model.Device)
	assert.True(t, cfg.Model.ClassAwareNMS)
	assert.InDelta(t, 0.25, cfg.Detection.ConfidenceThreshold, 1e-6)
	assert.InDelta(t, 0.45, cfg.Detection.IoUThreshold, 1e-6)
	assert.False(t, cfg.Detection.KeepAspectRatio)
	assert.True(t, cfg.Detection.SerializeInference)
	assert.Equal(t, 2, cfg.Detection.Workers)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.True(t, cfg.Output.Annotate)
}

func TestLoad_EnvAndOptionsOverride(t *testing.T) {
	path := writeConfig(t, "detection:\n  confidence_threshold: 0.25\n")
	t.Setenv("YOLOV5_DETECTION_CONFIDENCE_THRESHOLD", "0.6")
	t.Setenv("YOLOV5_SERVER_ADDR", ":9090")

	cfg, err := Load(path, Options{})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, cfg.Detection.ConfidenceThreshold, 1e-6)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	conf := float32(0.7)
	cfg, err = Load(path, Options{Confidence: &conf, Weights: "other.onnx", Addr: ":7000"})
	require.NoError(t, err)
	assert.InDelta(t, 0.7, cfg.Detection.ConfidenceThreshold, 1e-6)
	assert.Equal(t, "other.onnx", cfg.Model.Path)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "confidence above one", body: "detection:\n  confidence_threshold: 1.5\n"},
		{name: "negative iou", body: "detection:\n  iou_threshold: -0.1\n"},
		{name: "unknown format", body: "output:\n  format: xml\n"},
		{name: "annotate without dir", body: "output:\n  annotate: true\n"},
		{name: "empty model path", body: "model:\n  path: \"\"\n"},
		{name: "zero upload limit", body: "server:\n  max_upload_mb: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body), Options{})
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), Options{})
	assert.Error(t, err)
}

// chdir changes the working directory for the duration of the test and
// restores it on cleanup (equivalent of testing.T.Chdir, added in Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}
