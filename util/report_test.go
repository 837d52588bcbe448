package util

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-yolov5/models/postprocess"
)

func sampleReport() Report {
	dets := []postprocess.Detection{
		{ClassID: 0, Confidence: 0.9, Left: 10, Top: 20, Width: 30, Height: 40},
		{ClassID: 7, Confidence: 0.6, Left: 1, Top: 2, Width: 3, Height: 4},
	}
	names := map[int]string{0: "person"}
	return Report{
		Model:  "yolov5s.onnx",
		Device: "cpu",
		Images: []ImageResult{
			{Path: "bus.jpg", Width: 810, Height: 1080, Detections: Label(dets, func(id int) string { return names[id] })},
			{Path: "broken.png", Error: "failed to decode image", Detections: []LabeledDetection{}},
		},
	}
}

func TestLabel(t *testing.T) {
	dets := []postprocess.Detection{{ClassID: 3}}
	assert.Equal(t, "", Label(dets, nil)[0].Label)
	assert.Equal(t, "car", Label(dets, func(int) string { return "car" })[0].Label)
	assert.Empty(t, Label(nil, nil))
}

func TestWriteReport_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, "JSON", sampleReport()))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	imgs := decoded["images"].([]interface{})
	first := imgs[0].(map[string]interface{})
	det := first["detections"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "person", det["label"])
	assert.Equal(t, float64(10), det["left"])
	assert.Equal(t, float64(0), det["class_id"])
	_, hasLabel := first["detections"].([]interface{})[1].(map[string]interface{})["label"]
	assert.False(t, hasLabel)
	assert.Equal(t, "failed to decode image", imgs[1].(map[string]interface{})["error"])
}

func TestWriteReport_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReport(&buf, FormatYAML, sampleReport()))

	var decoded Report
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Images, 2)
	assert.Equal(t, "person", decoded.Images[0].Detections[0].Label)
	assert.Equal(t, 40, decoded.Images[0].Detections[0].Height)
	assert.Contains(t, buf.String(), "class_id: 7")
}

func TestWriteReport_UnknownFormat(t *testing.T) {
	assert.Error(t, WriteReport(&bytes.Buffer{}, "xml", sampleReport()))
}
