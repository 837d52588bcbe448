// Package metrics provides Prometheus metrics for the detection pipeline.
//
// Metrics:
//   - yolov5_runs_total: Detector runs by outcome
//   - yolov5_stage_duration_seconds: Time spent in preprocess, inference, decode and suppress
//   - yolov5_candidates_total: Rows above the confidence threshold, before suppression
//   - yolov5_detections_total: Detections returned after suppression
//   - yolov5_inference_in_flight: Engine calls currently running
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Stage names.
const (
	StagePreprocess = "preprocess"
	StageInference  = "inference"
	StageDecode     = "decode"
	StageSuppress   = "suppress"
)

// Run outcomes.
const (
	StatusOK           = "ok"
	StatusInvalidInput = "invalid_input"
	StatusInference    = "inference_error"
	StatusError        = "error"
)

var (
	// RunsTotal counts detector runs by outcome.
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yolov5_runs_total",
			Help: "Total number of detector runs",
		},
		[]string{"status"},
	)

	// StageDuration tracks per-stage duration in seconds.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yolov5_stage_duration_seconds",
			Help:    "Detector stage duration in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"stage"},
	)

	// CandidatesTotal counts decoded rows above the confidence threshold.
	CandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yolov5_candidates_total",
			Help: "Total number of candidate detections before suppression",
		},
	)

	// DetectionsTotal counts detections returned to callers.
	DetectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "yolov5_detections_total",
			Help: "Total number of detections after suppression",
		},
	)

	// InferenceInFlight tracks engine calls in progress.
	InferenceInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yolov5_inference_in_flight",
			Help: "Number of inference engine calls in progress",
		},
	)
)

// RecordStage observes the duration of one pipeline stage.
func RecordStage(stage string, d time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordRun counts one finished run.
func RecordRun(status string) {
	RunsTotal.WithLabelValues(status).Inc()
}

// RecordDetections counts the candidates and kept detections of one run.
func RecordDetections(candidates, kept int) {
	CandidatesTotal.Add(float64(candidates))
	DetectionsTotal.Add(float64(kept))
}

// TrackInference marks an engine call as started and returns a func that marks it finished.
func TrackInference() func() {
	InferenceInFlight.Inc()
	return InferenceInFlight.Dec
}
