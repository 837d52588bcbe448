// Package server exposes a Detector over HTTP.
package server

import (
	"context"
	"encoding/json"
	"image"
	"mime/multipart"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/models/postprocess"
	"github.com/nvr-ai/go-yolov5/util"
)

// Detector runs detection on one decoded image.
type Detector interface {
	Run(ctx context.Context, img image.Image) ([]postprocess.Detection, error)
}

// Config configures the HTTP server.
type Config struct {
	Addr string
	// MaxUploadBytes bounds the multipart body of a /detect request.
	MaxUploadBytes int64
	// Concurrency bounds the images of one request processed at the same time.
	Concurrency int
	// Names labels class ids in responses; may be nil.
	Names func(int) string
	// ShutdownTimeout bounds the graceful shutdown.
	ShutdownTimeout time.Duration
}

// Server serves POST /detect, GET /healthz and GET /metrics.
type Server struct {
	cfg      Config
	detector Detector
	log      logrus.FieldLogger
	http     *http.Server
}

// DetectResponse is the body of a successful /detect call, keyed by multipart field name.
type DetectResponse struct {
	Results map[string]util.ImageResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// New builds a server around det.
func New(det Detector, cfg Config, log logrus.FieldLogger) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Server{cfg: cfg, detector: det, log: log}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Post("/detect", s.handleDetect)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.WithField("addr", s.cfg.Addr).Info("starting detection server")
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "detection server error")
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down detection server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			s.log.WithError(err).Error("error shutting down detection server")
		}
		return nil
	})

	return g.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.cfg.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to parse multipart form"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	keys := make([]string, 0, len(r.MultipartForm.File))
	for key, headers := range r.MultipartForm.File {
		if len(headers) > 0 {
			keys = append(keys, key)
		}
	}
	if len(keys) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "no image files in request"})
		return
	}
	sort.Strings(keys)

	var (
		mu      sync.Mutex
		results = make(map[string]util.ImageResult, len(keys))
		failed  int
	)
	g, ctx := errgroup.WithContext(r.Context())
	g.SetLimit(s.cfg.Concurrency)
	for _, key := range keys {
		key := key
		header := r.MultipartForm.File[key][0]
		g.Go(func() error {
			res, err := s.detect(ctx, header)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s.log.WithError(err).WithField("file", key).Warn("detection failed")
				res.Error = err.Error()
				if errors.Is(err, model.ErrInference) {
					failed++
				}
			}
			results[key] = res
			return nil
		})
	}
	_ = g.Wait()

	status := http.StatusOK
	if failed == len(keys) {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, DetectResponse{Results: results})
}

func (s *Server) detect(ctx context.Context, header *multipart.FileHeader) (util.ImageResult, error) {
	res := util.ImageResult{Path: header.Filename, Detections: []util.LabeledDetection{}}

	f, err := header.Open()
	if err != nil {
		return res, errors.Wrap(err, "failed to open upload")
	}
	defer f.Close()

	img, err := images.Decode(f)
	if err != nil {
		return res, model.InvalidInputf("%v", err)
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	dets, err := s.detector.Run(ctx, img)
	if err != nil {
		return res, err
	}
	res.Detections = util.Label(dets, s.cfg.Names)
	return res, nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
