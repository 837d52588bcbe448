package commands

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/images"
	"github.com/nvr-ai/go-yolov5/render"
	"github.com/nvr-ai/go-yolov5/util"
)

type detectFlags struct {
	weights  string
	source   string
	device   string
	conf     float32
	iou      float32
	output   string
	format   string
	annotate bool
	jobs     int
}

func newDetectCmd(global *globalFlags) *cobra.Command {
	f := &detectFlags{}
	cmd := &cobra.Command{
		Use:   "detect",
		Short: "Detect objects in an image or a directory of images",
		Long: `Detect objects in every .jpg, .jpeg, .png, .bmp and .webp file of --source.

The report is written to <output>/detections.<format>, or to stdout when no output
directory is set. With --annotate, a copy of each image with its boxes drawn is written
next to the report.`,
		Example: `  yolov5 detect --weights yolov5s.onnx --source data/images --output runs/detect --annotate
  yolov5 detect --weights yolov5s.onnx --source bus.jpg --device 0 --conf-thres 0.25`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDetect(cmd, global, f)
		},
	}
	cmd.Flags().StringVar(&f.weights, "weights", "", "ONNX model path")
	cmd.Flags().StringVar(&f.source, "source", "", "image file or directory")
	cmd.Flags().StringVar(&f.device, "device", "", "cpu, a CUDA device id, cuda:N, coreml or openvino[:TYPE]")
	cmd.Flags().Float32Var(&f.conf, "conf-thres", 0, "confidence threshold")
	cmd.Flags().Float32Var(&f.iou, "iou-thres", 0, "NMS IoU threshold")
	cmd.Flags().StringVar(&f.output, "output", "", "output directory")
	cmd.Flags().StringVar(&f.format, "format", "", "report format (json or yaml)")
	cmd.Flags().BoolVar(&f.annotate, "annotate", false, "write annotated images")
	cmd.Flags().IntVar(&f.jobs, "jobs", 1, "images processed concurrently")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}

func detectOptions(cmd *cobra.Command, f *detectFlags) config.Options {
	opts := config.Options{Weights: f.weights, Device: f.device, OutputDir: f.output, Format: f.format}
	if cmd.Flags().Changed("conf-thres") {
		opts.Confidence = &f.conf
	}
	if cmd.Flags().Changed("iou-thres") {
		opts.IoU = &f.iou
	}
	if cmd.Flags().Changed("annotate") {
		opts.Annotate = &f.annotate
	}
	return opts
}

func runDetect(cmd *cobra.Command, global *globalFlags, f *detectFlags) error {
	files, err := util.ListImageFiles(f.source)
	if err != nil {
		return err
	}

	env, err := setup(cmd, global, detectOptions(cmd, f))
	if err != nil {
		return err
	}
	defer env.Close()

	out := env.cfg.Output
	if out.Dir != "" {
		if err := os.MkdirAll(out.Dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create output directory %s", out.Dir)
		}
	}

	results := make([]util.ImageResult, len(files))
	g, ctx := errgroup.WithContext(cmd.Context())
	if f.jobs > 0 {
		g.SetLimit(f.jobs)
	}
	for i, file := range files {
		i, file := i, file
		g.Go(func() error {
			results[i] = detectFile(ctx, env, file.Path)
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Error != "" {
			failed++
		}
	}
	env.log.WithFields(logrus.Fields{"images": len(files), "failed": failed}).Info("detection finished")

	report := util.Report{Model: env.cfg.Model.Path, Device: env.cfg.Model.Device, Images: results}
	if out.Dir == "" {
		return util.WriteReport(cmd.OutOrStdout(), out.Format, report)
	}

	path := filepath.Join(out.Dir, "detections."+out.Format)
	w, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create report %s", path)
	}
	if err := util.WriteReport(w, out.Format, report); err != nil {
		_ = w.Close()
		return err
	}
	env.log.WithField("report", path).Info("report written")
	return errors.Wrap(w.Close(), "failed to close report")
}

func detectFile(ctx context.Context, env *runtimeEnv, path string) util.ImageResult {
	res := util.ImageResult{Path: path, Detections: []util.LabeledDetection{}}
	log := env.log.WithField("image", path)

	img, err := images.Load(path)
	if err != nil {
		log.WithError(err).Warn("skipping image")
		res.Error = err.Error()
		return res
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	dets, err := env.detector.Run(ctx, img)
	if err != nil {
		log.WithError(err).Error("detection failed")
		res.Error = err.Error()
		return res
	}
	res.Detections = util.Label(dets, env.names())
	log.WithField("detections", len(dets)).Debug("image processed")

	if env.cfg.Output.Annotate {
		opts := render.DefaultOptions()
		opts.Names = env.names()
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)) + ".jpg"
		if err := render.WriteAnnotated(filepath.Join(env.cfg.Output.Dir, name), img, dets, opts); err != nil {
			log.WithError(err).Warn("failed to write annotated image")
		}
	}
	return res
}
