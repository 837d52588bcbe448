package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-yolov5/config"
	"github.com/nvr-ai/go-yolov5/server"
)

func newServeCmd(global *globalFlags) *cobra.Command {
	var weights, device, addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve detections over HTTP",
		Long: `Serve POST /detect (multipart image upload), GET /healthz and GET /metrics.

  curl -F camera_1=@bus.jpg http://localhost:8000/detect`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup(cmd, global, config.Options{Weights: weights, Device: device, Addr: addr})
			if err != nil {
				return err
			}
			defer env.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(env.detector, server.Config{
				Addr:           env.cfg.Server.Addr,
				MaxUploadBytes: env.cfg.Server.MaxUploadMB << 20,
				Concurrency:    env.cfg.Detection.WorkerCount(),
				Names:          env.names(),
			}, env.log)
			return srv.Start(ctx)
		},
	}
	cmd.Flags().StringVar(&weights, "weights", "", "ONNX model path")
	cmd.Flags().StringVar(&device, "device", "", "execution device")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	return cmd
}
