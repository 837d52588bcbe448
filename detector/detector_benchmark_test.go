package detector

import (
	"context"
	"fmt"
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-yolov5/models/model"
	"github.com/nvr-ai/go-yolov5/test"
)

var benchmarkResolutions = []struct {
	name          string
	width, height int
}{
	{"VGA", 640, 480},
	{"HD720p", 1280, 720},
	{"FHD1080p", 1920, 1080},
	{"4MP", 2560, 1440},
}

// benchmarkRows fills n output rows with boxes scattered over a 640x640 input.
func benchmarkRows(n, classes int) [][]float32 {
	rng := rand.New(rand.NewSource(7))
	rows := make([][]float32, n)
	for i := range rows {
		scores := make([]float32, classes)
		for c := range scores {
			scores[c] = rng.Float32()
		}
		rows[i] = test.Row(rng.Float32()*640, rng.Float32()*640, 20+rng.Float32()*200, 20+rng.Float32()*200,
			rng.Float32(), scores...)
	}
	return rows
}

// BenchmarkDetectorRun measures the whole pipeline around a fake engine for common camera sizes.
func BenchmarkDetectorRun(b *testing.B) {
	engine := test.NewMockEngine(640, 640, 80)
	engine.Rows = benchmarkRows(25200, 80)
	d, err := New(engine, model.DefaultParameters(), WithLogger(quietLogger()))
	if err != nil {
		b.Fatal(err)
	}

	for _, res := range benchmarkResolutions {
		frame := test.NewMockFrameGenerator(res.width, res.height).GenerateStaticFrame()
		b.Run(fmt.Sprintf("%s_%dx%d", res.name, res.width, res.height), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.Run(context.Background(), frame); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkDetectorRun_Workers compares packing and decoding with one and many goroutines.
func BenchmarkDetectorRun_Workers(b *testing.B) {
	frame := test.NewMockFrameGenerator(1920, 1080).GenerateStaticFrame()
	rows := benchmarkRows(25200, 80)

	for _, workers := range []int{1, 4, 0} {
		engine := test.NewMockEngine(640, 640, 80)
		engine.Rows = rows
		params := model.DefaultParameters()
		params.Workers = workers
		d, err := New(engine, params, WithLogger(quietLogger()))
		if err != nil {
			b.Fatal(err)
		}

		b.Run(fmt.Sprintf("workers=%d", params.WorkerCount()), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				if _, err := d.Run(context.Background(), frame); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
