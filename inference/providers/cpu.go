package providers

import (
	ort "github.com/yalue/onnxruntime_go"
)

const (
	// CPUProviderBackend runs the model on the default ONNX Runtime CPU kernels.
	CPUProviderBackend ProviderBackend = "cpu"
)

// CPUOptions contains arguments for the CPU provider. The CPU provider needs none.
type CPUOptions struct{}

func (CPUOptions) isProviderOptions() {}

// CPUProvider implements the ExecutionProvider interface.
type CPUProvider struct {
	options CPUOptions
}

// NewCPUProvider creates a new CPU provider.
func NewCPUProvider(options CPUOptions) *CPUProvider {
	return &CPUProvider{options: options}
}

// Backend returns the backend of the CPU provider.
func (p *CPUProvider) Backend() ProviderBackend { return CPUProviderBackend }

// Options returns the options of the CPU provider.
func (p *CPUProvider) Options() ProviderOptions { return p.options }

// Append is a no-op; ONNX Runtime always falls back to the CPU provider.
func (p *CPUProvider) Append(*ort.SessionOptions) error { return nil }
