// Package providers - ONNX Runtime execution providers and inference sessions.
package providers

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// ProviderBackend names an ONNX Runtime execution provider.
type ProviderBackend string

// ProviderOptions is a marker interface for provider-specific config.
type ProviderOptions interface {
	isProviderOptions()
}

// ExecutionProvider represents the contract that all execution providers must implement.
type ExecutionProvider interface {
	Backend() ProviderBackend
	Options() ProviderOptions
	// Append registers the provider on a set of session options.
	Append(options *ort.SessionOptions) error
}

// NewProvider creates a new provider based on the type of its options.
//
// Arguments:
//   - options: The options for the provider.
//
// Returns:
//   - ExecutionProvider: The new provider.
//   - error: An error if the options type is not supported.
func NewProvider(options ProviderOptions) (ExecutionProvider, error) {
	switch opts := options.(type) {
	case nil:
		return NewCPUProvider(CPUOptions{}), nil
	case CPUOptions:
		return NewCPUProvider(opts), nil
	case CoreMLOptions:
		return NewCoreMLProvider(opts), nil
	case OpenVINOOptions:
		return NewOpenVINOProvider(opts), nil
	case CUDAOptions:
		return NewCUDAProvider(opts), nil
	default:
		return nil, errors.Errorf("unsupported provider options type: %T", opts)
	}
}

// ParseDevice maps a device string to provider options.
//
// Accepted forms are "", "cpu", a bare GPU index such as "0", "cuda", "cuda:1", "coreml" and
// "openvino" (optionally "openvino:GPU").
func ParseDevice(device string) (ProviderOptions, error) {
	d := strings.ToLower(strings.TrimSpace(device))
	name, arg, _ := strings.Cut(d, ":")

	switch name {
	case "", string(CPUProviderBackend):
		return CPUOptions{}, nil
	case string(CUDAProviderBackend):
		id := 0
		if arg != "" {
			n, err := strconv.Atoi(arg)
			if err != nil || n < 0 {
				return nil, errors.Errorf("invalid CUDA device id %q", arg)
			}
			id = n
		}
		return CUDAOptions{DeviceID: id}, nil
	case string(CoreMLProviderBackend):
		return CoreMLOptions{}, nil
	case string(OpenVINOProviderBackend):
		deviceType := "CPU"
		if arg != "" {
			deviceType = strings.ToUpper(arg)
		}
		return OpenVINOOptions{DeviceType: deviceType}, nil
	}

	if n, err := strconv.Atoi(d); err == nil && n >= 0 {
		return CUDAOptions{DeviceID: n}, nil
	}
	return nil, errors.Errorf("unknown device %q", device)
}
