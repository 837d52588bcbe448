package providers

import (
	"context"
	"os"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/nvr-ai/go-yolov5/inference"
	"github.com/nvr-ai/go-yolov5/tensor"
)

var envMu sync.Mutex

// InitializeEnvironment loads the ONNX Runtime shared library once per process.
//
// Arguments:
//   - libPath: The shared library path. Empty uses GetSharedLibPath.
//
// Returns:
//   - error: An error if the library is missing or fails to initialize.
func InitializeEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}
	if libPath == "" {
		libPath = GetSharedLibPath()
	}
	if _, err := os.Stat(libPath); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s (set %s to override)", libPath, SharedLibraryEnv)
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}

// Session is an ONNX Runtime model session. It implements inference.Engine.
type Session struct {
	session   *ort.DynamicAdvancedSession
	provider  ExecutionProvider
	modelPath string
	inputs    []inference.NodeInfo
	outputs   []inference.NodeInfo
}

var (
	_ inference.Engine         = (*Session)(nil)
	_ inference.MetadataSource = (*Session)(nil)
)

// NewSession creates a new ONNX Runtime session.
//
// Order of operations:
//  1. Environment setup: loads the native runtime once per process.
//  2. Model introspection: reads the declared input and output nodes.
//  3. Session options: optimization settings and the execution provider.
//  4. Session creation: binds the selected input and output names.
//
// Tensors are allocated per Run, so any input size the model declares can be fed.
//
// Arguments:
//   - provider: The execution provider for the session.
//   - cfg: The model and runtime configuration.
//
// Returns:
//   - *Session: The session.
//   - error: An error if the session creation fails.
func NewSession(provider ExecutionProvider, cfg Config) (*Session, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("model path is required")
	}
	if err := InitializeEnvironment(cfg.LibraryPath); err != nil {
		return nil, err
	}

	declaredIn, declaredOut, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading inputs and outputs of %s", cfg.ModelPath)
	}
	inputs, err := selectNodes(declaredIn, cfg.InputNames, "input")
	if err != nil {
		return nil, err
	}
	outputs, err := selectNodes(declaredOut, cfg.OutputNames, "output")
	if err != nil {
		return nil, err
	}

	opt := DefaultOptimizationConfig()
	if cfg.Optimization != nil {
		opt = *cfg.Optimization
	}
	options, err := SessionOptions(opt, provider)
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, nodeNames(inputs), nodeNames(outputs), options)
	if err != nil {
		return nil, errors.Wrapf(err, "error creating ORT session for %s", cfg.ModelPath)
	}

	return &Session{
		session:   session,
		provider:  provider,
		modelPath: cfg.ModelPath,
		inputs:    inputs,
		outputs:   outputs,
	}, nil
}

// selectNodes returns the requested nodes, or the first declared node when none are requested.
func selectNodes(declared []ort.InputOutputInfo, names []string, kind string) ([]inference.NodeInfo, error) {
	if len(declared) == 0 {
		return nil, errors.Errorf("model declares no %s", kind)
	}
	byName := make(map[string]inference.NodeInfo, len(declared))
	all := make([]inference.NodeInfo, 0, len(declared))
	for _, d := range declared {
		n := inference.NodeInfo{Name: d.Name, Shape: append([]int64(nil), d.Dimensions...)}
		byName[d.Name] = n
		all = append(all, n)
	}
	if len(names) == 0 {
		return all[:1], nil
	}
	out := make([]inference.NodeInfo, 0, len(names))
	for _, name := range names {
		n, ok := byName[name]
		if !ok {
			return nil, errors.Errorf("model has no %s named %q", kind, name)
		}
		out = append(out, n)
	}
	return out, nil
}

func nodeNames(nodes []inference.NodeInfo) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

// Backend returns the execution provider the session runs on.
func (s *Session) Backend() ProviderBackend { return s.provider.Backend() }

// Inputs returns the bound input nodes.
func (s *Session) Inputs() []inference.NodeInfo { return s.inputs }

// Outputs returns the bound output nodes.
func (s *Session) Outputs() []inference.NodeInfo { return s.outputs }

// Run feeds input to the session and returns a copy of the first output.
//
// ONNX Runtime cannot abort a running graph, so ctx is only checked before the call.
func (s *Session) Run(ctx context.Context, input *tensor.Dense, inputName string) (*tensor.Dense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.session == nil {
		return nil, errors.New("session is closed")
	}
	if inputName != s.inputs[0].Name {
		return nil, errors.Errorf("unknown input %q, session is bound to %q", inputName, s.inputs[0].Name)
	}

	dims := input.Shape()
	shape := make(ort.Shape, len(dims))
	for i, d := range dims {
		shape[i] = int64(d)
	}
	in, err := ort.NewTensor(shape, input.Data())
	if err != nil {
		return nil, errors.Wrap(err, "error creating input tensor")
	}
	defer in.Destroy()

	outs := make([]ort.Value, len(s.outputs))
	defer func() {
		for _, o := range outs {
			if o != nil {
				o.Destroy()
			}
		}
	}()
	if err := s.session.Run([]ort.Value{in}, outs); err != nil {
		return nil, errors.Wrap(err, "error running ORT session")
	}

	out, ok := outs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.Errorf("output %q is %T, want a float32 tensor", s.outputs[0].Name, outs[0])
	}
	outShape := out.GetShape()
	ints := make([]int, len(outShape))
	for i, d := range outShape {
		ints[i] = int(d)
	}
	data := make([]float32, len(out.GetData()))
	copy(data, out.GetData())
	return tensor.FromData(data, ints...)
}

// Metadata reads the descriptive metadata of the session's model.
func (s *Session) Metadata() (inference.ModelMetadata, error) {
	return ReadMetadata(s.modelPath)
}

// Close releases the native session.
func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	err := s.session.Destroy()
	s.session = nil
	if err != nil {
		return errors.Wrap(err, "error destroying ORT session")
	}
	return nil
}

// ReadMetadata reads producer, graph, version and custom entries from a model file.
// The environment must already be initialized.
func ReadMetadata(modelPath string) (inference.ModelMetadata, error) {
	md, err := ort.GetModelMetadata(modelPath)
	if err != nil {
		return inference.ModelMetadata{}, errors.Wrapf(err, "error reading metadata of %s", modelPath)
	}
	defer md.Destroy()

	var out inference.ModelMetadata
	fields := []struct {
		dst *string
		get func() (string, error)
	}{
		{&out.Producer, md.GetProducerName},
		{&out.Graph, md.GetGraphName},
		{&out.Domain, md.GetDomain},
		{&out.Description, md.GetDescription},
	}
	for _, f := range fields {
		if *f.dst, err = f.get(); err != nil {
			return inference.ModelMetadata{}, errors.Wrap(err, "error reading model metadata")
		}
	}
	if out.Version, err = md.GetVersion(); err != nil {
		return inference.ModelMetadata{}, errors.Wrap(err, "error reading model version")
	}

	keys, err := md.GetCustomMetadataMapKeys()
	if err != nil {
		return inference.ModelMetadata{}, errors.Wrap(err, "error reading custom metadata keys")
	}
	out.Custom = make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := md.LookupCustomMetadataMap(k)
		if err != nil {
			return inference.ModelMetadata{}, errors.Wrapf(err, "error reading custom metadata %q", k)
		}
		if ok {
			out.Custom[k] = v
		}
	}
	return out, nil
}
