package providers

// Config selects the model, execution provider and runtime tuning for a Session.
type Config struct {
	// ModelPath is the ONNX model file.
	ModelPath string `json:"model_path" yaml:"model_path"`
	// LibraryPath is the ONNX Runtime shared library. Empty uses GetSharedLibPath.
	LibraryPath string `json:"library_path" yaml:"library_path"`
	// Options selects the execution provider. Nil means CPU.
	Options ProviderOptions `json:"-" yaml:"-"`
	// Optimization tunes the session. Nil uses DefaultOptimizationConfig.
	Optimization *OptimizationConfig `json:"optimization,omitempty" yaml:"optimization,omitempty"`
	// InputNames and OutputNames override the names read from the model. Empty uses the first
	// declared input and output.
	InputNames  []string `json:"input_names" yaml:"input_names"`
	OutputNames []string `json:"output_names" yaml:"output_names"`
}
