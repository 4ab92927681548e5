package providers

// CoreMLOptions configures the CoreML execution provider.
// See: https://onnxruntime.ai/docs/execution-providers/CoreML-ExecutionProvider.html
type CoreMLOptions struct {
	// Flags is the COREML_FLAG_* bit set, e.g. 0x001 for CPU only.
	Flags uint32 `yaml:"flags"`
}
