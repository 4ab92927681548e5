package providers

import "strconv"

// OpenVINOOptions configures the OpenVINO execution provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/OpenVINO-ExecutionProvider.html#summary-of-options
type OpenVINOOptions struct {
	// DeviceType overrides the accelerator, e.g. CPU, GPU, NPU.
	DeviceType string `yaml:"device_type"`
	// Precision is one of FP32, FP16, ACCURACY.
	Precision string `yaml:"precision"`
	// NumOfThreads overrides the default of 8 inference threads.
	NumOfThreads int `yaml:"num_of_threads"`
	// NumStreams overrides the default of 1 stream.
	NumStreams int `yaml:"num_streams"`
	// CacheDir stores compiled blobs between runs.
	CacheDir string `yaml:"cache_dir"`
}

// ProviderOptions returns the key/value form ONNX Runtime expects. Unset
// fields are omitted.
func (o OpenVINOOptions) ProviderOptions() map[string]string {
	m := map[string]string{}
	if o.DeviceType != "" {
		m["device_type"] = o.DeviceType
	}
	if o.Precision != "" {
		m["precision"] = o.Precision
	}
	if o.NumOfThreads > 0 {
		m["num_of_threads"] = strconv.Itoa(o.NumOfThreads)
	}
	if o.NumStreams > 0 {
		m["num_streams"] = strconv.Itoa(o.NumStreams)
	}
	if o.CacheDir != "" {
		m["cache_dir"] = o.CacheDir
	}
	return m
}
