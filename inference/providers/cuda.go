package providers

import "strconv"

// CUDAOptions configures the CUDA execution provider.
// See:
// https://onnxruntime.ai/docs/execution-providers/CUDA-ExecutionProvider.html#configuration-options
type CUDAOptions struct {
	// DeviceID selects the GPU.
	DeviceID int `yaml:"device_id"`
	// GPUMemLimit caps the device memory arena in bytes. Zero means unlimited.
	GPUMemLimit int64 `yaml:"gpu_mem_limit"`
	// ArenaExtendStrategy is kNextPowerOfTwo or kSameAsRequested.
	ArenaExtendStrategy string `yaml:"arena_extend_strategy"`
	// CudnnConvAlgoSearch is EXHAUSTIVE, HEURISTIC or DEFAULT.
	CudnnConvAlgoSearch string `yaml:"cudnn_conv_algo_search"`
}

// ProviderOptions returns the key/value form ONNX Runtime expects.
func (o CUDAOptions) ProviderOptions() map[string]string {
	m := map[string]string{
		"device_id": strconv.Itoa(o.DeviceID),
	}
	if o.GPUMemLimit > 0 {
		m["gpu_mem_limit"] = strconv.FormatInt(o.GPUMemLimit, 10)
	}
	if o.ArenaExtendStrategy != "" {
		m["arena_extend_strategy"] = o.ArenaExtendStrategy
	}
	if o.CudnnConvAlgoSearch != "" {
		m["cudnn_conv_algo_search"] = o.CudnnConvAlgoSearch
	}
	return m
}
