// Package providers configures ONNX Runtime session options: threading, graph
// optimization and the execution provider (cpu, coreml, openvino, cuda).
package providers

import (
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// Backend names an ONNX Runtime execution provider.
type Backend string

const (
	// CPUBackend uses the default CPU execution provider.
	CPUBackend Backend = "cpu"
	// CoreMLBackend uses Apple CoreML for macOS/iOS acceleration.
	CoreMLBackend Backend = "coreml"
	// OpenVINOBackend uses Intel OpenVINO.
	OpenVINOBackend Backend = "openvino"
	// CUDABackend uses NVIDIA CUDA.
	CUDABackend Backend = "cuda"
)

// Backends lists every supported backend.
var Backends = []Backend{CPUBackend, CoreMLBackend, OpenVINOBackend, CUDABackend}

// Config describes how an ONNX Runtime session is built.
type Config struct {
	// Backend selects the execution provider. Empty means cpu.
	Backend Backend `yaml:"backend"`
	// IntraOpThreads parallelizes work inside a node. Zero lets the runtime decide.
	IntraOpThreads int `yaml:"intra_op_threads"`
	// InterOpThreads parallelizes independent nodes. Zero lets the runtime decide.
	InterOpThreads int `yaml:"inter_op_threads"`
	// Optimization is one of disable, basic, extended, all. Empty means extended.
	Optimization string `yaml:"optimization"`

	CoreML   CoreMLOptions   `yaml:"coreml"`
	OpenVINO OpenVINOOptions `yaml:"openvino"`
	CUDA     CUDAOptions     `yaml:"cuda"`
}

// DefaultConfig returns a cpu configuration using half the available cores.
func DefaultConfig() Config {
	return Config{
		Backend:        CPUBackend,
		IntraOpThreads: max(1, runtime.NumCPU()/2),
		InterOpThreads: 1,
		Optimization:   "extended",
	}
}

// Validate reports unknown backends, optimization levels and negative thread counts.
func (c Config) Validate() error {
	if c.Backend != "" {
		known := false
		for _, b := range Backends {
			known = known || b == c.Backend
		}
		if !known {
			return errors.Errorf("unknown execution provider %q", c.Backend)
		}
	}
	if c.IntraOpThreads < 0 || c.InterOpThreads < 0 {
		return errors.Errorf("thread counts must not be negative, got %d/%d", c.IntraOpThreads, c.InterOpThreads)
	}
	if _, err := GraphOptimizationLevel(c.Optimization); err != nil {
		return err
	}
	return nil
}

// GraphOptimizationLevel maps a level name to the runtime constant.
func GraphOptimizationLevel(name string) (ort.GraphOptimizationLevel, error) {
	switch name {
	case "disable":
		return ort.GraphOptimizationLevelDisableAll, nil
	case "basic":
		return ort.GraphOptimizationLevelEnableBasic, nil
	case "extended", "":
		return ort.GraphOptimizationLevelEnableExtended, nil
	case "all":
		return ort.GraphOptimizationLevelEnableAll, nil
	default:
		return 0, errors.Errorf("unknown graph optimization level %q", name)
	}
}
