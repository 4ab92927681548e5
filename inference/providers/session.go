package providers

import (
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// SessionOptions builds ONNX Runtime session options for cfg. The caller owns
// the result and must Destroy it once the session is created.
//
// An accelerator that is not compiled into the runtime is logged and skipped,
// leaving the session on the CPU provider.
//
// Arguments:
//   - cfg: The provider configuration.
//   - logger: The logger.
//
// Returns:
//   - *ort.SessionOptions: The options, owned by the caller.
//   - error: The error if the provider cannot be appended.
func SessionOptions(cfg Config, logger *zap.Logger) (*ort.SessionOptions, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "error creating ORT session options")
	}

	level, _ := GraphOptimizationLevel(cfg.Optimization)
	settings := []error{
		options.SetIntraOpNumThreads(cfg.IntraOpThreads),
		options.SetInterOpNumThreads(cfg.InterOpThreads),
		options.SetGraphOptimizationLevel(level),
	}
	for _, err := range settings {
		if err != nil {
			options.Destroy()
			return nil, errors.Wrap(err, "error configuring ORT session options")
		}
	}

	if err := appendProvider(options, cfg); err != nil {
		logger.Warn("execution provider unavailable, falling back to cpu",
			zap.String("backend", string(cfg.Backend)),
			zap.Error(err))
	}

	return options, nil
}

func appendProvider(options *ort.SessionOptions, cfg Config) error {
	switch cfg.Backend {
	case CoreMLBackend:
		return errors.Wrap(options.AppendExecutionProviderCoreML(cfg.CoreML.Flags), "error enabling CoreML")
	case OpenVINOBackend:
		return errors.Wrap(options.AppendExecutionProviderOpenVINO(cfg.OpenVINO.ProviderOptions()), "error enabling OpenVINO")
	case CUDABackend:
		cuda, err := ort.NewCUDAProviderOptions()
		if err != nil {
			return errors.Wrap(err, "error creating CUDA options")
		}
		defer cuda.Destroy()
		if err := cuda.Update(cfg.CUDA.ProviderOptions()); err != nil {
			return errors.Wrap(err, "error converting CUDA options")
		}
		return errors.Wrap(options.AppendExecutionProviderCUDA(cuda), "error enabling CUDA")
	default:
		return nil
	}
}
