package providers

import (
	"os"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// LibraryPathEnv overrides the shared library location.
const LibraryPathEnv = "ONNXRUNTIME_SHARED_LIBRARY_PATH"

var envMu sync.Mutex

// SharedLibPath returns the ONNX Runtime shared library to load: path when set,
// then $ONNXRUNTIME_SHARED_LIBRARY_PATH, then the platform default under
// ./third_party.
func SharedLibPath(path string) string {
	if path != "" {
		return path
	}
	if env := os.Getenv(LibraryPathEnv); env != "" {
		return env
	}

	switch runtime.GOOS {
	case "windows":
		return "./third_party/onnxruntime.dll"
	case "darwin":
		return "./third_party/libonnxruntime.dylib"
	default:
		if runtime.GOARCH == "arm64" {
			return "./third_party/onnxruntime_arm64.so"
		}
		return "./third_party/onnxruntime.so"
	}
}

// InitializeEnvironment loads the shared library once per process. Later calls
// are no-ops.
func InitializeEnvironment(path string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	lib := SharedLibPath(path)
	if _, err := os.Stat(lib); err != nil {
		return errors.Wrapf(err, "ONNX Runtime library not found at %s", lib)
	}

	ort.SetSharedLibraryPath(lib)
	if err := ort.InitializeEnvironment(); err != nil {
		return errors.Wrap(err, "error initializing ORT environment")
	}
	return nil
}
