package inference

import (
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// The ONNX Runtime environment is process-wide; engines share it and the
// last one to close tears it down.
var (
	envMu   sync.Mutex
	envRefs int
)

func acquireEnvironment(libPath string) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 && !ort.IsInitialized() {
		if libPath == "" {
			libPath = os.Getenv(SharedLibraryEnv)
		}
		if libPath != "" {
			if _, err := os.Stat(libPath); err != nil {
				return fmt.Errorf("onnxruntime shared library not found at %s: %w", libPath, err)
			}
			ort.SetSharedLibraryPath(libPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
		}
	}
	envRefs++
	return nil
}

func releaseEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if envRefs == 0 {
		return nil
	}
	envRefs--
	if envRefs == 0 && ort.IsInitialized() {
		if err := ort.DestroyEnvironment(); err != nil {
			return fmt.Errorf("failed to destroy ONNX Runtime environment: %w", err)
		}
	}
	return nil
}

// Describe reports the model's declared inputs and outputs.
func Describe(modelPath, libPath string) (inputs, outputs []ort.InputOutputInfo, err error) {
	if err := acquireEnvironment(libPath); err != nil {
		return nil, nil, err
	}
	defer func() { _ = releaseEnvironment() }()

	inputs, outputs, err = ort.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to inspect model: %w", err)
	}
	return inputs, outputs, nil
}
