package config

import (
	"fmt"
	"strings"
)

const (
	BackendONNX   = "onnx"
	BackendCLI    = "cli"
	BackendRemote = "remote"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendONNX
	}
	switch backend {
	case BackendONNX, BackendCLI, BackendRemote:
		return backend, nil
	case "native", "native-onnx":
		return BackendONNX, nil
	case "http":
		return BackendRemote, nil
	default:
		return "", fmt.Errorf(
			"invalid backend %q (expected %s|%s|%s)",
			raw,
			BackendONNX,
			BackendCLI,
			BackendRemote,
		)
	}
}
