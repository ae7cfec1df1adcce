// Package device selects the compute device model backends run on.
package device

import (
	"fmt"
	"os"
	"strings"
)

// Device names a compute device.
type Device string

const (
	CPU  Device = "cpu"
	CUDA Device = "cuda"
)

func (d Device) String() string { return string(d) }

// IsAccelerator reports whether d is a hardware accelerator.
func (d Device) IsAccelerator() bool { return d == CUDA }

// Probe reports whether a CUDA-capable accelerator is visible.
type Probe func() bool

// nvidiaMarkers are paths that exist when the NVIDIA driver is loaded.
var nvidiaMarkers = []string{
	"/proc/driver/nvidia/version",
	"/dev/nvidia0",
}

// DetectCUDA is the default Probe. CUDA_VISIBLE_DEVICES set to "" or "-1"
// hides every accelerator, the same way the CUDA runtime treats it.
func DetectCUDA() bool {
	if v, ok := os.LookupEnv("CUDA_VISIBLE_DEVICES"); ok {
		v = strings.TrimSpace(v)
		if v == "" || v == "-1" {
			return false
		}
	}
	for _, p := range nvidiaMarkers {
		if _, err := os.Stat(p); err == nil {
			return true
		}
	}
	return false
}

// Parse validates a device name. "auto" and "" are returned as "".
func Parse(raw string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return "", nil
	case "cpu":
		return CPU, nil
	case "cuda", "gpu":
		return CUDA, nil
	default:
		return "", fmt.Errorf("invalid device %q (expected auto|cuda|cpu)", raw)
	}
}

// Select resolves a configured preference to a concrete device. With "auto"
// the accelerator is used when probe reports one, otherwise the CPU.
func Select(pref string, probe Probe) (Device, error) {
	d, err := Parse(pref)
	if err != nil {
		return "", err
	}
	if d != "" {
		return d, nil
	}
	if probe == nil {
		probe = DetectCUDA
	}
	if probe() {
		return CUDA, nil
	}
	return CPU, nil
}
