package config

import (
	"fmt"
	"strings"
)

const (
	BackendCLI  = "cli"
	BackendHTTP = "http"
)

const (
	DeviceAuto = "auto"
	DeviceMPS  = "mps"
	DeviceCUDA = "cuda"
	DeviceCPU  = "cpu"
)

func NormalizeBackend(raw string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(raw))
	if backend == "" {
		backend = BackendCLI
	}
	switch backend {
	case BackendCLI, BackendHTTP:
		return backend, nil
	default:
		return "", fmt.Errorf("invalid backend %q (expected %s|%s)", raw, BackendCLI, BackendHTTP)
	}
}

func NormalizeDevice(raw string) (string, error) {
	device := strings.ToLower(strings.TrimSpace(raw))
	if device == "" {
		device = DeviceAuto
	}
	switch device {
	case DeviceAuto, DeviceMPS, DeviceCUDA, DeviceCPU:
		return device, nil
	default:
		return "", fmt.Errorf(
			"invalid device %q (expected %s|%s|%s|%s)",
			raw,
			DeviceAuto,
			DeviceMPS,
			DeviceCUDA,
			DeviceCPU,
		)
	}
}
