// Package engine adapts the external pretrained chatterbox model to the
// tts.Model interface. Two backends exist: a subprocess CLI and an HTTP
// client for a standalone model server. Both treat the model as an
// opaque black box that accepts text plus controls and returns WAV audio.
package engine

import (
	"fmt"
	"log/slog"
	"runtime"

	"github.com/example/go-chatter-tts/internal/config"
	"github.com/example/go-chatter-tts/internal/tts"
)

// DefaultSampleRate is the chatterbox model's native output rate. Used
// as a fallback when a backend cannot report a rate of its own.
const DefaultSampleRate = 24000

// ResolveDevice turns the "auto" hint into a concrete device string.
// Apple Silicon gets MPS; everything else falls back to CPU. Explicit
// hints pass through unchanged.
func ResolveDevice(device string) string {
	if device != config.DeviceAuto {
		return device
	}
	if runtime.GOOS == "darwin" && runtime.GOARCH == "arm64" {
		return config.DeviceMPS
	}
	return config.DeviceCPU
}

// NewLoader builds the cache's load function for the configured backend.
func NewLoader(cfg config.EngineConfig, log *slog.Logger) (tts.LoadFunc, error) {
	backend, err := config.NormalizeBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	device, err := config.NormalizeDevice(cfg.Device)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}

	switch backend {
	case config.BackendCLI:
		return newCLILoader(cfg, ResolveDevice(device), log), nil
	case config.BackendHTTP:
		return newHTTPLoader(cfg, ResolveDevice(device), log)
	default:
		return nil, fmt.Errorf("unsupported backend %q", backend)
	}
}
