package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/example/go-chatter-tts/internal/audio"
	"github.com/example/go-chatter-tts/internal/config"
	"github.com/example/go-chatter-tts/internal/tts"
)

const defaultCLIName = "chatterbox-tts"

// cliModel drives the chatterbox CLI as a subprocess. The weights stay
// resident in the CLI's own daemonized runtime; from this side a loaded
// model is a verified executable plus the flags that select its variant.
type cliModel struct {
	executablePath string
	device         string
	variant        tts.Variant
	timeout        time.Duration
	log            *slog.Logger
}

// newCLILoader returns a load function that verifies the executable and
// pre-warms the requested variant before the cache accepts the entry.
func newCLILoader(cfg config.EngineConfig, device string, log *slog.Logger) tts.LoadFunc {
	exe := cfg.CLIPath
	if exe == "" {
		exe = defaultCLIName
	}
	if log == nil {
		log = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	return func(ctx context.Context, v tts.Variant) (tts.Model, error) {
		path, err := exec.LookPath(exe)
		if err != nil {
			return nil, fmt.Errorf("locate chatterbox CLI: %w", err)
		}

		m := &cliModel{
			executablePath: path,
			device:         device,
			variant:        v,
			timeout:        timeout,
			log:            log,
		}

		// Warming up loads the weights into the CLI's runtime so the
		// first real request does not pay the cost. A warmup failure is
		// a construction failure: the cache must not keep this entry.
		if err := m.warmup(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}
}

func (m *cliModel) warmup(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := []string{"warmup", "--device", m.device}
	if m.variant == tts.VariantMultilingual {
		args = append(args, "--multilingual")
	}

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, m.executablePath, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("warmup %s model: %w (%s)", m.variant, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

func (m *cliModel) Generate(ctx context.Context, text string, opts tts.GenerateOptions) ([]float32, int, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	args := m.generateArgs(opts)

	cmd := exec.CommandContext(ctx, m.executablePath, args...)
	cmd.Stdin = strings.NewReader(text)

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, 0, fmt.Errorf("chatterbox CLI: %w (%s)", err, strings.TrimSpace(stderr.String()))
	}

	samples, rate, err := audio.DecodeWAV(out.Bytes())
	if err != nil {
		return nil, 0, fmt.Errorf("decode CLI output: %w", err)
	}

	m.log.Debug("cli generation complete",
		slog.String("variant", string(m.variant)),
		slog.Int("samples", len(samples)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return samples, rate, nil
}

// generateArgs builds the CLI invocation for one request. Text arrives on
// stdin and WAV leaves on stdout so nothing touches the filesystem except
// the optional audio prompt.
func (m *cliModel) generateArgs(opts tts.GenerateOptions) []string {
	args := []string{
		"generate",
		"--text", "-",
		"--output", "-",
		"--device", m.device,
		"--exaggeration", formatFloat(opts.Exaggeration),
		"--cfg-weight", formatFloat(opts.CFGWeight),
		"--temperature", formatFloat(opts.Temperature),
		"--speed-factor", formatFloat(opts.SpeedFactor),
	}
	if m.variant == tts.VariantMultilingual {
		args = append(args, "--multilingual", "--language", opts.Language)
	}
	if opts.ReferenceAudioPath != "" {
		args = append(args, "--audio-prompt", opts.ReferenceAudioPath)
	}
	return args
}

func (m *cliModel) SampleRate() int { return DefaultSampleRate }

// Close is a no-op: the subprocess exits after each call and holds no
// memory between requests on this side of the boundary.
func (m *cliModel) Close() error { return nil }

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
