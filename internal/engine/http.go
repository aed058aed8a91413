package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/go-chatter-tts/internal/audio"
	"github.com/example/go-chatter-tts/internal/config"
	"github.com/example/go-chatter-tts/internal/tts"
)

// httpModel talks to a standalone chatterbox model server. Construction
// probes the server's health and asks it to warm the variant's weights,
// so a returned model represents weights actually resident upstream.
type httpModel struct {
	baseURL string
	device  string
	variant tts.Variant
	client  *http.Client
	log     *slog.Logger
}

func newHTTPLoader(cfg config.EngineConfig, device string, log *slog.Logger) (tts.LoadFunc, error) {
	base, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse engine URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("engine URL %q must include scheme and host", cfg.URL)
	}

	if log == nil {
		log = slog.Default()
	}

	client := &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	baseURL := strings.TrimRight(base.String(), "/")

	return func(ctx context.Context, v tts.Variant) (tts.Model, error) {
		m := &httpModel{
			baseURL: baseURL,
			device:  device,
			variant: v,
			client:  client,
			log:     log,
		}
		if err := m.warmup(ctx); err != nil {
			return nil, err
		}
		return m, nil
	}, nil
}

// warmup checks the upstream server and requests a load of this
// variant's weights. Any failure here is a construction failure.
func (m *httpModel) warmup(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("model server unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server unhealthy: %s", resp.Status)
	}

	form := url.Values{}
	form.Set("model", string(m.variant))
	form.Set("device", m.device)

	warm, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/warmup",
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build warmup request: %w", err)
	}
	warm.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	warmResp, err := m.client.Do(warm)
	if err != nil {
		return fmt.Errorf("warmup %s model: %w", m.variant, err)
	}
	defer func() { _ = warmResp.Body.Close() }()
	if warmResp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(warmResp.Body, 4096))
		return fmt.Errorf("warmup %s model: %s: %s", m.variant, warmResp.Status, strings.TrimSpace(string(body)))
	}
	return nil
}

func (m *httpModel) Generate(ctx context.Context, text string, opts tts.GenerateOptions) ([]float32, int, error) {
	body, contentType, err := m.buildForm(text, opts)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/synthesize", body)
	if err != nil {
		return nil, 0, fmt.Errorf("build synthesize request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("model server request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, 0, fmt.Errorf("model server: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}

	wavBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("read model server response: %w", err)
	}

	samples, rate, err := audio.DecodeWAV(wavBytes)
	if err != nil {
		return nil, 0, fmt.Errorf("decode model server output: %w", err)
	}

	m.log.Debug("http generation complete",
		slog.String("variant", string(m.variant)),
		slog.Int("samples", len(samples)),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	return samples, rate, nil
}

// buildForm assembles the multipart body the upstream server expects:
// the same field names the chatterbox HTTP API uses.
func (m *httpModel) buildForm(text string, opts tts.GenerateOptions) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := map[string]string{
		"text":         text,
		"language":     opts.Language,
		"exaggeration": formatFloat(opts.Exaggeration),
		"cfg_weight":   formatFloat(opts.CFGWeight),
		"temperature":  formatFloat(opts.Temperature),
		"speed_factor": formatFloat(opts.SpeedFactor),
	}
	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("write form field %s: %w", name, err)
		}
	}

	if opts.ReferenceAudioPath != "" {
		f, err := os.Open(opts.ReferenceAudioPath)
		if err != nil {
			return nil, "", fmt.Errorf("open reference audio: %w", err)
		}
		defer func() { _ = f.Close() }()

		part, err := w.CreateFormFile("reference_audio", filepath.Base(opts.ReferenceAudioPath))
		if err != nil {
			return nil, "", fmt.Errorf("create reference audio part: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", fmt.Errorf("copy reference audio: %w", err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (m *httpModel) SampleRate() int { return DefaultSampleRate }

// Close asks the upstream server to drop its cache for this variant.
// Best effort: the upstream frees memory on its own schedule.
func (m *httpModel) Close() error {
	req, err := http.NewRequest(http.MethodPost, m.baseURL+"/clear_cache", nil)
	if err != nil {
		return err
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
