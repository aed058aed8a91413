package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/example/go-chatter-tts/internal/audio"
	"github.com/example/go-chatter-tts/internal/config"
	"github.com/example/go-chatter-tts/internal/system"
	"github.com/example/go-chatter-tts/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Synthesizer runs one synthesis request end to end.
type Synthesizer interface {
	Synthesize(ctx context.Context, req tts.Request) (tts.Result, error)
}

// CacheReporter exposes model-cache occupancy and eviction.
type CacheReporter interface {
	CacheStatus() map[tts.Variant]bool
	ClearCache() int
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextChars   int
	workers        int
	requestTimeout time.Duration
	device         string
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextChars:   1000,
		workers:        1,
		requestTimeout: 120 * time.Second,
		device:         config.DeviceCPU,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextChars sets the maximum allowed text length for POST /synthesize.
func WithMaxTextChars(n int) Option {
	return func(o *options) { o.maxTextChars = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithDevice sets the device string reported by GET /health.
func WithDevice(device string) Option {
	return func(o *options) { o.device = device }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// maxUploadBytes bounds the multipart form, mostly the reference-audio
// payload.
const maxUploadBytes = 32 << 20

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	synth Synthesizer
	cache CacheReporter
	opts  options
	sem   chan struct{} // semaphore for in-flight synthesis
	log   *slog.Logger
}

// NewHandler returns an http.Handler serving POST /synthesize,
// GET /health, POST /clear_cache, GET /voices, and GET /api/info.
func NewHandler(synth Synthesizer, cache CacheReporter, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{
		synth: synth,
		cache: cache,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/synthesize", h.handleSynthesize)
	mux.HandleFunc("/clear_cache", h.handleClearCache)
	mux.HandleFunc("/voices", h.handleVoices)
	mux.HandleFunc("/api/info", h.handleInfo)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.cache.CacheStatus()
	loaded := make(map[string]bool, len(status))
	for v, ok := range status {
		loaded[string(v)] = ok
	}

	body := map[string]any{
		"status":        "healthy",
		"version":       buildVersion(),
		"device":        h.opts.device,
		"models_loaded": loaded,
	}

	info, err := system.Snapshot(r.Context())
	if err != nil {
		h.log.WarnContext(r.Context(), "host snapshot failed", slog.String("error", err.Error()))
	} else {
		body["memory_total_gb"] = info.MemoryTotalGB
		body["memory_available_gb"] = info.MemoryAvailableGB
		body["memory_usage_percent"] = info.MemoryUsedPercent
		body["cpu_usage_percent"] = info.CPUUsedPercent
	}

	writeJSON(w, http.StatusOK, body)
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := tts.ListPresets()
	writeJSON(w, http.StatusOK, map[string]any{
		"voices": voices,
		"count":  len(voices),
	})
}

func (h *handler) handleInfo(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "chatter-tts",
		"version": buildVersion(),
		"features": []string{
			"Text-to-Speech",
			"Voice Cloning",
			"Multilingual Support",
			"Voice Presets",
		},
		"supported_languages": tts.SupportedLanguages(),
	})
}

func (h *handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	cleared := h.cache.ClearCache()
	h.log.InfoContext(r.Context(), "model cache cleared", slog.Int("models_cleared", cleared))

	writeJSON(w, http.StatusOK, map[string]any{
		"message":        "Model cache cleared",
		"models_cleared": cleared,
	})
}

func (h *handler) handleSynthesize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseSynthesizeForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if n := utf8.RuneCountInString(req.Text); n > h.opts.maxTextChars {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum length of %d characters", h.opts.maxTextChars))
		return
	}

	// Acquire a worker slot — honour context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			// slot acquired
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	// Apply per-request timeout.
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	requestID := uuid.NewString()
	start := time.Now()
	result, err := h.synth.Synthesize(ctx, req)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		status := classifyError(err)
		msg := "synthesis failed"
		level := slog.LevelError
		if status < http.StatusInternalServerError {
			msg = "request rejected"
			level = slog.LevelWarn
		}
		h.log.Log(r.Context(), level, msg,
			slog.String("request_id", requestID),
			slog.String("language", req.Language),
			slog.Int("text_len", utf8.RuneCountInString(req.Text)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, status, err.Error())
		return
	}

	wavBytes, err := audio.EncodeWAV(result.Samples, result.SampleRate)
	if err != nil {
		h.log.ErrorContext(r.Context(), "encoding failed",
			slog.String("request_id", requestID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "encoding audio: "+err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.String("request_id", requestID),
		slog.String("language", req.Language),
		slog.Int("text_len", utf8.RuneCountInString(req.Text)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("sample_rate", result.SampleRate),
		slog.Int("wav_bytes", len(wavBytes)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", `attachment; filename="generated.wav"`)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wavBytes)
}

// classifyError maps the dispatcher's typed errors onto HTTP status
// codes: validation is the caller's fault, a failed model load is a
// transient service problem, anything else is an internal failure.
func classifyError(err error) int {
	switch {
	case tts.IsValidation(err):
		return http.StatusBadRequest
	case tts.IsLoad(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// parseSynthesizeForm accepts either a multipart form (needed for the
// reference_audio upload) or a plain urlencoded form.
func parseSynthesizeForm(r *http.Request) (tts.Request, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	multipartForm := mediaType == "multipart/form-data"
	if multipartForm {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			return tts.Request{}, fmt.Errorf("invalid multipart form: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return tts.Request{}, fmt.Errorf("invalid form: %w", err)
		}
	}

	req := tts.Request{
		Text:     r.FormValue("text"),
		Language: r.FormValue("language"),
		Voice:    r.FormValue("voice"),
	}

	var err error
	if req.Exaggeration, err = optionalFloat(r, "exaggeration"); err != nil {
		return tts.Request{}, err
	}
	if req.CFGWeight, err = optionalFloat(r, "cfg_weight"); err != nil {
		return tts.Request{}, err
	}
	if req.Temperature, err = optionalFloat(r, "temperature"); err != nil {
		return tts.Request{}, err
	}
	if req.SpeedFactor, err = optionalFloat(r, "speed_factor"); err != nil {
		return tts.Request{}, err
	}

	if multipartForm {
		file, header, err := r.FormFile("reference_audio")
		switch {
		case errors.Is(err, http.ErrMissingFile):
			// no upload, nothing to do
		case err != nil:
			return tts.Request{}, fmt.Errorf("reading reference_audio: %w", err)
		default:
			defer func() { _ = file.Close() }()
			data, readErr := io.ReadAll(file)
			if readErr != nil {
				return tts.Request{}, fmt.Errorf("reading reference_audio: %w", readErr)
			}
			req.ReferenceAudio = &tts.ReferenceAudio{
				Filename: header.Filename,
				Data:     data,
			}
		}
	}

	return req, nil
}

func optionalFloat(r *http.Request, field string) (*float64, error) {
	raw := r.FormValue(field)
	if raw == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %q is not a number", field, raw)
	}
	return &f, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server — wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	tts             *tts.Service
	device          string
	shutdownTimeout time.Duration
}

func New(cfg config.Config, svc *tts.Service, device string) *Server {
	return &Server{
		cfg:             cfg,
		tts:             svc,
		device:          device,
		shutdownTimeout: 30 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

func (s *Server) Start(ctx context.Context) error {
	h := NewHandler(s.tts, s.tts,
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextChars(s.cfg.TTS.MaxTextChars),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithDevice(s.device),
	)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}
