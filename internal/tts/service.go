package tts

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ReferenceAudio is an uploaded voice-cloning prompt. The dispatcher
// materializes it to a scoped temporary file for the duration of one
// generation call.
type ReferenceAudio struct {
	Filename string
	Data     []byte
}

// Request is one synthesis request before validation. Control fields are
// pointers so an absent field falls back to the preset or built-in
// default; an explicit value always wins over a preset.
type Request struct {
	Text           string
	Language       string
	Voice          string
	Exaggeration   *float64
	CFGWeight      *float64
	Temperature    *float64
	SpeedFactor    *float64
	ReferenceAudio *ReferenceAudio
}

// Result carries raw synthesized audio. Encoding to a wire container is
// the transport layer's concern.
type Result struct {
	Samples    []float32
	SampleRate int
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	// MaxTextChars bounds request text length in characters. Zero means
	// the default of 1000.
	MaxTextChars int
	// DefaultLanguage is the language served by the English model.
	// Empty means "en".
	DefaultLanguage string
	// Serialize, when true, holds a per-variant lock around Generate.
	// Leave it on unless the engine backend is known reentrant.
	Serialize bool
	Logger    *slog.Logger
}

// Service validates synthesis requests, resolves the model variant,
// acquires the model through the cache, and forwards the validated
// parameters to it.
type Service struct {
	cache *ModelCache
	log   *slog.Logger

	maxTextChars    int
	defaultLanguage string

	genMu map[Variant]*sync.Mutex // nil when serialization is off
}

// NewService wires a dispatcher around an existing cache.
func NewService(cache *ModelCache, opts ServiceOptions) *Service {
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = 1000
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = DefaultLanguage
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Service{
		cache:           cache,
		log:             opts.Logger,
		maxTextChars:    opts.MaxTextChars,
		defaultLanguage: opts.DefaultLanguage,
	}
	if opts.Serialize {
		s.genMu = make(map[Variant]*sync.Mutex, len(Variants()))
		for _, v := range Variants() {
			s.genMu[v] = &sync.Mutex{}
		}
	}
	return s
}

// MaxTextChars reports the configured text length bound.
func (s *Service) MaxTextChars() int { return s.maxTextChars }

// CacheStatus exposes the cache's load state for health reporting.
func (s *Service) CacheStatus() map[Variant]bool { return s.cache.Status() }

// ClearCache evicts all loaded models and returns how many were removed.
func (s *Service) ClearCache() int { return s.cache.Clear() }

// Synthesize runs one request end to end. Validation happens before any
// cache interaction; errors are typed as *ValidationError, *LoadError, or
// *GenerationError for the transport layer to classify.
func (s *Service) Synthesize(ctx context.Context, req Request) (Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return Result{}, &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	if n := utf8.RuneCountInString(text); n > s.maxTextChars {
		return Result{}, &ValidationError{
			Field:  "text",
			Reason: fmt.Sprintf("%d characters exceeds maximum of %d", n, s.maxTextChars),
		}
	}

	opts, err := s.resolveControls(req)
	if err != nil {
		return Result{}, err
	}

	language := req.Language
	if language == "" {
		language = s.defaultLanguage
	}
	if !IsSupportedLanguage(language) {
		return Result{}, &ValidationError{
			Field:  "language",
			Reason: fmt.Sprintf("unsupported language %q", language),
		}
	}
	opts.Language = language

	variant := ResolveVariant(language)

	model, err := s.cache.Get(ctx, variant)
	if err != nil {
		return Result{}, err
	}

	if req.ReferenceAudio != nil && len(req.ReferenceAudio.Data) > 0 {
		path, cleanup, err := s.writeReferenceAudio(req.ReferenceAudio)
		if err != nil {
			return Result{}, err
		}
		defer cleanup()
		opts.ReferenceAudioPath = path
	}

	if s.genMu != nil {
		mu := s.genMu[variant]
		mu.Lock()
		defer mu.Unlock()
	}

	samples, rate, err := model.Generate(ctx, text, opts)
	if err != nil {
		return Result{}, &GenerationError{Variant: variant, Err: err}
	}
	if rate <= 0 {
		rate = model.SampleRate()
	}

	return Result{Samples: samples, SampleRate: rate}, nil
}

// resolveControls layers preset values over the built-in defaults, then
// explicit request values over both, and range-checks the outcome.
func (s *Service) resolveControls(req Request) (GenerateOptions, error) {
	exaggeration := ControlExaggeration.Default
	cfgWeight := ControlCFGWeight.Default
	temperature := ControlTemperature.Default
	speedFactor := ControlSpeedFactor.Default

	if req.Voice != "" {
		preset, ok := LookupPreset(req.Voice)
		if !ok {
			return GenerateOptions{}, &ValidationError{
				Field:  "voice",
				Reason: fmt.Sprintf("unknown preset %q", req.Voice),
			}
		}
		exaggeration = preset.Exaggeration
		cfgWeight = preset.CFGWeight
		temperature = preset.Temperature
	}

	if req.Exaggeration != nil {
		exaggeration = *req.Exaggeration
	}
	if req.CFGWeight != nil {
		cfgWeight = *req.CFGWeight
	}
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if req.SpeedFactor != nil {
		speedFactor = *req.SpeedFactor
	}

	if err := ControlExaggeration.Check(exaggeration); err != nil {
		return GenerateOptions{}, err
	}
	if err := ControlCFGWeight.Check(cfgWeight); err != nil {
		return GenerateOptions{}, err
	}
	if err := ControlTemperature.Check(temperature); err != nil {
		return GenerateOptions{}, err
	}
	if err := ControlSpeedFactor.Check(speedFactor); err != nil {
		return GenerateOptions{}, err
	}

	return GenerateOptions{
		Exaggeration: exaggeration,
		CFGWeight:    cfgWeight,
		Temperature:  temperature,
		SpeedFactor:  speedFactor,
	}, nil
}

// writeReferenceAudio materializes the uploaded payload under a fresh
// temporary directory. The returned cleanup runs on every exit path of
// the request; a failed removal is logged, never surfaced.
func (s *Service) writeReferenceAudio(ref *ReferenceAudio) (string, func(), error) {
	dir, err := os.MkdirTemp("", "chattertts-ref-")
	if err != nil {
		return "", nil, fmt.Errorf("create reference audio dir: %w", err)
	}

	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			s.log.Warn("removing reference audio dir",
				slog.String("dir", dir),
				slog.String("error", err.Error()),
			)
		}
	}

	// The upload's filename is untrusted; keep only its extension.
	ext := filepath.Ext(filepath.Base(ref.Filename))
	path := filepath.Join(dir, uuid.NewString()+ext)

	if err := os.WriteFile(path, ref.Data, 0o600); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("write reference audio: %w", err)
	}

	return path, cleanup, nil
}
