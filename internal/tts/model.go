package tts

import "context"

// GenerateOptions carries the validated control parameters forwarded to a
// loaded model. ReferenceAudioPath, when non-empty, points at a temporary
// file owned by the dispatcher for the duration of the call.
type GenerateOptions struct {
	Language           string
	Exaggeration       float64
	CFGWeight          float64
	Temperature        float64
	SpeedFactor        float64
	ReferenceAudioPath string
}

// Model is a loaded instance of the external pretrained TTS model. It is
// an opaque, possibly slow, possibly failing collaborator; this package
// never inspects the audio it returns.
type Model interface {
	// Generate synthesizes text and returns raw samples plus the sample
	// rate they were produced at.
	Generate(ctx context.Context, text string, opts GenerateOptions) ([]float32, int, error)

	// SampleRate reports the model's native output rate.
	SampleRate() int

	// Close releases any memory held by the model, including
	// accelerator-resident buffers. Called by the cache on Clear.
	Close() error
}

// LoadFunc constructs the model for a variant. Construction is expensive
// (seconds, possibly network or disk I/O); the cache calls it at most once
// per variant per process lifetime unless the cache is cleared.
type LoadFunc func(ctx context.Context, v Variant) (Model, error)
