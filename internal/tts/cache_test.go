package tts

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// stubModel is a trivially constructible Model for cache and dispatcher
// tests.
type stubModel struct {
	samples  []float32
	rate     int
	genErr   error
	closeErr error

	closed     atomic.Bool
	generated  atomic.Int64
	seenOpts   GenerateOptions
	seenText   string
	seenPrompt string
	mu         sync.Mutex
}

func (m *stubModel) Generate(_ context.Context, text string, opts GenerateOptions) ([]float32, int, error) {
	m.generated.Add(1)
	m.mu.Lock()
	m.seenText = text
	m.seenOpts = opts
	m.seenPrompt = opts.ReferenceAudioPath
	m.mu.Unlock()
	if m.genErr != nil {
		return nil, 0, m.genErr
	}
	return m.samples, m.rate, nil
}

func (m *stubModel) SampleRate() int { return m.rate }

func (m *stubModel) Close() error {
	m.closed.Store(true)
	return m.closeErr
}

// countingLoader builds a LoadFunc that counts constructions per variant
// and returns fresh stub models.
type countingLoader struct {
	mu     sync.Mutex
	counts map[Variant]int
	err    error
	gate   chan struct{} // when non-nil, loads block until closed
}

func (l *countingLoader) load(_ context.Context, v Variant) (Model, error) {
	if l.gate != nil {
		<-l.gate
	}
	l.mu.Lock()
	if l.counts == nil {
		l.counts = make(map[Variant]int)
	}
	l.counts[v]++
	l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	return &stubModel{samples: []float32{0.1, -0.1}, rate: 24000}, nil
}

func (l *countingLoader) count(v Variant) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[v]
}

// ---------------------------------------------------------------------------
// Get
// ---------------------------------------------------------------------------

func TestCacheGet_ConstructsOncePerVariant(t *testing.T) {
	loader := &countingLoader{}
	cache := NewModelCache(loader.load, nil)

	first, err := cache.Get(context.Background(), VariantEnglish)
	if err != nil {
		t.Fatalf("first Get: %v", err)
	}

	for i := 0; i < 5; i++ {
		m, err := cache.Get(context.Background(), VariantEnglish)
		if err != nil {
			t.Fatalf("Get %d: %v", i, err)
		}
		if m != first {
			t.Fatalf("Get %d returned a different instance", i)
		}
	}

	if got := loader.count(VariantEnglish); got != 1 {
		t.Errorf("want 1 construction, got %d", got)
	}
}

func TestCacheGet_VariantsLoadIndependently(t *testing.T) {
	loader := &countingLoader{}
	cache := NewModelCache(loader.load, nil)

	en, err := cache.Get(context.Background(), VariantEnglish)
	if err != nil {
		t.Fatalf("english Get: %v", err)
	}
	ml, err := cache.Get(context.Background(), VariantMultilingual)
	if err != nil {
		t.Fatalf("multilingual Get: %v", err)
	}

	if en == ml {
		t.Error("variants share a model instance")
	}
	if got := loader.count(VariantEnglish); got != 1 {
		t.Errorf("english constructions = %d, want 1", got)
	}
	if got := loader.count(VariantMultilingual); got != 1 {
		t.Errorf("multilingual constructions = %d, want 1", got)
	}
}

func TestCacheGet_ConcurrentFirstUseSharesOneLoad(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{})}
	cache := NewModelCache(loader.load, nil)

	const callers = 16
	models := make([]Model, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	var ready sync.WaitGroup
	ready.Add(callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ready.Done()
			models[i], errs[i] = cache.Get(context.Background(), VariantEnglish)
		}(i)
	}

	ready.Wait()
	close(loader.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: %v", i, errs[i])
		}
		if models[i] != models[0] {
			t.Fatalf("caller %d got a different instance", i)
		}
	}

	if got := loader.count(VariantEnglish); got != 1 {
		t.Errorf("want 1 construction under contention, got %d", got)
	}
}

func TestCacheGet_LoadFailureLeavesNoEntry(t *testing.T) {
	boom := errors.New("weights unavailable")
	loader := &countingLoader{err: boom}
	cache := NewModelCache(loader.load, nil)

	_, err := cache.Get(context.Background(), VariantEnglish)
	if err == nil {
		t.Fatal("want error from failed load")
	}

	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("want *LoadError, got %T", err)
	}
	if le.Variant != VariantEnglish {
		t.Errorf("LoadError variant = %q, want %q", le.Variant, VariantEnglish)
	}
	if !errors.Is(err, boom) {
		t.Error("LoadError does not wrap the cause")
	}

	if cache.Status()[VariantEnglish] {
		t.Error("failed load left an entry in the cache")
	}

	// A later request retries the construction.
	loader.err = nil
	if _, err := cache.Get(context.Background(), VariantEnglish); err != nil {
		t.Fatalf("retry Get: %v", err)
	}
	if got := loader.count(VariantEnglish); got != 2 {
		t.Errorf("want 2 construction attempts, got %d", got)
	}
}

// ---------------------------------------------------------------------------
// Clear
// ---------------------------------------------------------------------------

func TestCacheClear_RemovesAndClosesEverything(t *testing.T) {
	loader := &countingLoader{}
	cache := NewModelCache(loader.load, nil)

	en, _ := cache.Get(context.Background(), VariantEnglish)
	ml, _ := cache.Get(context.Background(), VariantMultilingual)

	if got := cache.Clear(); got != 2 {
		t.Errorf("Clear() = %d, want 2", got)
	}

	if !en.(*stubModel).closed.Load() {
		t.Error("english model not closed on Clear")
	}
	if !ml.(*stubModel).closed.Load() {
		t.Error("multilingual model not closed on Clear")
	}

	status := cache.Status()
	if status[VariantEnglish] || status[VariantMultilingual] {
		t.Errorf("cache still reports loaded entries after Clear: %v", status)
	}
}

func TestCacheClear_EmptyReturnsZero(t *testing.T) {
	cache := NewModelCache((&countingLoader{}).load, nil)

	if got := cache.Clear(); got != 0 {
		t.Errorf("Clear() on empty cache = %d, want 0", got)
	}
}

func TestCacheClear_ThenGetReloadsOnce(t *testing.T) {
	loader := &countingLoader{}
	cache := NewModelCache(loader.load, nil)

	if _, err := cache.Get(context.Background(), VariantEnglish); err != nil {
		t.Fatalf("Get: %v", err)
	}
	cache.Clear()

	if _, err := cache.Get(context.Background(), VariantEnglish); err != nil {
		t.Fatalf("Get after Clear: %v", err)
	}
	if got := loader.count(VariantEnglish); got != 2 {
		t.Errorf("want exactly 2 constructions, got %d", got)
	}
}

func TestCacheClear_CloseFailureStillRemoves(t *testing.T) {
	cache := NewModelCache(func(_ context.Context, _ Variant) (Model, error) {
		return &stubModel{rate: 24000, closeErr: errors.New("device busy")}, nil
	}, nil)

	if _, err := cache.Get(context.Background(), VariantEnglish); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got := cache.Clear(); got != 1 {
		t.Errorf("Clear() = %d, want 1", got)
	}
	if cache.Status()[VariantEnglish] {
		t.Error("entry survived Clear despite Close failure")
	}
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

func TestCacheStatus_CoversAllVariantsWithoutLoading(t *testing.T) {
	loader := &countingLoader{}
	cache := NewModelCache(loader.load, nil)

	status := cache.Status()
	if len(status) != len(Variants()) {
		t.Fatalf("Status() has %d entries, want %d", len(status), len(Variants()))
	}
	for v, loaded := range status {
		if loaded {
			t.Errorf("variant %q reported loaded on empty cache", v)
		}
	}

	if _, err := cache.Get(context.Background(), VariantMultilingual); err != nil {
		t.Fatalf("Get: %v", err)
	}

	status = cache.Status()
	if status[VariantEnglish] {
		t.Error("english reported loaded")
	}
	if !status[VariantMultilingual] {
		t.Error("multilingual reported unloaded")
	}

	if got := loader.count(VariantEnglish); got != 0 {
		t.Errorf("Status triggered %d loads", got)
	}
}
