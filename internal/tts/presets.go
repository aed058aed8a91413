package tts

import "sort"

// Preset is a named bundle of control values. Presets only change the
// defaults a request starts from; explicitly supplied controls win.
type Preset struct {
	Name         string  `json:"name"`
	Exaggeration float64 `json:"exaggeration"`
	CFGWeight    float64 `json:"cfg_weight"`
	Temperature  float64 `json:"temperature"`
	Description  string  `json:"description"`
}

var presets = map[string]Preset{
	"default": {
		Name:         "default",
		Exaggeration: 0.5,
		CFGWeight:    0.5,
		Temperature:  0.7,
		Description:  "Standard neutral voice",
	},
	"professional": {
		Name:         "professional",
		Exaggeration: 0.3,
		CFGWeight:    0.7,
		Temperature:  0.5,
		Description:  "Professional business voice",
	},
	"friendly": {
		Name:         "friendly",
		Exaggeration: 0.6,
		CFGWeight:    0.4,
		Temperature:  0.7,
		Description:  "Warm and friendly voice",
	},
	"enthusiastic": {
		Name:         "enthusiastic",
		Exaggeration: 0.8,
		CFGWeight:    0.3,
		Temperature:  0.8,
		Description:  "Energetic and excited voice",
	},
	"narrator": {
		Name:         "narrator",
		Exaggeration: 0.4,
		CFGWeight:    0.6,
		Temperature:  0.6,
		Description:  "Documentary-style narrator",
	},
}

// LookupPreset returns the preset for name, if it exists.
func LookupPreset(name string) (Preset, bool) {
	p, ok := presets[name]
	return p, ok
}

// ListPresets returns all presets sorted by name.
func ListPresets() []Preset {
	out := make([]Preset, 0, len(presets))
	for _, p := range presets {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
