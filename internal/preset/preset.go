package preset

import (
	"fmt"
	"sort"

	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/pkg/types"
	"golang.org/x/exp/constraints"
)

// Preset defines the frame geometry and caption layout of a composition
type Preset interface {
	// Name returns the preset key
	Name() types.PresetName

	// TextPositionY returns the vertical anchor of the first tagline line
	TextPositionY() int

	// FontSize returns the default tagline font size
	FontSize() int

	// UsesMask reports whether the theme mask is laid over the framed clip
	UsesMask() bool

	// Geometry appends the preset's frame transform consuming src and
	// returns the label of the framed video
	Geometry(b *graph.Builder, src string, clip types.ClipConfig, background string) string
}

var presets = make(map[types.PresetName]Preset)

// Register adds a preset to the registry
func Register(p Preset) {
	presets[p.Name()] = p
}

// Get returns a preset by name
func Get(name types.PresetName) (Preset, error) {
	p, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("invalid preset: %s", name)
	}
	return p, nil
}

// Names returns the registered preset names in sorted order
func Names() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, string(name))
	}
	sort.Strings(names)
	return names
}

// Clamp limits v to [lo, hi]
func Clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
