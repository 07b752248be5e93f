package preset

import (
	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/pkg/types"
)

type Wide struct{}

func init() {
	Register(&Wide{})
}

func (p *Wide) Name() types.PresetName {
	return types.PresetWide
}

func (p *Wide) TextPositionY() int {
	return 300
}

func (p *Wide) FontSize() int {
	return 50
}

func (p *Wide) UsesMask() bool {
	return false
}

// Geometry letterboxes the clip into the portrait canvas
func (p *Wide) Geometry(b *graph.Builder, src string, _ types.ClipConfig, background string) string {
	return FitCanvas(b, src, background)
}

// FitCanvas scales src to fit the canvas and pads the remainder with background
func FitCanvas(b *graph.Builder, src, background string) string {
	scaled := b.Add("scale", "scaled", []graph.Option{
		{Key: "w", Value: config.CanvasWidth},
		{Key: "h", Value: config.CanvasHeight},
		{Key: "force_original_aspect_ratio", Value: "decrease"},
	}, src)

	return b.Add("pad", "padded", []graph.Option{
		{Key: "w", Value: config.CanvasWidth},
		{Key: "h", Value: config.CanvasHeight},
		{Key: "x", Value: "(ow-iw)/2"},
		{Key: "y", Value: "(oh-ih)/2"},
		{Key: "color", Value: background},
	}, scaled)
}
