package preset

import (
	"fmt"
	"strconv"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/pkg/types"
)

type Square struct{}

func init() {
	Register(&Square{})
}

func (p *Square) Name() types.PresetName {
	return types.PresetSquare
}

func (p *Square) TextPositionY() int {
	return 300
}

func (p *Square) FontSize() int {
	return 70
}

func (p *Square) UsesMask() bool {
	return true
}

// Geometry crops a square window out of the clip, frames it on a small
// square card and fits the card into the portrait canvas.
func (p *Square) Geometry(b *graph.Builder, src string, clip types.ClipConfig, background string) string {
	cropped := b.Add("crop", "cropped", []graph.Option{
		{Key: "w", Value: "ih"},
		{Key: "h", Value: "ih"},
		{Key: "x", Value: CropOffsetExpr(clip.HorizontalBiasFraction)},
		{Key: "y", Value: "0"},
	}, src)

	scaled := b.Add("scale", "scaled", []graph.Option{
		{Key: "w", Value: config.SquareScaleWidth},
		{Key: "h", Value: -2},
	}, cropped)

	card := b.Add("pad", "padded", []graph.Option{
		{Key: "w", Value: config.SquareFrameSize},
		{Key: "h", Value: config.SquareFrameSize},
		{Key: "x", Value: "(ow-iw)/2"},
		{Key: "y", Value: "(oh-ih)/2"},
		{Key: "color", Value: background},
	}, scaled)

	return FitCanvas(b, card, background)
}

// CropOffsetExpr returns the crop x expression for bias, evaluated by ffmpeg
// against the input frame: clamp(0, iw-ih, (iw-ih)*bias).
func CropOffsetExpr(bias float64) string {
	bias = Clamp(bias, 0, 1)
	return fmt.Sprintf("max(0,min(iw-ih,(iw-ih)*%s))", strconv.FormatFloat(bias, 'f', -1, 64))
}

// CropOffset evaluates CropOffsetExpr for a frame of the given size.
func CropOffset(width, height int, bias float64) int {
	span := width - height
	if span <= 0 {
		return 0
	}
	offset := int(float64(span) * Clamp(bias, 0, 1))
	return Clamp(offset, 0, span)
}
