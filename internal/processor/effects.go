package processor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/internal/preset"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// silenceSource is the lavfi source attached to looped stills so every clip
// artifact carries an audio stream.
const silenceSource = "anullsrc=channel_layout=stereo:sample_rate=44100"

// BuildImageGraph turns a still image into a looping portrait video on the
// theme background with a silent stereo track. The caller caps the length
// with the output duration.
func BuildImageGraph(imagePath, background string) (*graph.Graph, error) {
	b := graph.NewBuilder()
	b.AddInput(imagePath, graph.Option{Key: "loop", Value: 1})
	silence := b.AddInput(silenceSource, graph.Option{Key: "f", Value: "lavfi"})

	b.MapVideo(preset.FitCanvas(b, graph.Ref(0, graph.Video), background))
	b.MapAudio(graph.Ref(silence, graph.Audio), false)
	return b.Build()
}

// ClipSpec is everything the per-clip builder needs.
type ClipSpec struct {
	Theme  types.Theme
	Preset preset.Preset
	Clip   types.ClipConfig

	// Source is the effective video input: the clip source, or the looped
	// product when the clip is a still image.
	Source    string
	FromImage bool
}

// BuildClipGraph compiles the per-clip filter graph: preset geometry, mask,
// tagline, logo and mute, in that order. Decorative assets that cannot be
// resolved are skipped. A clip needing no filters yields an empty graph.
func BuildClipGraph(stage string, spec ClipSpec, assets *Assets) (*graph.Graph, error) {
	theme, p, clip := spec.Theme, spec.Preset, spec.Clip

	b := graph.NewBuilder()
	b.AddInput(spec.Source,
		graph.Option{Key: "ss", Value: clip.StartTime},
		graph.Option{Key: "t", Value: clip.Duration()},
	)

	last := graph.Ref(0, graph.Video)
	if !spec.FromImage {
		last = p.Geometry(b, last, clip, theme.BackgroundColor)
	}

	if p.UsesMask() && theme.MaskPath != "" {
		ok, err := assets.Resolve(stage, RoleMask, theme.MaskPath)
		if err != nil {
			return nil, err
		}
		if ok {
			last = addMask(b, last, theme.MaskPath)
		}
	}

	last = addTagline(b, last, theme, p, clip.Tagline)

	if theme.LogoPath != "" {
		ok, err := assets.Resolve(stage, RoleLogo, theme.LogoPath)
		if err != nil {
			return nil, err
		}
		if ok {
			last = addLogo(b, last, theme.LogoPath)
		}
	}

	if clip.Muted {
		b.MapAudio(b.Add("volume", "muted_audio", []graph.Option{{Key: "volume", Value: 0}}, graph.Ref(0, graph.Audio)), false)
	}

	if b.Len() > 0 {
		b.MapVideo(last)
		if !clip.Muted {
			b.MapAudio(graph.Ref(0, graph.Audio), true)
		}
	}

	return b.Build()
}

func addMask(b *graph.Builder, last, maskPath string) string {
	idx := b.AddInput(maskPath)
	mask := b.Add("scale", "scaled_mask", []graph.Option{
		{Key: "w", Value: config.CanvasWidth},
		{Key: "h", Value: config.CanvasHeight},
	}, graph.Ref(idx, graph.Video))

	return b.Add("overlay", "masked", []graph.Option{
		{Key: "x", Value: "(W-w)/2"},
		{Key: "y", Value: "(H-h)/2"},
	}, last, mask)
}

// addTagline draws one drawtext node per line, LineHeight apart, chained in
// line order.
func addTagline(b *graph.Builder, last string, theme types.Theme, p preset.Preset, tagline string) string {
	lines := SplitTagline(tagline)
	if len(lines) == 0 {
		return last
	}

	font := theme.FontName
	if font == "" {
		font = config.DefaultFontName
	}
	color := theme.TextColor
	if color == "" {
		color = config.DefaultTextColor
	}
	shadow := theme.BackgroundColor
	if shadow == "" {
		shadow = config.DefaultShadow
	}
	size := p.FontSize()
	if theme.FontSize > 0 {
		size = theme.FontSize
	}

	for i, line := range lines {
		last = b.Add("drawtext", "text", []graph.Option{
			{Key: "text", Value: line},
			{Key: "font", Value: font},
			{Key: "fontsize", Value: size},
			{Key: "fontcolor", Value: color},
			{Key: "x", Value: "(w-tw)/2"},
			{Key: "y", Value: p.TextPositionY() + i*config.LineHeight},
			{Key: "shadowcolor", Value: shadow},
			{Key: "shadowx", Value: 0},
			{Key: "shadowy", Value: 0},
		}, last)
	}
	return last
}

func addLogo(b *graph.Builder, last, logoPath string) string {
	idx := b.AddInput(logoPath)
	scale := strconv.FormatFloat(config.LogoScale, 'f', -1, 64)
	logo := b.Add("scale", "scaled_logo", []graph.Option{
		{Key: "w", Value: "iw*" + scale},
		{Key: "h", Value: "ih*" + scale},
	}, graph.Ref(idx, graph.Video))

	return b.Add("overlay", "output", []graph.Option{
		{Key: "x", Value: "(W-w)/2"},
		{Key: "y", Value: fmt.Sprintf("H*%s-h/2", strconv.FormatFloat(config.LogoAnchorY, 'f', -1, 64))},
	}, last, logo)
}

// SplitTagline splits on the two-character escape `\n` as well as real
// newlines. Trailing empty lines are dropped; inner empty lines keep their
// slot so spacing is preserved.
func SplitTagline(tagline string) []string {
	if strings.TrimSpace(tagline) == "" {
		return nil
	}
	normalized := strings.ReplaceAll(tagline, `\n`, "\n")
	normalized = strings.ReplaceAll(normalized, "\r\n", "\n")
	lines := strings.Split(normalized, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
