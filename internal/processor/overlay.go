package processor

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"

	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// BuildImageOverlayGraph chains one overlay node per image onto the carrier
// video, each enabled only inside its time window. Carrier audio passes
// through when present.
func BuildImageOverlayGraph(carrier string, overlays []types.ImageOverlayConfig) (*graph.Graph, error) {
	if len(overlays) == 0 {
		return nil, errors.New("no image overlays")
	}

	b := graph.NewBuilder()
	b.AddInput(carrier)

	last := graph.Ref(0, graph.Video)
	for _, o := range overlays {
		idx := b.AddInput(o.ImagePath)
		last = b.Add("overlay", "overlay", []graph.Option{
			{Key: "x", Value: coordinate(o.X)},
			{Key: "y", Value: coordinate(o.Y)},
			{Key: "enable", Value: fmt.Sprintf("between(t,%s,%s)", seconds(o.StartTime), seconds(o.EndTime))},
		}, last, graph.Ref(idx, graph.Video))
	}

	b.MapVideo(last)
	b.MapAudio(graph.Ref(0, graph.Audio), true)
	return b.Build()
}

// BuildAudioOverlayGraph trims each insert, rebases its timestamps, delays it
// to its insert time and mixes it into the running chain in configured
// order. Without carrier audio the first insert seeds the chain. The video
// stream is mapped untouched.
func BuildAudioOverlayGraph(carrier string, inserts []types.AudioOverlayConfig, carrierHasAudio bool) (*graph.Graph, error) {
	if len(inserts) == 0 {
		return nil, errors.New("no audio overlays")
	}

	b := graph.NewBuilder()
	b.AddInput(carrier)

	var mix string
	if carrierHasAudio {
		mix = graph.Ref(0, graph.Audio)
	}

	for _, a := range inserts {
		idx := b.AddInput(a.AudioPath)
		trimmed := b.Add("atrim", "trimmed_audio", []graph.Option{
			{Key: "start", Value: a.AudioStartTime},
			{Key: "end", Value: a.AudioEndTime},
		}, graph.Ref(idx, graph.Audio))
		rebased := b.Add("asetpts", "rebased_audio", []graph.Option{
			{Key: "expr", Value: "PTS-STARTPTS"},
		}, trimmed)
		delayed := b.Add("adelay", "delayed_audio", []graph.Option{
			{Key: "delays", Value: DelayMillis(a.VideoInsertTime)},
			{Key: "all", Value: 1},
		}, rebased)

		if mix == "" {
			mix = delayed
			continue
		}
		mix = b.Add("amix", "mixed_audio", []graph.Option{
			{Key: "inputs", Value: 2},
			{Key: "duration", Value: "longest"},
		}, mix, delayed)
	}

	b.MapVideo(graph.Ref(0, graph.Video))
	b.MapAudio(mix, false)
	return b.Build()
}

// DelayMillis converts an insert time in seconds to adelay milliseconds.
func DelayMillis(seconds float64) int64 {
	if seconds <= 0 {
		return 0
	}
	return int64(math.Round(seconds * 1000))
}

func coordinate(e types.Expr) string {
	if e == "" {
		return "0"
	}
	return e.String()
}

func seconds(s float64) string {
	return strconv.FormatFloat(s, 'f', -1, 64)
}
