package processor

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ZacxDev/video-composer/internal/ffmpeg"
	"github.com/ZacxDev/video-composer/internal/graph"
)

// Engine runs compiled graphs. *ffmpeg.Processor is the production engine.
type Engine interface {
	Run(ctx context.Context, job ffmpeg.Job) error
	Probe(ctx context.Context, path string) (*ffmpeg.Metadata, error)
}

// Stage kinds, also used as artifact name prefixes.
const (
	StageImage        = "image"
	StageClip         = "clip"
	StageConcat       = "concat"
	StageImageOverlay = "overlay"
	StageAudioOverlay = "audio_overlay"
)

// StageReport records one engine invocation of a run.
type StageReport struct {
	Name     string
	Kind     string
	Output   string
	Graph    *graph.Graph
	Options  ffmpeg.OutputOptions
	Duration time.Duration
}

// Job rebuilds the engine job the stage ran.
func (s StageReport) Job() ffmpeg.Job {
	return ffmpeg.Job{Graph: s.Graph, Output: s.Options, Path: s.Output}
}

// execute runs one stage: allocates the output artifact, invokes the engine
// once and returns the output path. The artifact is released again when the
// engine fails.
func (r *run) execute(ctx context.Context, name, kind string, g *graph.Graph, opts ffmpeg.OutputOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(KindIOFailure, name, errors.Wrap(err, "run cancelled"))
	}

	out, err := r.artifacts.Allocate(kind, ".mp4")
	if err != nil {
		return "", newError(KindIOFailure, name, err)
	}

	logger := r.logger.With().Str("stage", name).Logger()
	logger.Info().Str("output", out).Int("filters", len(g.Nodes)).Msg("stage started")

	start := time.Now()
	if err := r.engine.Run(ctx, ffmpeg.Job{Graph: g, Output: opts, Path: out}); err != nil {
		if relErr := r.artifacts.Release(out); relErr != nil {
			logger.Warn().Err(relErr).Msg("failed to release stage output")
		}
		return "", newError(KindEngineFailure, name, err)
	}
	elapsed := time.Since(start)

	logger.Info().Dur("elapsed", elapsed).Msg("stage finished")
	r.stages = append(r.stages, StageReport{
		Name:     name,
		Kind:     kind,
		Output:   out,
		Graph:    g,
		Options:  opts,
		Duration: elapsed,
	})
	return out, nil
}
