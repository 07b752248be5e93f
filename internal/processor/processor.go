// Package processor composes short-form portrait videos: every clip is
// rendered through its own filter graph, the clip artifacts are
// concatenated, then image and audio overlays are applied in turn. Each step
// is one engine invocation producing one intermediate artifact; superseded
// artifacts are deleted as soon as their consumer succeeds and all of them
// are deleted when the run fails.
package processor

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/ffmpeg"
	"github.com/ZacxDev/video-composer/internal/graph"
	"github.com/ZacxDev/video-composer/internal/logging"
	"github.com/ZacxDev/video-composer/internal/preset"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// Composer runs composition requests. It holds no per-run state, so one
// Composer may serve concurrent runs.
type Composer struct {
	engine    Engine
	outputDir string
	logger    zerolog.Logger
	assets    *Assets
}

// NewComposer creates a composer writing artifacts to outputDir
func NewComposer(engine Engine, outputDir string, logger zerolog.Logger) *Composer {
	logger = logger.With().Str("component", "pipeline").Logger()
	return &Composer{
		engine:    engine,
		outputDir: outputDir,
		logger:    logger,
		assets:    NewAssets(logger),
	}
}

// Result describes a finished run.
type Result struct {
	RunID  string
	Output string
	Stages []StageReport

	ArtifactsCreated int
	ArtifactsDeleted int
}

type run struct {
	id        string
	req       *types.Request
	preset    preset.Preset
	engine    Engine
	assets    *Assets
	artifacts *Artifacts
	logger    zerolog.Logger
	stages    []StageReport
}

// Compose runs req under a fresh run ID.
func (c *Composer) Compose(ctx context.Context, req *types.Request) (*Result, error) {
	return c.ComposeRun(ctx, uuid.NewString(), req)
}

// ComposeRun runs req under runID and returns the final artifact. On failure
// every intermediate of the run is deleted and no output is returned.
func (c *Composer) ComposeRun(ctx context.Context, runID string, req *types.Request) (*Result, error) {
	if req == nil {
		return nil, newError(KindInvalidConfiguration, "", errors.New("request is nil"))
	}
	if err := req.Validate(); err != nil {
		return nil, newError(KindInvalidConfiguration, "", err)
	}
	p, err := preset.Get(req.Preset)
	if err != nil {
		return nil, newError(KindInvalidConfiguration, "preset", err)
	}

	logger := logging.WithRun(c.logger, runID)
	r := &run{
		id:        runID,
		req:       req,
		preset:    p,
		engine:    c.engine,
		assets:    c.assets,
		artifacts: NewArtifacts(c.outputDir, runID, logger),
		logger:    logger,
	}

	if err := r.preflight(); err != nil {
		return nil, err
	}

	logger.Info().
		Str("preset", string(req.Preset)).
		Int("clips", len(req.Clips)).
		Int("image_overlays", len(req.ImageOverlays)).
		Int("audio_overlays", len(req.AudioOverlays)).
		Msg("composition started")

	out, err := r.pipeline(ctx)
	if err != nil {
		if cleanErr := r.artifacts.Cleanup(); cleanErr != nil {
			logger.Warn().Err(cleanErr).Msg("cleanup after failure was incomplete")
		}
		logger.Error().Err(err).Msg("composition failed")
		return nil, err
	}
	r.artifacts.Keep(out)

	created, deleted := r.artifacts.Stats()
	logger.Info().Str("output", out).Int("stages", len(r.stages)).Msg("composition finished")
	return &Result{
		RunID:            runID,
		Output:           out,
		Stages:           r.stages,
		ArtifactsCreated: created,
		ArtifactsDeleted: deleted,
	}, nil
}

// preflight resolves every required asset so a missing file fails the run
// before the engine is invoked.
func (r *run) preflight() error {
	for i, clip := range r.req.Clips {
		if _, err := r.assets.Resolve(fmt.Sprintf("clip[%d]", i), RoleClipSource, clip.Source()); err != nil {
			return err
		}
	}
	for i, o := range r.req.ImageOverlays {
		if _, err := r.assets.Resolve(fmt.Sprintf("imageConfig[%d]", i), RoleOverlayImage, o.ImagePath); err != nil {
			return err
		}
	}
	for i, a := range r.req.AudioOverlays {
		if _, err := r.assets.Resolve(fmt.Sprintf("audioConfig[%d]", i), RoleOverlayAudio, a.AudioPath); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) pipeline(ctx context.Context) (string, error) {
	segments := make([]string, 0, len(r.req.Clips))
	for i, clip := range r.req.Clips {
		out, err := r.processClip(ctx, i, clip)
		if err != nil {
			return "", err
		}
		segments = append(segments, out)
	}

	carrier := segments[0]
	if len(segments) > 1 {
		out, err := r.concatenate(ctx, segments)
		if err != nil {
			return "", err
		}
		carrier = out
	}

	if len(r.req.ImageOverlays) > 0 {
		out, err := r.overlayImages(ctx, carrier)
		if err != nil {
			return "", err
		}
		r.release(carrier)
		carrier = out
	}

	if len(r.req.AudioOverlays) > 0 {
		out, err := r.overlayAudio(ctx, carrier)
		if err != nil {
			return "", err
		}
		r.release(carrier)
		carrier = out
	}

	return carrier, nil
}

func (r *run) processClip(ctx context.Context, index int, clip types.ClipConfig) (string, error) {
	stage := fmt.Sprintf("clip[%d]", index)
	theme := r.req.Theme

	spec := ClipSpec{
		Theme:  theme,
		Preset: r.preset,
		Clip:   clip,
		Source: clip.Source(),
	}

	var product string
	if IsImage(spec.Source) {
		g, err := BuildImageGraph(spec.Source, theme.BackgroundColor)
		if err != nil {
			return "", newError(KindInvalidConfiguration, stage, err)
		}
		opts := ffmpeg.GetProfile(ffmpeg.ProfileImage)
		opts.Duration = config.ImageClipSeconds
		product, err = r.execute(ctx, stage+".image", StageImage, g, opts)
		if err != nil {
			return "", err
		}
		spec.Source = product
		spec.FromImage = true
	}

	g, err := BuildClipGraph(stage, spec, r.assets)
	if err != nil {
		var pe *Error
		if errors.As(err, &pe) {
			return "", err
		}
		return "", newError(KindInvalidConfiguration, stage, err)
	}

	out, err := r.execute(ctx, stage, StageClip, g, ffmpeg.GetProfile(ffmpeg.ProfileClip))
	if err != nil {
		return "", err
	}
	if product != "" {
		r.release(product)
	}
	return out, nil
}

// concatenate joins the clip artifacts with the concat demuxer. The list
// file is itself a tracked artifact.
func (r *run) concatenate(ctx context.Context, segments []string) (string, error) {
	list, err := r.artifacts.Allocate("concat_list", ".txt")
	if err != nil {
		return "", newError(KindIOFailure, StageConcat, err)
	}
	if err := os.WriteFile(list, []byte(ConcatList(segments)), 0644); err != nil {
		return "", newError(KindIOFailure, StageConcat, errors.Wrap(err, "writing concat list"))
	}

	b := graph.NewBuilder()
	b.AddInput(list,
		graph.Option{Key: "f", Value: "concat"},
		graph.Option{Key: "safe", Value: 0},
	)
	g, err := b.Build()
	if err != nil {
		return "", newError(KindInvalidConfiguration, StageConcat, err)
	}

	out, err := r.execute(ctx, StageConcat, StageConcat, g, ffmpeg.GetProfile(ffmpeg.ProfileConcat))
	if err != nil {
		return "", err
	}

	for _, s := range segments {
		r.release(s)
	}
	r.release(list)
	return out, nil
}

func (r *run) overlayImages(ctx context.Context, carrier string) (string, error) {
	g, err := BuildImageOverlayGraph(carrier, r.req.ImageOverlays)
	if err != nil {
		return "", newError(KindInvalidConfiguration, StageImageOverlay, err)
	}
	return r.execute(ctx, StageImageOverlay, StageImageOverlay, g, ffmpeg.GetProfile(ffmpeg.ProfileOverlay))
}

func (r *run) overlayAudio(ctx context.Context, carrier string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", newError(KindIOFailure, StageAudioOverlay, errors.Wrap(err, "run cancelled"))
	}
	meta, err := r.engine.Probe(ctx, carrier)
	if err != nil {
		return "", newError(KindEngineFailure, StageAudioOverlay, err)
	}
	if !meta.HasAudio {
		r.logger.Debug().Str("carrier", carrier).Msg("carrier has no audio, first insert seeds the mix")
	}

	g, err := BuildAudioOverlayGraph(carrier, r.req.AudioOverlays, meta.HasAudio)
	if err != nil {
		return "", newError(KindInvalidConfiguration, StageAudioOverlay, err)
	}
	return r.execute(ctx, StageAudioOverlay, StageAudioOverlay, g, ffmpeg.GetProfile(ffmpeg.ProfileAudio))
}

// release deletes a superseded artifact. A failed delete is logged only;
// the stage that consumed the artifact has already succeeded.
func (r *run) release(path string) {
	if err := r.artifacts.Release(path); err != nil {
		r.logger.Warn().Err(err).Str("path", path).Msg("failed to release artifact")
	}
}

// ConcatList renders the concat demuxer list for paths.
func ConcatList(paths []string) string {
	var sb strings.Builder
	for _, p := range paths {
		p = strings.ReplaceAll(p, `\`, "/")
		sb.WriteString("file '" + strings.ReplaceAll(p, "'", `'\''`) + "'\n")
	}
	return sb.String()
}
