package processor

import (
	"context"

	"github.com/google/uuid"

	"github.com/ZacxDev/video-composer/internal/ffmpeg"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// planEngine accepts every job without running it. Probed carriers are
// assumed to have audio.
type planEngine struct{}

func (planEngine) Run(ctx context.Context, job ffmpeg.Job) error {
	return ctx.Err()
}

func (planEngine) Probe(ctx context.Context, path string) (*ffmpeg.Metadata, error) {
	return &ffmpeg.Metadata{HasAudio: true}, ctx.Err()
}

// Plan compiles every stage of req without invoking the engine. Assets are
// still resolved, so a plan fails exactly where a real run would before its
// first engine call.
func (c *Composer) Plan(ctx context.Context, req *types.Request) ([]StageReport, error) {
	dry := &Composer{
		engine:    planEngine{},
		outputDir: c.outputDir,
		logger:    c.logger,
		assets:    c.assets,
	}
	res, err := dry.ComposeRun(ctx, "plan-"+uuid.NewString(), req)
	if err != nil {
		return nil, err
	}
	return res.Stages, nil
}
