// Package videoprocessor is the public entry point of the composer. It wires
// configuration, the ffmpeg engine, source acquisition and the run store
// into the operations the CLI and HTTP service expose.
package videoprocessor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/ZacxDev/video-composer/internal/acquire"
	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/internal/ffmpeg"
	"github.com/ZacxDev/video-composer/internal/preset"
	"github.com/ZacxDev/video-composer/internal/processor"
	"github.com/ZacxDev/video-composer/internal/server"
	"github.com/ZacxDev/video-composer/internal/store"
	"github.com/ZacxDev/video-composer/pkg/types"
)

// VideoMetadata describes a probed media file.
type VideoMetadata = ffmpeg.Metadata

// StagePlan is one compiled stage of a dry run.
type StagePlan struct {
	Name    string
	Kind    string
	Output  string
	Graph   string
	Maps    []string
	Command []string
}

// Service composes videos with one configuration.
type Service struct {
	cfg        *config.Config
	engine     *ffmpeg.Processor
	composer   *processor.Composer
	downloader *acquire.Downloader
	logger     zerolog.Logger
}

func New(cfg *config.Config, logger zerolog.Logger) *Service {
	engine := ffmpeg.NewProcessor(cfg.FFmpeg.Threads, logger)
	return &Service{
		cfg:        cfg,
		engine:     engine,
		composer:   processor.NewComposer(engine, cfg.OutputDir, logger),
		downloader: acquire.NewDownloader(cfg.Acquire, cfg.DownloadDir, logger),
		logger:     logger,
	}
}

// PresetInfo summarises a registered preset.
type PresetInfo struct {
	Name          string
	FontSize      int
	TextPositionY int
	UsesMask      bool
}

// GetSupportedPresets returns the preset names a request may use
func GetSupportedPresets() []string {
	return preset.Names()
}

// Presets describes every registered preset in name order.
func Presets() []PresetInfo {
	var infos []PresetInfo
	for _, name := range preset.Names() {
		p, err := preset.Get(types.PresetName(name))
		if err != nil {
			continue
		}
		infos = append(infos, PresetInfo{
			Name:          name,
			FontSize:      p.FontSize(),
			TextPositionY: p.TextPositionY(),
			UsesMask:      p.UsesMask(),
		})
	}
	return infos
}

// LoadRequest reads a composition request from a YAML or JSON file
func LoadRequest(path string) (*types.Request, error) {
	return types.LoadRequest(path)
}

// Compose downloads any remote clip sources and composes req. The returned
// result names the single surviving artifact.
func (s *Service) Compose(ctx context.Context, req *types.Request) (*processor.Result, error) {
	if err := s.downloader.Resolve(ctx, req); err != nil {
		return nil, errors.Wrap(err, "failed to process YouTube video")
	}
	return s.composer.Compose(ctx, req)
}

// Plan compiles every stage of req without running the engine. Remote
// sources are not downloaded.
func (s *Service) Plan(ctx context.Context, req *types.Request) ([]StagePlan, error) {
	reports, err := s.composer.Plan(ctx, req)
	if err != nil {
		return nil, err
	}

	plans := make([]StagePlan, 0, len(reports))
	for _, r := range reports {
		args, err := s.engine.Command(r.Job())
		if err != nil {
			return nil, errors.Wrapf(err, "compiling stage %s", r.Name)
		}
		plans = append(plans, StagePlan{
			Name:    r.Name,
			Kind:    r.Kind,
			Output:  r.Output,
			Graph:   r.Graph.String(),
			Maps:    r.Graph.Maps(),
			Command: args,
		})
	}
	return plans, nil
}

// GetVideoMetadata probes a media file
func (s *Service) GetVideoMetadata(ctx context.Context, path string) (*VideoMetadata, error) {
	return s.engine.Probe(ctx, path)
}

// Runs lists the most recent recorded runs.
func (s *Service) Runs(ctx context.Context, limit int) ([]store.Run, error) {
	st, err := store.Open(s.cfg.DBPath, s.logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return st.ListRuns(ctx, limit)
}

// Serve runs the HTTP service until ctx is cancelled. Only one service may
// own an output directory, since its reaper deletes files there.
func (s *Service) Serve(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	lockPath := filepath.Join(s.cfg.OutputDir, "composer.lock")
	lock := flock.New(lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return errors.Wrap(err, "acquire lock")
	}
	if !ok {
		return errors.Errorf("another composer is serving %s (lock %s)", s.cfg.OutputDir, lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to release service lock")
		}
	}()

	st, err := store.Open(s.cfg.DBPath, s.logger)
	if err != nil {
		return err
	}
	defer st.Close()

	srv := server.NewServer(server.Config{
		Port:          s.cfg.Server.Port,
		OutputDir:     s.cfg.OutputDir,
		MaxConcurrent: s.cfg.Server.MaxConcurrent,
		ArtifactTTL:   s.cfg.Server.ArtifactTTL,
		ReapInterval:  s.cfg.Server.ReapInterval,
		Composer:      s.composer,
		Acquirer:      s.downloader,
		Store:         st,
		Logger:        s.logger,
	})
	return srv.Start(ctx)
}
