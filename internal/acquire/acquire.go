// Package acquire resolves remote clip sources to local files before a
// request reaches the composer. YouTube URLs are downloaded with yt-dlp into
// a cache directory keyed by video ID.
package acquire

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/ZacxDev/video-composer/internal/config"
	"github.com/ZacxDev/video-composer/pkg/types"
)

var (
	youtubeURL = regexp.MustCompile(`^(https?://)?(www\.)?(youtube\.com|youtu\.be)/.+$`)
	youtubeID  = regexp.MustCompile(`^.*(youtu\.be/|v/|u/\w/|embed/|watch\?v=|&v=)([^#&?]*).*`)
)

// IsYouTubeURL reports whether s points at YouTube.
func IsYouTubeURL(s string) bool {
	return youtubeURL.MatchString(s)
}

// VideoID extracts the 11 character video ID from a YouTube URL.
func VideoID(url string) (string, bool) {
	m := youtubeID.FindStringSubmatch(url)
	if m == nil || len(m[2]) != 11 {
		return "", false
	}
	return m[2], true
}

// downloadTimeout bounds a shared download once it no longer follows any
// caller's context.
const downloadTimeout = 30 * time.Minute

// runner executes an external command and returns its combined output.
type runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Downloader fetches YouTube videos into dir. Concurrent requests for the
// same video share one download.
type Downloader struct {
	cfg    config.AcquireConfig
	dir    string
	logger zerolog.Logger
	run    runner
	group  singleflight.Group
}

func NewDownloader(cfg config.AcquireConfig, dir string, logger zerolog.Logger) *Downloader {
	if cfg.Binary == "" {
		cfg.Binary = "yt-dlp"
	}
	return &Downloader{
		cfg:    cfg,
		dir:    dir,
		logger: logger.With().Str("component", "acquire").Logger(),
		run:    execRunner,
	}
}

// Fetch returns the local path of the video at url, downloading it unless a
// cached copy exists. A caller that gives up stops waiting, but the shared
// download keeps running for the callers still joined to it.
func (d *Downloader) Fetch(ctx context.Context, url string) (string, error) {
	id, ok := VideoID(url)
	if !ok {
		return "", errors.Errorf("invalid YouTube URL: %s", url)
	}

	ch := d.group.DoChan(id, func() (interface{}, error) {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), downloadTimeout)
		defer cancel()
		return d.download(dctx, id, url)
	})
	select {
	case <-ctx.Done():
		return "", errors.Wrap(ctx.Err(), "waiting for download")
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (d *Downloader) download(ctx context.Context, id, url string) (string, error) {
	dir, err := filepath.Abs(d.dir)
	if err != nil {
		return "", errors.WithStack(err)
	}
	out := filepath.Join(dir, id+".mp4")

	if info, err := os.Stat(out); err == nil && info.Size() > 0 {
		d.logger.Debug().Str("video_id", id).Msg("using cached video")
		return out, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", errors.Wrap(err, "failed to create download directory")
	}

	args := []string{"-f", d.cfg.Format}
	if d.cfg.Cookies != "" {
		args = append(args, "--cookies", d.cfg.Cookies)
	}
	args = append(args, "--merge-output-format", "mp4", "-o", out, url)

	d.logger.Info().Str("video_id", id).Msg("downloading video")
	if output, err := d.run(ctx, d.cfg.Binary, args...); err != nil {
		os.Remove(out)
		return "", errors.Wrapf(err, "failed to download YouTube video: %s", strings.TrimSpace(string(output)))
	}
	if _, err := os.Stat(out); err != nil {
		return "", errors.Errorf("%s finished without producing %s", d.cfg.Binary, out)
	}
	return out, nil
}

// Resolve replaces every YouTube clip source in req with its local download.
func (d *Downloader) Resolve(ctx context.Context, req *types.Request) error {
	for i := range req.Clips {
		clip := &req.Clips[i]
		src := clip.Source()
		if !IsYouTubeURL(src) {
			continue
		}
		path, err := d.Fetch(ctx, src)
		if err != nil {
			return errors.Wrapf(err, "clip %d", i)
		}
		clip.SourcePath = path
		clip.VideoPath = ""
	}
	return nil
}
