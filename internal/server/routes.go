package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"

	"github.com/ZacxDev/video-composer/internal/processor"
	"github.com/ZacxDev/video-composer/internal/store"
	"github.com/ZacxDev/video-composer/pkg/types"
)

const recordTimeout = 10 * time.Second

// recordContext outlives the request so a run reaches a terminal state
// after the client disconnects.
func recordContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
}

type handlers struct {
	cfg     Config
	limiter *semaphore.Weighted
	started time.Time
	now     func() time.Time
}

func NewRouter(cfg Config) *chi.Mux {
	h := &handlers{
		cfg:     cfg,
		limiter: newLimiter(cfg.MaxConcurrent),
		started: time.Now(),
		now:     time.Now,
	}
	return h.router()
}

func (h *handlers) router() *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggingMiddleware(h.cfg.Logger))

	r.Get("/health", h.health)
	r.Post("/process-video", h.processVideo)

	r.Route("/videos/{name}", func(r chi.Router) {
		r.With(VideoHeaders).Get("/", h.serveVideo)
		r.With(VideoHeaders).Head("/", h.serveVideo)
		r.Get("/info", h.videoInfo)
	})

	return r
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		UptimeS: int64(time.Since(h.started).Seconds()),
	})
}

func (h *handlers) processVideo(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := &types.Request{}
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		WriteJSON(w, http.StatusBadRequest, ProcessResponse{Error: "invalid request body: " + err.Error()})
		return
	}

	if err := h.limiter.Acquire(ctx, 1); err != nil {
		WriteJSON(w, http.StatusServiceUnavailable, ProcessResponse{Error: "request cancelled while queued"})
		return
	}
	defer h.limiter.Release(1)

	runID := uuid.NewString()
	logger := h.cfg.Logger.With().Str("run_id", runID).Logger()
	if err := h.cfg.Store.CreateRun(ctx, runID); err != nil {
		logger.Error().Err(err).Msg("failed to record run")
		WriteJSON(w, http.StatusInternalServerError, ProcessResponse{Error: "failed to record run"})
		return
	}

	fail := func(status int, err error) {
		rctx, cancel := recordContext(ctx)
		defer cancel()
		if ferr := h.cfg.Store.FailRun(rctx, runID, err.Error()); ferr != nil {
			logger.Warn().Err(ferr).Msg("failed to record run failure")
		}
		WriteJSON(w, status, ProcessResponse{RunID: runID, Error: err.Error()})
	}

	if h.cfg.Acquirer != nil {
		if err := h.cfg.Acquirer.Resolve(ctx, req); err != nil {
			fail(http.StatusBadRequest, errors.Wrap(err, "failed to process YouTube video"))
			return
		}
	}

	res, err := h.cfg.Composer.ComposeRun(ctx, runID, req)
	if err != nil {
		status := http.StatusInternalServerError
		if processor.IsClientError(err) {
			status = http.StatusBadRequest
		}
		fail(status, err)
		return
	}

	expires := h.now().Add(h.cfg.ArtifactTTL)
	rctx, cancel := recordContext(ctx)
	defer cancel()
	if err := h.cfg.Store.CompleteRun(rctx, runID, res.Output, expires); err != nil {
		logger.Error().Err(err).Msg("failed to record run output")
	}

	WriteJSON(w, http.StatusOK, ProcessResponse{
		Success:  true,
		RunID:    runID,
		VideoURL: videoURL(filepath.Base(res.Output)),
	})
}

// lookup resolves a served video name to its run and file. Only outputs of
// succeeded runs are visible.
func (h *handlers) lookup(r *http.Request) (*store.Run, os.FileInfo, bool) {
	name := chi.URLParam(r, "name")
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return nil, nil, false
	}

	run, err := h.cfg.Store.FindByOutput(r.Context(), name)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.cfg.Logger.Error().Err(err).Str("name", name).Msg("failed to look up video")
		}
		return nil, nil, false
	}

	info, err := os.Stat(filepath.Join(h.cfg.OutputDir, name))
	if err != nil || info.IsDir() {
		return nil, nil, false
	}
	return run, info, true
}

func (h *handlers) serveVideo(w http.ResponseWriter, r *http.Request) {
	_, info, ok := h.lookup(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "Video not found")
		return
	}

	f, err := os.Open(filepath.Join(h.cfg.OutputDir, info.Name()))
	if err != nil {
		WriteError(w, http.StatusNotFound, "Video not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

func (h *handlers) videoInfo(w http.ResponseWriter, r *http.Request) {
	run, info, ok := h.lookup(r)
	if !ok {
		WriteError(w, http.StatusNotFound, "Video not found")
		return
	}

	WriteJSON(w, http.StatusOK, VideoInfoResponse{
		Filename: info.Name(),
		Size:     info.Size(),
		Created:  run.CreatedAt,
		URL:      videoURL(info.Name()),
		Expires:  run.ExpiresAt,
	})
}
