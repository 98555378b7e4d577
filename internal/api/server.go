// Package api exposes the HTTP interface for the archiver service.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mhzan/cctv-archiver/internal/cctv"
	"github.com/mhzan/cctv-archiver/internal/metrics"
	"github.com/mhzan/cctv-archiver/internal/query"
	"github.com/mhzan/cctv-archiver/internal/scheduler"
	"github.com/mhzan/cctv-archiver/internal/timeparse"
)

const (
	legacyDefaultLimit = 20
	requestTimeout     = 60 * time.Second
)

// SchedulerHandle is the lifecycle surface the API exposes over the
// scheduler.
type SchedulerHandle interface {
	Start(ctx context.Context) error
	Stop()
	Status() scheduler.Status
}

// Server wires HTTP handlers to the stores and query engine.
type Server struct {
	router      chi.Router
	store       cctv.MetadataStore
	images      cctv.ImageStore
	queries     *query.Engine
	clock       cctv.Clock
	sched       SchedulerHandle
	baseCtx     context.Context
	logger      *zap.Logger
	legacyLimit int
}

// Config carries the handler collaborators.
type Config struct {
	Store   cctv.MetadataStore
	Images  cctv.ImageStore
	Queries *query.Engine
	Clock   cctv.Clock
	// Scheduler may be nil; the handle endpoints then return 404.
	Scheduler SchedulerHandle
	// BaseCtx scopes scheduler restarts triggered over HTTP, so they
	// outlive the triggering request.
	BaseCtx     context.Context
	Logger      *zap.Logger
	LegacyLimit int
}

// NewServer constructs a Server with middleware and routes.
func NewServer(cfg Config) *Server {
	if cfg.BaseCtx == nil {
		cfg.BaseCtx = context.Background()
	}
	if cfg.LegacyLimit <= 0 {
		cfg.LegacyLimit = 100
	}
	s := &Server{
		store:       cfg.Store,
		images:      cfg.Images,
		queries:     cfg.Queries,
		clock:       cfg.Clock,
		sched:       cfg.Scheduler,
		baseCtx:     cfg.BaseCtx,
		logger:      cfg.Logger.Named("api"),
		legacyLimit: cfg.LegacyLimit,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(requestTimeout))

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Get("/highways", s.listHighways)
	r.Get("/highways/{highway_code}", s.getHighway)
	r.Get("/cameras", s.listCameras)
	r.Get("/images", s.legacyImages)
	r.Get("/static/{filename}", s.serveImage)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cameras/{camera_id}", func(r chi.Router) {
			r.Get("/latest", s.latestImage)
			r.Get("/images", s.imageRange)
			r.Get("/images/{timestamp}", s.imageByTimestamp)
		})
		r.Route("/scheduler", func(r chi.Router) {
			r.Get("/", s.schedulerStatus)
			r.Post("/start", s.schedulerStart)
			r.Post("/stop", s.schedulerStop)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

type highwayResponse struct {
	ID      string        `json:"id"`
	Code    string        `json:"code"`
	Name    string        `json:"name"`
	Cameras []cctv.Camera `json:"cameras"`
}

func (s *Server) listHighways(w http.ResponseWriter, r *http.Request) {
	highways, err := s.store.ListHighways(r.Context())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	out := make([]highwayResponse, 0, len(highways))
	for _, hwy := range highways {
		cameras, err := s.store.ListCameras(r.Context(), hwy.Code)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		out = append(out, highwayResponse{
			ID:      hwy.HighwayID,
			Code:    hwy.Code,
			Name:    hwy.Name,
			Cameras: cameras,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"highways": out})
}

func (s *Server) getHighway(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "highway_code")
	hwy, err := s.store.GetHighway(r.Context(), code)
	if err != nil {
		if errors.Is(err, cctv.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Highway not found")
			return
		}
		s.writeDomainError(w, err)
		return
	}
	cameras, err := s.store.ListCameras(r.Context(), code)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, highwayResponse{
		ID:      hwy.HighwayID,
		Code:    hwy.Code,
		Name:    hwy.Name,
		Cameras: cameras,
	})
}

func (s *Server) listCameras(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("highway_code")
	if code != "" {
		if _, err := s.store.GetHighway(r.Context(), code); err != nil {
			if errors.Is(err, cctv.ErrNotFound) {
				writeError(w, http.StatusNotFound, "Highway not found")
				return
			}
			s.writeDomainError(w, err)
			return
		}
	}
	cameras, err := s.store.ListCameras(r.Context(), code)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cameras)
}

func (s *Server) latestImage(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	img, err := s.queries.Latest(r.Context(), cameraID)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	img.ImagePath = staticURL(img.ImagePath)
	writeJSON(w, http.StatusOK, img)
}

type nearestResponse struct {
	CameraID      string    `json:"camera_id"`
	CameraName    string    `json:"camera_name"`
	HighwayCode   string    `json:"highway_code"`
	HighwayName   string    `json:"highway_name"`
	RequestedTime string    `json:"requested_time"`
	ActualTime    time.Time `json:"actual_time"`
	ImageURL      string    `json:"image_url"`
	FileSize      int64     `json:"file_size"`
}

func (s *Server) imageByTimestamp(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	raw := chi.URLParam(r, "timestamp")

	target, err := timeparse.Resolve(raw, s.clock.Now())
	if err != nil {
		s.writeDomainError(w, err)
		return
	}

	img, err := s.queries.Nearest(r.Context(), cameraID, target)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nearestResponse{
		CameraID:      img.CameraID,
		CameraName:    img.CameraName,
		HighwayCode:   img.HighwayCode,
		HighwayName:   img.HighwayName,
		RequestedTime: raw,
		ActualTime:    img.CaptureTime,
		ImageURL:      staticURL(img.ImagePath),
		FileSize:      img.FileSize,
	})
}

func (s *Server) imageRange(w http.ResponseWriter, r *http.Request) {
	cameraID := chi.URLParam(r, "camera_id")
	params := r.URL.Query()

	q := cctv.ImageQuery{CameraID: cameraID}
	now := s.clock.Now()
	if raw := params.Get("from_time"); raw != "" {
		from, err := timeparse.Resolve(raw, now)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		q.From = &from
	}
	if raw := params.Get("to_time"); raw != "" {
		to, err := timeparse.Resolve(raw, now)
		if err != nil {
			s.writeDomainError(w, err)
			return
		}
		q.To = &to
	}
	if raw := params.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = limit
	}

	images, err := s.queries.Range(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(images) == 0 {
		writeError(w, http.StatusNotFound,
			"No images found for camera "+cameraID+" in the specified time range")
		return
	}
	for i := range images {
		images[i].ImagePath = staticURL(images[i].ImagePath)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":     len(images),
		"from_time": params.Get("from_time"),
		"to_time":   params.Get("to_time"),
		"images":    images,
	})
}

type legacyImage struct {
	HighwayCode string    `json:"highway_code"`
	HighwayName string    `json:"highway_name"`
	CameraID    string    `json:"camera_id"`
	CameraName  string    `json:"camera_name"`
	Timestamp   time.Time `json:"timestamp"`
	ImageURL    string    `json:"image_url"`
}

// legacyImages is the flat pre-v1 listing. With a camera filter it
// returns the single newest image; with no filter it collapses to one
// newest image per camera.
func (s *Server) legacyImages(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	highwayCode := params.Get("highway_code")
	cameraID := params.Get("camera_id")

	limit := legacyDefaultLimit
	if raw := params.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = parsed
	}
	if limit <= 0 || limit > s.legacyLimit {
		limit = s.legacyLimit
	}

	images, err := s.store.QueryImages(r.Context(), cctv.ImageQuery{
		CameraID:    cameraID,
		HighwayCode: highwayCode,
		Limit:       limit,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	if len(images) == 0 {
		writeError(w, http.StatusNotFound, "No images found matching the criteria")
		return
	}

	if cameraID != "" {
		writeJSON(w, http.StatusOK, toLegacy(images[0]))
		return
	}

	var out []legacyImage
	seen := make(map[string]bool)
	for _, img := range images {
		if highwayCode == "" && seen[img.CameraID] {
			continue
		}
		seen[img.CameraID] = true
		out = append(out, toLegacy(img))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(out),
		"images": out,
	})
}

func toLegacy(img cctv.CapturedImage) legacyImage {
	return legacyImage{
		HighwayCode: img.HighwayCode,
		HighwayName: img.HighwayName,
		CameraID:    img.CameraID,
		CameraName:  img.CameraName,
		Timestamp:   img.CaptureTime,
		ImageURL:    staticURL(img.ImagePath),
	}
}

// staticURL maps a storage key onto the path the image bytes are served
// from, so clients can dereference image_url directly.
func staticURL(key string) string {
	return "/static/" + key
}

func (s *Server) serveImage(w http.ResponseWriter, r *http.Request) {
	filename := chi.URLParam(r, "filename")
	if strings.Contains(filename, "/") || strings.Contains(filename, "..") {
		writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}
	data, err := s.images.Get(r.Context(), filename)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write image response failed", zap.Error(err))
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	stats, err := s.images.Stats(r.Context())
	if err != nil {
		s.logger.Warn("image store stats failed", zap.Error(err))
	}
	highways, err := s.store.ListHighways(r.Context())
	if err != nil {
		s.logger.Warn("listing highways for health failed", zap.Error(err))
	}
	imageCount, err := s.store.CountImages(r.Context())
	if err != nil {
		s.logger.Warn("counting images for health failed", zap.Error(err))
	}
	// Prefer the storage-side count when the backend can enumerate; it
	// also surfaces orphan files a crashed cycle left behind.
	if stats.Exists && stats.ImageCount >= 0 {
		imageCount = stats.ImageCount
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"storage_dir":     stats.Dir,
		"storage_exists":  stats.Exists,
		"storage_is_dir":  stats.IsDir,
		"active_highways": len(highways),
		"image_count":     imageCount,
		"scheduler_state": s.schedulerState(),
		"checked_at":      s.clock.Now().Format(time.RFC3339),
	})
}

func (s *Server) schedulerState() string {
	if s.sched == nil {
		return "disabled"
	}
	return string(s.sched.Status().State)
}

func (s *Server) schedulerStatus(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusNotFound, "scheduler is not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) schedulerStart(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusNotFound, "scheduler is not configured")
		return
	}
	// Derive from the base context, not the request, so the scheduler
	// survives after the response is sent.
	if err := s.sched.Start(s.baseCtx); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.sched.Status())
}

func (s *Server) schedulerStop(w http.ResponseWriter, _ *http.Request) {
	if s.sched == nil {
		writeError(w, http.StatusNotFound, "scheduler is not configured")
		return
	}
	s.sched.Stop()
	writeJSON(w, http.StatusOK, s.sched.Status())
}

// writeDomainError maps sentinel errors onto HTTP statuses.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, cctv.ErrInvalidTimestamp), errors.Is(err, query.ErrInvalidRange):
		status = http.StatusBadRequest
	case errors.Is(err, cctv.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cctv.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", zap.Error(err))
	}
	writeError(w, status, err.Error())
}
