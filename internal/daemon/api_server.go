package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"captioner/internal/api"
	"captioner/internal/batch"
	"captioner/internal/config"
	"captioner/internal/logging"
	"captioner/internal/queue"
	"captioner/internal/services"
)

const (
	maxRequestBody          = 1 << 20
	defaultProgressInterval = 2 * time.Second
)

// silentPaths are polled endpoints only logged on errors.
var silentPaths = map[string]bool{
	"/healthz":      true,
	"/api/progress": true,
}

type apiServer struct {
	cfg    *config.Config
	logger *slog.Logger
	daemon *Daemon

	progressInterval time.Duration

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &apiServer{
		cfg:              cfg,
		logger:           logging.NewComponentLogger(logger, "api-server"),
		daemon:           d,
		progressInterval: defaultProgressInterval,
	}
	s.server = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

func (s *apiServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(s.requestLogger)
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(corsOptions(s.cfg.Web.CORSAllowedOrigins)))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(proxyAuth(s.cfg))
		r.Use(chimw.RequestSize(maxRequestBody))

		r.Get("/config", s.handleConfig)
		r.Get("/status", s.handleStatus)
		r.Get("/scan", s.handleScan)
		r.Post("/submit", s.handleSubmit)
		r.Get("/batches", s.handleBatches)
		r.Get("/job/{id}", s.handleJob)
		r.Delete("/job/{id}", s.handleCancel)
		r.Get("/progress", s.handleProgress)
	})
	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}
	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", headerAuthEmail, headerForwardedUser},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
}

func (s *apiServer) addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := services.WithRequestID(r.Context(), chimw.GetReqID(r.Context()))
		r = r.WithContext(ctx)
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if silentPaths[r.URL.Path] && status < http.StatusBadRequest {
			return
		}
		logging.WithContext(ctx, s.logger).Info("http request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", status),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *apiServer) handleConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.ConfigResponse{
		DefaultModel:    s.cfg.Deepgram.Model,
		DefaultLanguage: s.cfg.Deepgram.Language,
		Models:          config.ModelChoices,
		MediaRoot:       s.cfg.Paths.MediaRoot,
	})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.Status())
}

func (s *apiServer) handleScan(w http.ResponseWriter, r *http.Request) {
	resp, err := s.daemon.Scan(r.Context(), r.URL.Query().Get("root"))
	switch {
	case errors.Is(err, ErrOutsideMediaRoot):
		writeError(w, http.StatusBadRequest, "Path must be under MEDIA_ROOT")
	case err != nil:
		s.logger.Warn("scan failed", logging.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *apiServer) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	resp, err := s.daemon.Submit(r.Context(), req, identity(r))
	switch {
	case errors.Is(err, ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, struct {
			api.ErrorResponse
			Rejected []api.RejectedFile `json:"rejected,omitempty"`
		}{api.ErrorResponse{Error: err.Error()}, resp.Rejected})
	case err != nil:
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "batch submission failed", "submit_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the progress database"),
		)
		writeError(w, http.StatusInternalServerError, "batch could not be recorded")
	default:
		writeJSON(w, http.StatusAccepted, resp)
	}
}

func (s *apiServer) handleBatches(w http.ResponseWriter, r *http.Request) {
	views, err := s.daemon.batches.List(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.BatchListResponse{Batches: views})
}

func (s *apiServer) handleJob(w http.ResponseWriter, r *http.Request) {
	view, err := s.daemon.Describe(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, queue.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, api.JobResponse{State: view.Status, Data: view})
	}
}

func (s *apiServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := s.daemon.Cancel(r.Context(), id)
	switch {
	case errors.Is(err, queue.ErrBatchNotFound):
		writeError(w, http.StatusNotFound, "batch not found")
	case errors.Is(err, batch.ErrNotActive):
		writeError(w, http.StatusConflict, "batch is not running")
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusAccepted, api.CancelResponse{BatchID: id, State: "cancelling"})
	}
}

// handleProgress streams server-sent events: a ping every interval and, with
// ?batch=<id>, a progress snapshot of that batch until it finishes.
func (s *apiServer) handleProgress(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	batchID := strings.TrimSpace(r.URL.Query().Get("batch"))

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	ticker := time.NewTicker(s.progressInterval)
	defer ticker.Stop()
	for {
		ping := map[string]float64{"t": float64(time.Now().UnixMilli()) / 1000}
		if err := writeEvent(w, "ping", ping); err != nil {
			return
		}
		if batchID != "" {
			done, err := s.writeBatchProgress(r.Context(), w, batchID)
			if err != nil {
				return
			}
			if done {
				_ = rc.Flush()
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *apiServer) writeBatchProgress(ctx context.Context, w http.ResponseWriter, id string) (bool, error) {
	view, err := s.daemon.Describe(ctx, id)
	if errors.Is(err, queue.ErrBatchNotFound) {
		return true, writeEvent(w, "error", api.ErrorResponse{Error: "batch not found"})
	}
	if err != nil {
		s.logger.Debug("progress snapshot unavailable", logging.String(logging.FieldBatchID, id), logging.Error(err))
		return false, nil
	}
	if err := writeEvent(w, "progress", view); err != nil {
		return false, err
	}
	if queue.BatchStatus(view.Status).Terminal() {
		return true, writeEvent(w, "done", api.JobResponse{State: view.Status, Data: view})
	}
	return false, nil
}

func writeEvent(w http.ResponseWriter, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, api.ErrorResponse{Error: message})
}
