package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"time"

	"skyproc/internal/config"
	"skyproc/internal/fits"
	"skyproc/internal/pipeline"
	"skyproc/internal/preview"
	"skyproc/internal/storage"
	"skyproc/internal/watch"

	"github.com/gorilla/mux"
)

// Server exposes job monitoring over HTTP and optionally watches
// directories for incoming FITS files.
type Server struct {
	addr     string
	store    *storage.Store
	pipeline *pipeline.Pipeline
	watcher  *watch.Watcher
	hub      *Hub
	preview  config.PreviewConfig
	log      *slog.Logger
	server   *http.Server
}

// NewServer creates a server. When watchPaths is non-empty, new FITS
// files under those directories get a preview job queued automatically.
func NewServer(addr string, store *storage.Store, pipe *pipeline.Pipeline, watchPaths []string, previewCfg config.PreviewConfig, log *slog.Logger) (*Server, error) {
	s := &Server{
		addr:     addr,
		store:    store,
		pipeline: pipe,
		hub:      newHub(log),
		preview:  previewCfg,
		log:      log,
	}

	if len(watchPaths) > 0 {
		w, err := watch.New(watchPaths, log)
		if err != nil {
			log.Warn("failed to setup watcher", "error", err)
		} else {
			s.watcher = w
			log.Info("watcher initialized", "paths", watchPaths)
		}
	}

	return s, nil
}

// Start begins serving and monitoring until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	go s.hub.run(ctx)
	go s.forwardResults(ctx)

	if s.watcher != nil {
		if err := s.watcher.Start(); err != nil {
			return err
		}
		go s.handleWatchEvents(ctx)
	}

	r := mux.NewRouter()
	s.setupRoutes(r)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: r,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down server")

		if s.watcher != nil {
			s.watcher.Stop()
		}

		ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.server.Shutdown(ctxShutdown)
	}()

	s.log.Info("server starting", "addr", s.addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) setupRoutes(r *mux.Router) {
	r.HandleFunc("/healthz", s.handleHealth).Methods("GET")
	r.HandleFunc("/jobs", s.handleJobs).Methods("GET")
	r.HandleFunc("/jobs/{id}/meta", s.handleJobMeta).Methods("GET")
	r.HandleFunc("/products", s.handleProducts).Methods("GET")
	r.HandleFunc("/preview/{id}", s.handlePreview).Methods("GET")
	r.HandleFunc("/stream", s.handleJobStream).Methods("GET")
	r.HandleFunc("/ws", s.hub.handleWebSocket).Methods("GET")
}

// forwardResults relays pipeline results to websocket clients.
func (s *Server) forwardResults(ctx context.Context) {
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(map[string]any{
				"job":    res.Job.ID,
				"type":   res.Job.Type,
				"error":  errString(res.Error),
				"meta":   res.Meta,
				"output": res.Job.Output,
			})
			s.hub.broadcast <- payload
		}
	}
}

// handleWatchEvents queues a preview render for every FITS file that
// appears or changes under the watched directories.
func (s *Server) handleWatchEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Operation != "created" && ev.Operation != "modified" {
				continue
			}
			job := pipeline.Job{
				ID:        "watch-" + time.Now().UTC().Format("20060102T150405.000"),
				Type:      pipeline.JobPreview,
				InputPath: ev.Path,
			}
			if err := s.pipeline.Submit(job); err != nil {
				s.log.Warn("failed to queue preview for watched file", "path", ev.Path, "error", err)
			}
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.RecentJobs(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

func (s *Server) handleJobMeta(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	meta, err := s.store.JobMeta(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(meta)
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	recs, err := s.store.Products(100)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(recs)
}

// handlePreview renders a job's most recent FITS product as a PNG
// quicklook.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.store.ProductForJob(id)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "no product for job", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	im, err := fits.ReadFile(rec.Path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	pic, err := preview.Render(im, s.preview.MaxDim, s.preview.QuantLow, s.preview.QuantHigh)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	if err := png.Encode(w, pic); err != nil {
		s.log.Warn("preview encode failed", "job", id, "error", err)
	}
}

func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	resCh, unsubscribe := s.pipeline.Subscribe()
	defer unsubscribe()
	for {
		select {
		case <-r.Context().Done():
			return
		case res, ok := <-resCh:
			if !ok {
				return
			}
			payload, _ := json.Marshal(res)
			_, _ = w.Write([]byte("data: " + string(payload) + "\n\n"))
			flusher.Flush()
		}
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
