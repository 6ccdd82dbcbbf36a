// Package server exposes the analysis engine over HTTP.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/logflow/pmdash/internal/model"
	"github.com/logflow/pmdash/pkg/ingest"
	"github.com/logflow/pmdash/pkg/mining"
	"github.com/logflow/pmdash/pkg/sample"
	"github.com/logflow/pmdash/pkg/store"
	"github.com/logflow/pmdash/pkg/validate"
)

// SampleSource is the snapshot source name of generated sample logs.
const SampleSource = "sample"

// Config tunes request handling.
type Config struct {
	// MaxUploadSize caps the request body of /api/upload in bytes.
	MaxUploadSize int64

	// CORSOrigins lists allowed origins; "*" allows any.
	CORSOrigins []string

	// Sample generates the default log. Defaults to sample.Generate.
	Sample func() *model.RecordSet
}

// Server handles HTTP requests for the dashboard API.
type Server struct {
	cfg    Config
	engine *mining.Engine
	store  store.Store
	loader *ingest.Loader
	broker *Broker
	router chi.Router
	logger zerolog.Logger
}

// New creates a server over an engine, a snapshot store and a source loader.
func New(cfg Config, engine *mining.Engine, st store.Store, loader *ingest.Loader, logger zerolog.Logger) *Server {
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 50 << 20
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Sample == nil {
		cfg.Sample = func() *model.RecordSet { return sample.Generate(nil, time.Now()) }
	}

	s := &Server{
		cfg:    cfg,
		engine: engine,
		store:  st,
		loader: loader,
		broker: NewBroker(),
		logger: logger.With().Str("component", "server").Logger(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures HTTP handlers.
func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors(s.cfg.CORSOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/snapshot", s.handleSnapshot)
		r.Get("/report", s.handleReport)
		r.Get("/overview", s.handleOverview)
		r.Get("/bottlenecks", s.handleBottlenecks)
		r.Get("/loops", s.handleLoops)
		r.Get("/variants", s.handleVariants)
		r.Get("/compliance", s.handleCompliance)
		r.Get("/events", s.handleEvents)
		r.Post("/upload", s.handleUpload)
		r.Post("/reset", s.handleReset)
	})

	s.router = r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Bootstrap publishes a sample log unless a snapshot is already active,
// for instance one shared through Redis by another replica.
func (s *Server) Bootstrap(ctx context.Context) error {
	if _, err := s.store.Current(ctx); err == nil {
		return nil
	}
	_, err := s.publishSample(ctx)
	return err
}

// LoadSource reads, validates and publishes the log at uri. On any
// failure the active snapshot is left in place.
func (s *Server) LoadSource(ctx context.Context, uri string) error {
	rs, err := s.loader.Load(ctx, uri)
	if err != nil {
		return err
	}
	_, err = s.publish(ctx, uri, rs)
	return err
}

func (s *Server) publishSample(ctx context.Context) (*store.Snapshot, error) {
	return s.publish(ctx, SampleSource, s.cfg.Sample())
}

// publish validates rs and swaps it in as the active snapshot.
func (s *Server) publish(ctx context.Context, source string, rs *model.RecordSet) (*store.Snapshot, error) {
	log, err := validate.Validate(rs)
	if err != nil {
		return nil, err
	}

	snap := store.NewSnapshot(source, log)
	if err := s.store.Replace(ctx, snap); err != nil {
		return nil, err
	}

	info := snap.Info()
	s.broker.Publish(Event{Name: "snapshot", ID: info.ID, Data: info})
	s.logger.Info().
		Str("snapshot", info.ID).
		Str("source", source).
		Int("rows", info.Rows).
		Msg("snapshot published")
	return snap, nil
}

// Close ends all event streams.
func (s *Server) Close() error {
	s.broker.Close()
	return nil
}
