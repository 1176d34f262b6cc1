package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/nextlevelbuilder/harvestgate/internal/authfilter"
	"github.com/nextlevelbuilder/harvestgate/internal/connectors"
	"github.com/nextlevelbuilder/harvestgate/internal/connectorsvc"
	"github.com/nextlevelbuilder/harvestgate/internal/llmagent"
	"github.com/nextlevelbuilder/harvestgate/internal/lockstore"
	"github.com/nextlevelbuilder/harvestgate/internal/taskstore"
	"github.com/nextlevelbuilder/harvestgate/internal/tracing"
)

var tracer = tracing.Tracer("harvestgate/httpapi")

// Server is the HTTP surface of spec §6, wrapping *http.ServeMux and
// *http.Server the way the teacher's gateway.Server does.
type Server struct {
	host string
	port int

	locks    lockstore.Store
	tasks    taskstore.TaskStore
	registry *connectors.Registry
	auth     *authfilter.Filter

	planner *llmagent.Planner
	agent   llmagent.Agent

	localLimit *localLimiter

	httpServer *http.Server
	mux        *http.ServeMux
}

// Config bundles Server's constructor dependencies.
type Config struct {
	Host string
	Port int

	Locks    lockstore.Store
	Tasks    taskstore.TaskStore
	Registry *connectors.Registry
	Auth     *authfilter.Filter

	Planner *llmagent.Planner
	Agent   llmagent.Agent
}

func NewServer(cfg Config) *Server {
	return &Server{
		host:       cfg.Host,
		port:       cfg.Port,
		locks:      cfg.Locks,
		tasks:      cfg.Tasks,
		registry:   cfg.Registry,
		auth:       cfg.Auth,
		planner:    cfg.Planner,
		agent:      cfg.Agent,
		localLimit: newLocalLimiter(),
	}
}

// newConnectorService builds a per-request connectorsvc.Service scoped to
// the request's resolved identity and a task, mirroring spec §4.F:
// "Constructed per request/task with (browser_driver, source, source_id,
// task)".
func (s *Server) newConnectorService(identity authfilter.Identity, task *taskstore.Task) *connectorsvc.Service {
	return connectorsvc.New(s.locks, s.tasks, s.registry, identity.Source, identity.SourceID, task)
}

// BuildMux registers every route from spec §6's HTTP surface table.
func (s *Server) BuildMux() *http.ServeMux {
	if s.mux != nil {
		return s.mux
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	authed := func(h http.HandlerFunc) http.Handler {
		return s.auth.Middleware(h)
	}

	mux.Handle("POST /connectors/extract-summary", authed(s.handleExtractSummary))
	mux.Handle("POST /connectors/harvest", authed(s.handleHarvest))
	mux.Handle("POST /connectors/get-note-detail", authed(s.handleGetNoteDetail))
	mux.Handle("POST /connectors/search-and-extract", authed(s.handleSearchAndExtract))
	mux.Handle("POST /connectors/publish", authed(s.handlePublish))
	mux.Handle("POST /connectors/login", authed(s.handleLogin))
	mux.Handle("POST /connectors/login/{platform}/confirm", authed(s.handleConfirmLogin))
	mux.Handle("GET /connectors/platforms", authed(s.handlePlatforms))

	mux.Handle("POST /sniper/xhs/harvest", authed(s.handleSniperHarvest))
	mux.Handle("POST /sniper/xhs/trend", authed(s.handleSniperTrend))
	mux.Handle("GET /sniper/task/{id}", authed(s.handleGetTask))
	mux.Handle("GET /sniper/task/{id}/logs", authed(s.handleGetTaskLogs))
	mux.Handle("POST /sniper/tasks", authed(s.handleListTasks))

	s.mux = mux
	return mux
}

// withTracing wraps the whole mux in a root span per request. A no-op when
// no OTLP exporter was configured via tracing.Init.
func withTracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path)
		defer span.End()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("http.path", r.URL.Path),
			attribute.Int("http.status_code", rec.status),
		)
		if rec.status >= 500 {
			span.SetStatus(codes.Error, http.StatusText(rec.status))
		}
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, `{"status":"ok"}`)
}

// Start runs the server until ctx is cancelled, then shuts it down
// gracefully, grounded on internal/gateway/server.go's Start method.
func (s *Server) Start(ctx context.Context) error {
	mux := s.BuildMux()

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.httpServer = &http.Server{Addr: addr, Handler: withTracing(mux)}

	slog.Info("httpapi starting", "addr", addr)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("httpapi server: %w", err)
	}
	return nil
}
