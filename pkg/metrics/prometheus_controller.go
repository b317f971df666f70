package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const DefaultPath = "/debug/prometheus"

type PrometheusController struct {
	path     string
	gatherer prometheus.Gatherer
}

// NewPrometheusController serves gatherer on path. A nil gatherer means the
// default registry.
func NewPrometheusController(path string, gatherer prometheus.Gatherer) *PrometheusController {
	if path == "" {
		path = DefaultPath
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &PrometheusController{path: path, gatherer: gatherer}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

// Server exposes the metrics endpoint for the lifetime of a CLI run.
type Server struct {
	srv *http.Server
	log *logrus.Logger
}

func NewServer(addr string, controller *PrometheusController, log *logrus.Logger) *Server {
	r := mux.NewRouter()
	controller.Register(r)
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start binds the listener synchronously and serves in the background.
func (s *Server) Start() (net.Addr, error) {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return nil, err
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) && s.log != nil {
			s.log.WithError(err).Error("metrics server stopped")
		}
	}()
	return ln.Addr(), nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
