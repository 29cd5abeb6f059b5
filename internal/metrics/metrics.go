// Package metrics exposes the pool's prometheus registry over fasthttp.
package metrics

import (
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

// Path is where the registry is served
const Path = "/metrics"

// NewRegistry creates a registry with the Go runtime and process collectors
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Server serves a prometheus registry at Path
type Server struct {
	server *fasthttp.Server
	logger logrus.FieldLogger
}

// NewServer creates a metrics server for reg
func NewServer(reg *prometheus.Registry, logger logrus.FieldLogger) *Server {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	return &Server{
		server: &fasthttp.Server{
			Name: "gopool-metrics",
			Handler: func(ctx *fasthttp.RequestCtx) {
				if string(ctx.Path()) != Path {
					ctx.Error("not found", fasthttp.StatusNotFound)
					return
				}
				metricsHandler(ctx)
			},
		},
		logger: logger,
	}
}

// Serve serves on ln until Shutdown
func (s *Server) Serve(ln net.Listener) error {
	s.logger.WithField("addr", ln.Addr().String()).Info("metrics server listening")
	return s.server.Serve(ln)
}

// ListenAndServe listens on addr and serves until Shutdown
func (s *Server) ListenAndServe(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Shutdown stops the server and waits for open requests to finish
func (s *Server) Shutdown() error {
	return s.server.Shutdown()
}
