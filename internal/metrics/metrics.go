// Package metrics instruments the executor and the completion engine
// with Prometheus metrics on a private registry, grounded on the
// teacher's metrics.GRPCMetrics/metrics.Registry pattern.
package metrics

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const Namespace = "wrensh"

// Registry is the private registry for all wrensh metrics; using a
// custom registry keeps the shell's own process metrics separate from
// anything else linked into the binary.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}

// JobMetrics instruments internal/jobexec.
type JobMetrics struct {
	JobsStarted   prometheus.Counter
	JobsCompleted *prometheus.CounterVec // label: status_class (ok/error)
	JobDuration   prometheus.Histogram
	ProcessesForked prometheus.Counter
	ForkRetries   prometheus.Counter
}

func NewJobMetrics() *JobMetrics {
	m := &JobMetrics{
		JobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "started_total",
			Help: "Total number of jobs the executor has started.",
		}),
		JobsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "completed_total",
			Help: "Total number of jobs the executor has reaped, by outcome class.",
		}, []string{"status_class"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "duration_seconds",
			Help:    "Wall-clock duration of a job from fork of the first process to reap of the last.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
		}),
		ProcessesForked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "processes_forked_total",
			Help: "Total number of child processes forked across all jobs.",
		}),
		ForkRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "jobs", Name: "fork_retries_total",
			Help: "Total number of fork() retries after EAGAIN.",
		}),
	}
	Registry.MustRegister(m.JobsStarted, m.JobsCompleted, m.JobDuration, m.ProcessesForked, m.ForkRetries)
	return m
}

// CompletionMetrics instruments internal/complete.
type CompletionMetrics struct {
	Requests       *prometheus.CounterVec // label: kind (command/argument/variable/user/highlight)
	RequestLatency *prometheus.HistogramVec
	BackgroundWorkers prometheus.Gauge
	AutoloadReparses prometheus.Counter
	AutoloadEvictions prometheus.Counter
}

func NewCompletionMetrics() *CompletionMetrics {
	m := &CompletionMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "complete", Name: "requests_total",
			Help: "Total number of completion/highlight requests served.",
		}, []string{"kind"}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace, Subsystem: "complete", Name: "request_duration_seconds",
			Help:    "Latency of completion/highlight requests.",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"kind"}),
		BackgroundWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace, Subsystem: "complete", Name: "background_workers",
			Help: "Number of live background autosuggest/highlight workers.",
		}),
		AutoloadReparses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "complete", Name: "autoload_reparses_total",
			Help: "Total number of completion-rule files (re)parsed by the autoloader.",
		}),
		AutoloadEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace, Subsystem: "complete", Name: "autoload_evictions_total",
			Help: "Total number of completion rules evicted because their source file disappeared.",
		}),
	}
	Registry.MustRegister(m.Requests, m.RequestLatency, m.BackgroundWorkers, m.AutoloadReparses, m.AutoloadEvictions)
	return m
}

// Server serves the /metrics endpoint for Prometheus scraping.
type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds a metrics server; pass port 0 to disable (caller
// just doesn't call Start).
func NewServer(port int, logger *zap.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

func (s *Server) Start() {
	go func() {
		s.logger.Info("metrics server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("metrics server error", zap.Error(err))
		}
	}()
}

func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown error", zap.Error(err))
	}
}
