package observability

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/karatrack-backend/internal/platform/logger"
)

// Metrics is a small Prometheus text-format registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	apiRequests   *CounterVec
	apiLatency    *HistogramVec
	apiInflight   *Gauge
	jobsFinished  *CounterVec
	jobDuration   *HistogramVec
	stageDuration *HistogramVec
	framesTotal   *Counter
	callbacks     *CounterVec
	redisUp       *Gauge
	redisPing     *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

// Current returns the process-wide registry, or nil before Init.
func Current() *Metrics { return instance }

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = &Metrics{
			apiRequests: NewCounterVec("kt_api_requests_total", "API requests by method/route/status.", []string{"method", "route", "status"}),
			apiLatency: NewHistogramVec("kt_api_request_duration_seconds", "API latency in seconds.",
				[]string{"method", "route"},
				[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			),
			apiInflight:  NewGauge("kt_api_inflight_requests", "In-flight API requests."),
			jobsFinished: NewCounterVec("kt_jobs_finished_total", "Finished jobs by type/status.", []string{"job_type", "status"}),
			jobDuration: NewHistogramVec("kt_job_duration_seconds", "Wall time per job.",
				[]string{"job_type", "status"},
				[]float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
			),
			stageDuration: NewHistogramVec("kt_job_stage_duration_seconds", "Wall time per pipeline stage.",
				[]string{"stage", "status"},
				[]float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900},
			),
			framesTotal: NewCounter("kt_frames_rendered_total", "Video frames rendered."),
			callbacks:   NewCounterVec("kt_callbacks_total", "Callback deliveries by outcome.", []string{"outcome"}),
			redisUp:     NewGauge("kt_redis_up", "1 when the last Redis ping succeeded."),
			redisPing:   NewGauge("kt_redis_ping_seconds", "Last Redis ping latency."),
		}
		if log != nil {
			log.Info("Observability metrics enabled")
		}
	})
	return instance
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) APIInflight(delta float64) {
	if m == nil {
		return
	}
	m.apiInflight.Add(delta)
}

func (m *Metrics) ObserveJob(jobType, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.jobsFinished.Inc(jobType, status)
	m.jobDuration.Observe(dur.Seconds(), jobType, status)
}

func (m *Metrics) ObserveStage(stage string, failed bool, dur time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.stageDuration.Observe(dur.Seconds(), stage, status)
}

func (m *Metrics) AddFrames(n int) {
	if m == nil {
		return
	}
	m.framesTotal.Add(float64(n))
}

func (m *Metrics) ObserveCallback(ok bool) {
	if m == nil {
		return
	}
	outcome := "delivered"
	if !ok {
		outcome = "failed"
	}
	m.callbacks.Inc(outcome)
}

// WriteHTTP serves the text exposition.
func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []collector{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.jobsFinished, m.jobDuration, m.stageDuration,
		m.framesTotal, m.callbacks, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

// StartRedisCollector pings rdb on interval until ctx is done.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb goredis.UniversalClient, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil && ctx.Err() == nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
