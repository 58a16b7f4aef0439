package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder 生成任务与课表编辑的指标记录接口
type Recorder interface {
	JobStarted()
	JobFinished(status string, elapsed time.Duration, unsatisfied int)
	EntryUpdate(result string)
}

// NopRecorder 指标关闭时使用
type NopRecorder struct{}

func (NopRecorder) JobStarted()                            {}
func (NopRecorder) JobFinished(string, time.Duration, int) {}
func (NopRecorder) EntryUpdate(string)                     {}

// PromRecorder 基于 Prometheus 的 Recorder 实现
type PromRecorder struct {
	jobs        *prometheus.CounterVec
	duration    prometheus.Histogram
	unsatisfied prometheus.Counter
	inFlight    prometheus.Gauge
	entryEdits  *prometheus.CounterVec
}

// NewPromRecorder 在 reg 上注册指标；reg 为 nil 时使用默认注册表
// 指标已注册时复用已有的 collector
func NewPromRecorder(reg prometheus.Registerer) (*PromRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	jobs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_jobs_total",
		Help: "Finished generation jobs by final status",
	}, []string{"status"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "timetable_generation_duration_seconds",
		Help:    "Wall time of generation jobs from start to finish",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	unsatisfied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "timetable_unsatisfied_units_total",
		Help: "Curriculum units that could not be placed",
	})
	inFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "timetable_jobs_in_flight",
		Help: "Generation jobs currently running",
	})
	entryEdits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "timetable_entry_updates_total",
		Help: "Manual timetable entry edits by result",
	}, []string{"result"})

	var err error
	if jobs, err = register(reg, jobs); err != nil {
		return nil, err
	}
	if duration, err = register(reg, duration); err != nil {
		return nil, err
	}
	if unsatisfied, err = register(reg, unsatisfied); err != nil {
		return nil, err
	}
	if inFlight, err = register(reg, inFlight); err != nil {
		return nil, err
	}
	if entryEdits, err = register(reg, entryEdits); err != nil {
		return nil, err
	}

	return &PromRecorder{
		jobs:        jobs,
		duration:    duration,
		unsatisfied: unsatisfied,
		inFlight:    inFlight,
		entryEdits:  entryEdits,
	}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (r *PromRecorder) JobStarted() {
	r.inFlight.Inc()
}

// JobFinished 只对执行过的任务调用，排队中被取消的任务 elapsed 为 0 且不减在途数
func (r *PromRecorder) JobFinished(status string, elapsed time.Duration, unsatisfied int) {
	r.jobs.WithLabelValues(status).Inc()
	if elapsed > 0 {
		r.inFlight.Dec()
		r.duration.Observe(elapsed.Seconds())
	}
	if unsatisfied > 0 {
		r.unsatisfied.Add(float64(unsatisfied))
	}
}

func (r *PromRecorder) EntryUpdate(result string) {
	r.entryEdits.WithLabelValues(result).Inc()
}

// Handler 暴露 gatherer 中的指标；gatherer 为 nil 时使用默认注册表
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
