package metrics

import (
    "net/http"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    jobsSubmitted = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "ocrpipeline",
            Name:      "jobs_submitted_total",
            Help:      "Total OCR jobs submitted by model",
        },
        []string{"model"},
    )

    jobsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "ocrpipeline",
            Name:      "jobs_processed_total",
            Help:      "Total OCR jobs processed by model and result (success, failure)",
        },
        []string{"model", "result"},
    )

    predictLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "ocrpipeline",
            Name:      "predict_duration_seconds",
            Help:      "Duration of model predict calls by model",
            Buckets:   prometheus.DefBuckets,
        },
        []string{"model"},
    )

    modelLoads = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "ocrpipeline",
            Name:      "model_loads_total",
            Help:      "Model load operations by model and result",
        },
        []string{"model", "result"},
    )

    queueDepth = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "ocrpipeline",
            Name:      "queue_depth",
            Help:      "Pending entries on the inference stream",
        },
    )
)

// Init registers collectors.
func Init() {
    prometheus.MustRegister(jobsSubmitted, jobsProcessed, predictLatency, modelLoads, queueDepth)
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func IncSubmitted(model string) { jobsSubmitted.WithLabelValues(model).Inc() }

func IncProcessed(model, result string) { jobsProcessed.WithLabelValues(model, result).Inc() }

func ObservePredict(model string, dur time.Duration) {
    predictLatency.WithLabelValues(model).Observe(dur.Seconds())
}

func IncModelLoad(model, result string) { modelLoads.WithLabelValues(model, result).Inc() }

func SetQueueDepth(v int64) { queueDepth.Set(float64(v)) }
