package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsSubmittedTotal, queueDepth) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "chat_jobs_processed_total",
		Help: "Total number of chat jobs processed, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsSubmittedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "chat_jobs_submitted_total",
		Help: "Total number of chat jobs accepted by POST /chat.",
	},
)

var queueDepth = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "chat_queue_depth",
		Help: "Jobs currently waiting in the input queue.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func IncSubmitted() { jobsSubmittedTotal.Inc() }

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }
