package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "swan"
	subsystem = "sdk"

	labelMethod   = "method"
	labelEndpoint = "endpoint"
	labelCode     = "code"
	labelKind     = "kind"
)

func counter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Name:      name,
		Help:      help,
		Namespace: namespace,
		Subsystem: subsystem,
	})
}

var (
	FilesUploaded        = counter("files_uploaded", "number of files uploaded to storage")
	FoldersCreated       = counter("folders_created", "number of folders created in storage")
	ManifestsPublished   = counter("manifests_published", "number of source manifests published")
	DeploymentsSubmitted = counter("deployments_submitted", "number of deployment requests accepted by the orchestrator")
	DeploymentsRejected  = counter("deployments_rejected", "number of deployment requests rejected before submission")

	apiRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "api_requests",
		Help:      "number of HTTP requests sent to remote services",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			labelMethod,
			labelEndpoint,
			labelCode,
		},
	)

	apiRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "api_request_duration_seconds",
		Help:      "latency of HTTP requests sent to remote services",
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   prometheus.DefBuckets,
	},
		[]string{
			labelMethod,
			labelEndpoint,
		},
	)

	operationErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "operation_errors",
		Help:      "number of failed SDK operations by error kind",
		Namespace: namespace,
		Subsystem: subsystem,
	},
		[]string{
			labelKind,
		},
	)
)

// APIRequest records one round trip. Use code 0 when no response was received.
func APIRequest(method, endpoint string, code int, elapsed time.Duration) {
	apiRequests.With(prometheus.Labels{
		labelMethod:   method,
		labelEndpoint: endpoint,
		labelCode:     strconv.Itoa(code),
	}).Inc()
	apiRequestDuration.With(prometheus.Labels{
		labelMethod:   method,
		labelEndpoint: endpoint,
	}).Observe(elapsed.Seconds())
}

func OperationError(kind string) {
	operationErrors.With(prometheus.Labels{labelKind: kind}).Inc()
}

func init() {
	prometheus.MustRegister(FilesUploaded)
	prometheus.MustRegister(FoldersCreated)
	prometheus.MustRegister(ManifestsPublished)
	prometheus.MustRegister(DeploymentsSubmitted)
	prometheus.MustRegister(DeploymentsRejected)
	prometheus.MustRegister(apiRequests)
	prometheus.MustRegister(apiRequestDuration)
	prometheus.MustRegister(operationErrors)
}

// WriteTextfile dumps the default registry in the node-exporter textfile format.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
