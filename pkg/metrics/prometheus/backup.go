package prometheus

import (
	"time"

	"github.com/marmos91/distfs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// backupMetrics is the Prometheus implementation of metrics.BackupMetrics.
type backupMetrics struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	filesCopied     *prometheus.CounterVec
	bytesCopied     *prometheus.CounterVec
	objectsTotal    *prometheus.CounterVec
	objectDuration  *prometheus.HistogramVec
	lastSuccessTime *prometheus.GaugeVec
}

// NewBackupMetrics creates a Prometheus-backed BackupMetrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBackupMetrics() metrics.BackupMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &backupMetrics{
		runsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_backup_runs_total",
				Help: "Total number of backup runs by target and status",
			},
			[]string{"target", "status"},
		),
		runDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "distfs_backup_run_duration_milliseconds",
				Help: "Duration of backup runs in milliseconds",
				Buckets: []float64{
					10,     // 10ms - nothing changed
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					60000,  // 1m
					600000, // 10m - full copy to a remote bucket
				},
			},
			[]string{"target"},
		),
		filesCopied: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_backup_files_total",
				Help: "Blobs copied to backup targets",
			},
			[]string{"target"},
		),
		bytesCopied: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_backup_bytes_total",
				Help: "Payload bytes copied to backup targets",
			},
			[]string{"target"},
		),
		objectsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "distfs_backup_object_writes_total",
				Help: "Object writes against backup targets by status",
			},
			[]string{"target", "status"},
		),
		objectDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "distfs_backup_object_duration_milliseconds",
				Help: "Duration of a single object write in milliseconds",
				Buckets: []float64{
					1,     // local directory
					10,    // 10ms
					50,    // 50ms - small objects
					100,   // 100ms
					500,   // 500ms
					1000,  // 1s
					5000,  // 5s - large objects
					30000, // 30s
				},
			},
			[]string{"target"},
		),
		lastSuccessTime: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "distfs_backup_last_success_timestamp_seconds",
				Help: "Unix time of the last successful backup run",
			},
			[]string{"target"},
		),
	}
}

func (m *backupMetrics) ObserveRun(target string, duration time.Duration, files int, bytes uint64, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.runsTotal.WithLabelValues(target, status).Inc()
	m.runDuration.WithLabelValues(target).Observe(duration.Seconds() * 1000)
	if files > 0 {
		m.filesCopied.WithLabelValues(target).Add(float64(files))
	}
	if bytes > 0 {
		m.bytesCopied.WithLabelValues(target).Add(float64(bytes))
	}
	if err == nil {
		m.lastSuccessTime.WithLabelValues(target).SetToCurrentTime()
	}
}

func (m *backupMetrics) ObserveObject(target string, duration time.Duration, bytes uint64, err error) {
	if m == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
	}

	m.objectsTotal.WithLabelValues(target, status).Inc()
	m.objectDuration.WithLabelValues(target).Observe(duration.Seconds() * 1000)
}
