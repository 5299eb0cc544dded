package metrics

import "time"

// BackupMetrics observes backup runs and the object operations behind them.
type BackupMetrics interface {
	// ObserveRun records a finished backup run.
	//
	// Parameters:
	//   - target: "dir" or "s3"
	//   - files: blobs copied in this run (unchanged blobs are not counted)
	//   - bytes: payload bytes copied
	//   - err: nil on success
	ObserveRun(target string, duration time.Duration, files int, bytes uint64, err error)

	// ObserveObject records one object write against the target.
	ObserveObject(target string, duration time.Duration, bytes uint64, err error)
}

// ObserveBackupRun records a run if m is non-nil.
func ObserveBackupRun(m BackupMetrics, target string, duration time.Duration, files int, bytes uint64, err error) {
	if m != nil {
		m.ObserveRun(target, duration, files, bytes, err)
	}
}

// ObserveBackupObject records an object write if m is non-nil.
func ObserveBackupObject(m BackupMetrics, target string, duration time.Duration, bytes uint64, err error) {
	if m != nil {
		m.ObserveObject(target, duration, bytes, err)
	}
}
