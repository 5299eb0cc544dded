package metrics

import "time"

// StoreMetrics observes the storage engine.
//
// Example usage:
//
//	st, err := store.New(store.Config{
//		DevicePath: "/dev/sda",
//		Metrics:    prometheus.NewStoreMetrics(),
//	})
type StoreMetrics interface {
	// ObserveOperation records one completed engine operation.
	//
	// Parameters:
	//   - operation: "upload", "download", "delete", "list", "echo", "reset"
	//   - duration: wall time including device open and lock
	//   - outcome: OutcomeOK or the store error code name (e.g. "NotFound")
	ObserveOperation(operation string, duration time.Duration, outcome string)

	// RecordBytes counts payload bytes moved to or from the device.
	RecordBytes(operation string, bytes uint64)

	// SetTableState publishes the occupied row count and the next allocation
	// offset after a table-changing operation.
	SetTableState(entries int, nextOffset uint64)
}

// ObserveStoreOperation records an engine operation if m is non-nil.
func ObserveStoreOperation(m StoreMetrics, operation string, duration time.Duration, outcome string) {
	if m != nil {
		m.ObserveOperation(operation, duration, outcome)
	}
}

// RecordStoreBytes records transferred bytes if m is non-nil.
func RecordStoreBytes(m StoreMetrics, operation string, bytes uint64) {
	if m != nil {
		m.RecordBytes(operation, bytes)
	}
}

// SetTableState publishes table occupancy if m is non-nil.
func SetTableState(m StoreMetrics, entries int, nextOffset uint64) {
	if m != nil {
		m.SetTableState(entries, nextOffset)
	}
}
