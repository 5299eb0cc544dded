package telemetry

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// contention sampling rate used when mutex or block profiles are requested
const contentionRate = 5

var profileTypes = map[string]pyroscope.ProfileType{
	"cpu":            pyroscope.ProfileCPU,
	"alloc_objects":  pyroscope.ProfileAllocObjects,
	"alloc_space":    pyroscope.ProfileAllocSpace,
	"inuse_objects":  pyroscope.ProfileInuseObjects,
	"inuse_space":    pyroscope.ProfileInuseSpace,
	"goroutines":     pyroscope.ProfileGoroutines,
	"mutex_count":    pyroscope.ProfileMutexCount,
	"mutex_duration": pyroscope.ProfileMutexDuration,
	"block_count":    pyroscope.ProfileBlockCount,
	"block_duration": pyroscope.ProfileBlockDuration,
}

// parseProfileTypes resolves names and turns on the runtime sampling that
// mutex and block profiles depend on.
func parseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	out := make([]pyroscope.ProfileType, 0, len(names))
	for _, name := range names {
		pt, ok := profileTypes[name]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		switch {
		case strings.HasPrefix(name, "mutex_"):
			runtime.SetMutexProfileFraction(contentionRate)
		case strings.HasPrefix(name, "block_"):
			runtime.SetBlockProfileRate(contentionRate)
		}
		out = append(out, pt)
	}
	return out, nil
}

func startProfiling(cfg Config) (ShutdownFunc, error) {
	types, err := parseProfileTypes(cfg.Profiling.ProfileTypes)
	if err != nil {
		return nil, err
	}

	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: serviceName,
		ServerAddress:   cfg.Profiling.Endpoint,
		Tags: map[string]string{
			"version": cfg.Version,
			"device":  cfg.Device,
		},
		ProfileTypes: types,
	})
	if err != nil {
		return nil, fmt.Errorf("start profiler for %s: %w", cfg.Profiling.Endpoint, err)
	}
	return func(context.Context) error { return p.Stop() }, nil
}
