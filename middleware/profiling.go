package middleware

import (
	"errors"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/papayapulse/pulse-api/config"
)

// Sampling rates for the block and mutex profiles; both stay empty at rate 0.
const (
	mutexProfileFraction = 5
	blockProfileRate     = 5
)

var profiler *pyroscope.Profiler

// InitProfiling starts the Pyroscope agent when profiling is enabled.
// Handlers spend most of their time waiting on inference services and
// Postgres, so goroutine and contention profiles are pushed next to CPU and heap.
func InitProfiling(cfg *config.Config) error {
	if !cfg.Profiling.Enabled {
		return nil
	}
	if cfg.Profiling.Endpoint == "" {
		return errors.New("PYROSCOPE_ENDPOINT is required when profiling is enabled")
	}

	runtime.SetMutexProfileFraction(mutexProfileFraction)
	runtime.SetBlockProfileRate(blockProfileRate)

	name, namespace := detectServiceInfo(cfg.Profiling.ServiceName)
	p, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: name,
		ServerAddress:   cfg.Profiling.Endpoint,
		Tags: map[string]string{
			"service":   name,
			"namespace": namespace,
			"env":       cfg.Service.Env,
			"version":   cfg.Service.Version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
			pyroscope.ProfileBlockDuration,
			pyroscope.ProfileMutexDuration,
		},
	})
	if err != nil {
		return err
	}
	profiler = p
	return nil
}

// StopProfiling flushes and stops the agent. Safe to call when profiling is off.
func StopProfiling() {
	if profiler == nil {
		return
	}
	_ = profiler.Stop()
	profiler = nil
}
