package middleware

import (
	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"

	"github.com/duynhne/learning-platform/config"
)

// InitProfiling starts Pyroscope continuous profiling and returns its stop function.
func InitProfiling(cfg config.ProfilingConfig, info ServiceInfo, logger *zap.Logger) (func(), error) {
	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: info.Name,
		ServerAddress:   cfg.Endpoint,
		Tags: map[string]string{
			"service":   info.Name,
			"namespace": info.Namespace,
			"version":   info.Version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
			pyroscope.ProfileGoroutines,
		},
		Logger: zapPyroscopeLogger{logger.Sugar()},
	})
	if err != nil {
		return func() {}, err
	}

	return func() { _ = profiler.Stop() }, nil
}

// zapPyroscopeLogger routes pyroscope's internal logging through zap.
type zapPyroscopeLogger struct {
	s *zap.SugaredLogger
}

func (l zapPyroscopeLogger) Infof(format string, args ...any)  { l.s.Debugf(format, args...) }
func (l zapPyroscopeLogger) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l zapPyroscopeLogger) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
