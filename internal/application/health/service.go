package health

import (
	"context"
	"time"

	corehealth "gestaoplus/ms_nfse_core/internal/core/health"
)

// Metadata contains immutable metadata about the running service.
type Metadata struct {
	Service     string
	Version     string
	Environment string
}

// Pinger checks one external dependency, e.g. the database pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Service exposes health-check use cases to adapters.
type Service struct {
	meta      Metadata
	startedAt time.Time
	deps      map[string]Pinger
}

func NewService(meta Metadata) *Service {
	return &Service{
		meta:      meta,
		startedAt: time.Now().UTC(),
		deps:      make(map[string]Pinger),
	}
}

// WithDependency registers a named dependency to probe on each status
// call.
func (s *Service) WithDependency(name string, p Pinger) *Service {
	s.deps[name] = p
	return s
}

// Status returns the current availability snapshot. Any failing
// dependency degrades the overall status.
func (s *Service) Status(ctx context.Context) corehealth.Status {
	uptime := time.Since(s.startedAt)
	status := corehealth.Status{
		Service:     s.meta.Service,
		Version:     s.meta.Version,
		Environment: s.meta.Environment,
		Status:      "UP",
		StartedAt:   s.startedAt,
		Uptime:      uptime.String(),
		UptimeSecs:  int64(uptime.Seconds()),
	}

	if len(s.deps) == 0 {
		return status
	}

	status.Dependencies = make(map[string]string, len(s.deps))
	for name, dep := range s.deps {
		if err := dep.Ping(ctx); err != nil {
			status.Dependencies[name] = "down: " + err.Error()
			status.Status = "DEGRADED"
			continue
		}
		status.Dependencies[name] = "up"
	}

	return status
}
