package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/coaching-scheduler/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// a deterministic clock.
type ServiceFactory struct {
	Clock *Clock
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory whose clock starts at ReferenceTime.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{Clock: NewClock(referenceTime)}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(referenceTime)
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// ScheduleServiceDeps captures dependencies for constructing a schedule service.
type ScheduleServiceDeps struct {
	Schedules application.ScheduleRepository
	Now       func() time.Time
	Logger    *slog.Logger
}

// NewScheduleService builds a schedule service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewScheduleService(deps ScheduleServiceDeps) *application.ScheduleService {
	now := deps.Now
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return application.NewScheduleServiceWithLogger(deps.Schedules, now, deps.Logger)
}
