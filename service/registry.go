// Package service keeps at most one running instance per service type and
// manages their lifecycle on behalf of the runtime.
package service

import (
	"context"
	"errors"
	"sync"

	"github.com/hupe1980/plugmesh/core"
	"github.com/hupe1980/plugmesh/logging"
)

// Registry is safe for concurrent use. A service type is reserved before its
// factory runs, so concurrent registrations of the same type start at most
// one instance.
type Registry struct {
	mu       sync.Mutex
	services map[string]core.Service
	pending  map[string]struct{}
	order    []string
	logger   logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}

	return &Registry{
		services: make(map[string]core.Service),
		pending:  make(map[string]struct{}),
		logger:   logger,
	}
}

// Register starts the described service and stores the running instance.
// Descriptors without a service type are ignored. A type that is already
// registered or starting is skipped with a warning.
func (r *Registry) Register(ctx context.Context, rt core.Runtime, d core.ServiceDescriptor) error {
	if d == nil || d.ServiceType() == "" {
		return nil
	}

	serviceType := d.ServiceType()

	r.mu.Lock()
	_, running := r.services[serviceType]
	_, starting := r.pending[serviceType]

	if running || starting {
		r.mu.Unlock()
		r.logger.Warn("service already registered, skipping", "service_type", serviceType)

		return nil
	}

	r.pending[serviceType] = struct{}{}
	r.mu.Unlock()

	svc, err := d.Start(ctx, rt)

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.pending, serviceType)

	if err != nil {
		return &core.HandlerError{Kind: "service", Name: serviceType, Err: err}
	}

	r.services[serviceType] = svc
	r.order = append(r.order, serviceType)

	r.logger.Debug("service registered", "service_type", serviceType)

	return nil
}

// Get returns the running instance for serviceType, or nil (logged as an
// error) when none is registered.
func (r *Registry) Get(serviceType string) core.Service {
	r.mu.Lock()
	svc, ok := r.services[serviceType]
	r.mu.Unlock()

	if !ok {
		r.logger.Error("service not found", "service_type", serviceType)
		return nil
	}

	return svc
}

// Types lists the registered service types in registration order.
func (r *Registry) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.order...)
}

// StopAll stops every service sequentially in registration order. Shutdown is
// best effort: a failing Stop does not prevent the remaining services from
// stopping. All failures are returned joined.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	order := r.order
	services := r.services
	r.order = nil
	r.services = make(map[string]core.Service)
	r.mu.Unlock()

	var errs []error

	for _, serviceType := range order {
		svc := services[serviceType]
		if svc == nil {
			continue
		}

		if err := svc.Stop(ctx); err != nil {
			r.logger.Error("failed to stop service", "service_type", serviceType, "error", err)
			errs = append(errs, &core.HandlerError{Kind: "service", Name: serviceType, Err: err})
		}
	}

	return errors.Join(errs...)
}
