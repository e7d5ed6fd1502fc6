package core

import "context"

// Service is a running long-lived capability.
type Service interface {
	Stop(ctx context.Context) error
}

// ServiceDescriptor describes a service type and how to start it.
type ServiceDescriptor interface {
	// ServiceType is the singleton key. An empty type disables registration.
	ServiceType() string
	Start(ctx context.Context, rt Runtime) (Service, error)
}

// StartFunc starts a service instance.
type StartFunc func(ctx context.Context, rt Runtime) (Service, error)

type serviceDescriptor struct {
	serviceType string
	start       StartFunc
}

// NewServiceDescriptor builds a ServiceDescriptor from a start function.
func NewServiceDescriptor(serviceType string, start StartFunc) ServiceDescriptor {
	return &serviceDescriptor{serviceType: serviceType, start: start}
}

func (d *serviceDescriptor) ServiceType() string { return d.serviceType }

func (d *serviceDescriptor) Start(ctx context.Context, rt Runtime) (Service, error) {
	return d.start(ctx, rt)
}
