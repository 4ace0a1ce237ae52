package cmd

import (
	"context"
	"time"

	"aegisrt/internal/catalog"
	"aegisrt/internal/registry"
)

// stubService is the placeholder instance constructed for every
// catalog entry when no concrete factory has been wired in by an
// embedding application. It carries no behaviour of its own; it only
// demonstrates the registry's optional ShutdownHook contract by
// honoring the service's configured graceful shutdown budget.
type stubService struct {
	name            string
	shutdownSeconds int
}

func (s *stubService) Shutdown(ctx context.Context) error {
	budget := time.Duration(s.shutdownSeconds) * time.Second
	if budget <= 0 {
		return nil
	}
	select {
	case <-time.After(budget / 4):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// defaultFactoryProvider builds a stubService for every catalog entry.
// It stands in for the concrete business-logic factories a real
// deployment would register through engine.FactoryProvider.
func defaultFactoryProvider(svc catalog.ServiceConfig) registry.Factory {
	return func(ctx context.Context) (any, error) {
		return &stubService{name: svc.Name, shutdownSeconds: svc.GracefulShutdownSeconds}, nil
	}
}
