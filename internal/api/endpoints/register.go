package endpoints

import (
	"github.com/99minutos/admin-backend/internal/core/endpoint"
)

// Install registers every endpoint with the container and the invoker.
// The keys are the package names of the URL.
func Install(container *endpoint.Container, invoker *endpoint.Invoker, eps map[string]endpoint.Endpoint) {
	for pkg, ep := range eps {
		className := endpoint.ClassName(pkg)
		instance := ep
		container.Provide(className, func() (endpoint.Endpoint, error) { return instance, nil })
		invoker.Register(className)
	}
}
