package endure

import (
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// Registry is the process-wide table of services and their workflows. It
// owns the router the host HTTP server mounts. Mutations happen at startup;
// request serving only reads.
type Registry struct {
	mu       sync.RWMutex
	services map[string][]*Workflow
	order    []string
	router   *mux.Router
}

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// NewRegistry creates an empty registry with the discovery endpoint
// mounted.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.services = make(map[string][]*Workflow)
	r.order = nil
	r.router = mux.NewRouter()
	r.router.HandleFunc("/discover", r.discover).Methods(http.MethodGet)
}

// RegisterWorkflow adds a workflow under the given service, creating the
// service entry on first use, and mounts its execution route.
func (r *Registry) RegisterWorkflow(serviceName string, wf *Workflow) error {
	if strings.TrimSpace(serviceName) == "" {
		return fmt.Errorf("%w: service name must not be empty", ErrInvalidArgument)
	}
	if wf == nil {
		return fmt.Errorf("%w: workflow must be provided", ErrInvalidArgument)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	existing, known := r.services[serviceName]
	for _, other := range existing {
		if other.name == wf.name {
			return fmt.Errorf("%w: %s/%s", ErrDuplicateWorkflow, serviceName, wf.name)
		}
	}
	if !known {
		r.order = append(r.order, serviceName)
	}
	r.services[serviceName] = append(existing, wf)
	r.registerRoute(serviceName, wf)
	return nil
}

// registerRoute mounts POST /execute/{service}/{workflow}. Caller holds the
// lock.
func (r *Registry) registerRoute(serviceName string, wf *Workflow) {
	path := fmt.Sprintf("/execute/%s/%s", serviceName, wf.name)
	r.router.HandleFunc(path, wf.handler(serviceName)).Methods(http.MethodPost)
}

// Services returns a defensive copy of the registered workflows, keyed by
// service name. Workflow order within a service is registration order.
func (r *Registry) Services() map[string][]*Workflow {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]*Workflow, len(r.services))
	for name, workflows := range r.services {
		out[name] = append([]*Workflow(nil), workflows...)
	}
	return out
}

// ServiceNames returns the service names in registration order.
func (r *Registry) ServiceNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Router returns the routing table for mounting onto the host HTTP server.
func (r *Registry) Router() *mux.Router {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.router
}

// Handler returns the registry's HTTP surface: every execution route plus
// GET /discover.
func (r *Registry) Handler() http.Handler {
	return r.Router()
}

// Clear resets the registry. For tests only.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
}
