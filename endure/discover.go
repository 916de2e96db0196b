package endure

import (
	"encoding/json"
	"net/http"
)

type discoveredWorkflow struct {
	Name          string     `json:"name"`
	Input         Descriptor `json:"input"`
	Output        Descriptor `json:"output"`
	IdemRetention int        `json:"idem_retention"`
}

type discoveredService struct {
	Name      string               `json:"name"`
	Workflows []discoveredWorkflow `json:"workflows"`
}

type discoveryDocument struct {
	Services []discoveredService `json:"services"`
}

// discover serves GET /discover: every registered service and workflow with
// its input/output descriptors, in registration order.
func (r *Registry) discover(w http.ResponseWriter, _ *http.Request) {
	r.mu.RLock()
	doc := discoveryDocument{Services: make([]discoveredService, 0, len(r.order))}
	for _, serviceName := range r.order {
		svc := discoveredService{Name: serviceName, Workflows: make([]discoveredWorkflow, 0, len(r.services[serviceName]))}
		for _, wf := range r.services[serviceName] {
			svc.Workflows = append(svc.Workflows, discoveredWorkflow{
				Name:          wf.name,
				Input:         wf.inputDesc,
				Output:        wf.outputDesc,
				IdemRetention: wf.retention,
			})
		}
		doc.Services = append(doc.Services, svc)
	}
	r.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(doc)
}
