// Package agents implements the HTTP clients for the newsroom's collaborator
// services. Each client speaks the shared action envelope and satisfies one
// of the coordinator's collaborator interfaces.
package agents

import "sync"

// Endpoints holds the base URLs of the sibling agents
type Endpoints struct {
	ResearcherURL string
	ArchivistURL  string
	EditorURL     string
	PublisherURL  string
}

// Registry holds the current endpoints and supports atomic replacement when
// the configuration file changes. Clients read through the registry on every
// call, so a swap takes effect immediately.
type Registry struct {
	mu        sync.RWMutex
	endpoints Endpoints
}

// NewRegistry creates a registry with the given initial endpoints
func NewRegistry(endpoints Endpoints) *Registry {
	return &Registry{endpoints: endpoints}
}

// Swap replaces every endpoint at once
func (r *Registry) Swap(endpoints Endpoints) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints = endpoints
}

// Endpoints returns a snapshot of the current endpoints
func (r *Registry) Endpoints() Endpoints {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints
}
