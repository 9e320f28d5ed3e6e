// Package version tracks the application version and the modules in use.
package version

import (
	"fmt"
	"strings"
	"sync"

	"github.com/cadence-media/cadence/constant"
	"github.com/samber/lo"
)

// Registry records which modules of the application are in use, in registration order.
type Registry struct {
	mu      sync.Mutex
	modules []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds name unless it is already registered, and reports whether it was added.
func (r *Registry) Register(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if lo.Contains(r.modules, name) {
		return false
	}
	r.modules = append(r.modules, name)
	return true
}

// Modules returns the registered module names.
func (r *Registry) Modules() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.modules...)
}

// String returns the application name and version followed by the registered modules.
func (r *Registry) String() string {
	modules := r.Modules()
	if len(modules) == 0 {
		return fmt.Sprintf("%s/%s", constant.App, constant.Version)
	}
	return fmt.Sprintf("%s/%s (%s)", constant.App, constant.Version, strings.Join(modules, ", "))
}
