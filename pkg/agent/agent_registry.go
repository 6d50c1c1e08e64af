package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/clinicore/clinicore/pkg/registry"
)

// Registry holds the live agents keyed by capability. One agent per
// capability; re-registering a capability replaces the previous binding.
type Registry struct {
	agents *registry.BaseRegistry[Agent]
	logger *slog.Logger
}

// NewRegistry creates an empty agent registry.
func NewRegistry() *Registry {
	return &Registry{
		agents: registry.NewBaseRegistry[Agent](),
		logger: slog.Default().With("component", "agent_registry"),
	}
}

// Register binds an agent to its capability, replacing any previous binding.
func (r *Registry) Register(a Agent) error {
	if a == nil {
		return fmt.Errorf("cannot register nil agent")
	}
	if !a.Capability().Valid() {
		return fmt.Errorf("agent %q has unknown capability %q", a.ID(), a.Capability())
	}
	if err := r.agents.Replace(string(a.Capability()), a); err != nil {
		return err
	}
	r.logger.Debug("agent registered", "id", a.ID(), "capability", a.Capability())
	return nil
}

// Resolve returns the agent bound to the capability.
func (r *Registry) Resolve(capability Capability) (Agent, error) {
	a, ok := r.agents.Get(string(capability))
	if !ok {
		return nil, &NotFoundError{Capability: capability}
	}
	return a, nil
}

// Capabilities returns the bound capabilities in sorted order.
func (r *Registry) Capabilities() []Capability {
	names := r.agents.Names()
	capabilities := make([]Capability, len(names))
	for i, name := range names {
		capabilities[i] = Capability(name)
	}
	return capabilities
}

// Count returns the number of bound agents.
func (r *Registry) Count() int {
	return r.agents.Count()
}

// ValidateBindings checks that every listed capability has an agent.
// Call it at startup with the capabilities the configured templates use.
func (r *Registry) ValidateBindings(required []Capability) error {
	for _, capability := range required {
		if _, err := r.Resolve(capability); err != nil {
			return fmt.Errorf("startup validation: %w", err)
		}
	}
	return nil
}

// ExecuteTask dispatches a standalone task to the agent bound to its
// capability. Resolution and execution failures both come back as an
// unsuccessful StepResult; the caller never has to branch on an error.
func (r *Registry) ExecuteTask(ctx context.Context, task Task, runContext map[string]any) *StepResult {
	a, err := r.Resolve(task.Capability)
	if err != nil {
		r.logger.Warn("task dispatch failed", "task", task.Name, "capability", task.Capability, "error", err)
		return &StepResult{
			StepName: task.Name,
			Success:  false,
			Error:    err.Error(),
		}
	}

	result, err := a.ExecuteTask(ctx, task, runContext)
	if err != nil {
		return &StepResult{
			StepName: task.Name,
			Success:  false,
			Error:    err.Error(),
		}
	}
	return result
}
