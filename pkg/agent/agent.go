// Package agent defines the capability-bound agent contract shared by the
// workflow engine, the collaboration coordinator and the task planner.
//
// Concrete agents are swappable implementations of one interface; the
// capability set is closed and validated at startup so a template referencing
// an unbound capability fails fast instead of at dispatch time.
package agent

import (
	"context"
	"time"
)

// Capability identifies the kind of work an agent performs.
type Capability string

const (
	CapabilityScheduling       Capability = "scheduling"
	CapabilityDocumentation    Capability = "documentation"
	CapabilityTriage           Capability = "triage"
	CapabilityCommunication    Capability = "communication"
	CapabilityAdministrative   Capability = "administrative"
	CapabilityClinicalDecision Capability = "clinical_decision"
)

// Capabilities returns the closed capability set.
func Capabilities() []Capability {
	return []Capability{
		CapabilityScheduling,
		CapabilityDocumentation,
		CapabilityTriage,
		CapabilityCommunication,
		CapabilityAdministrative,
		CapabilityClinicalDecision,
	}
}

// Valid reports whether the capability belongs to the closed set.
func (c Capability) Valid() bool {
	for _, known := range Capabilities() {
		if c == known {
			return true
		}
	}
	return false
}

// Step is one unit of work inside a workflow template, bound to a capability.
type Step struct {
	// Name identifies the step within its template (unique per template).
	Name string `json:"name"`

	// Capability selects the agent that executes the step.
	Capability Capability `json:"capability"`

	// Required steps abort the run when they fail; optional steps record
	// their failure and let the run continue.
	Required bool `json:"required"`

	// Parameters are template-fixed inputs for the step.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// Task is a planner-produced unit of work. Dependencies are advisory only;
// nothing schedules by them.
type Task struct {
	// ID uniquely identifies the task.
	ID string `json:"id"`

	// Name is a short task label.
	Name string `json:"name"`

	// Description says what the task should accomplish.
	Description string `json:"description"`

	// Capability selects the agent suited to the task.
	Capability Capability `json:"capability"`

	// Dependencies lists names of tasks this one builds on (informational).
	Dependencies []string `json:"dependencies,omitempty"`

	// EstimatedDuration is the planner's guess, not a deadline.
	EstimatedDuration time.Duration `json:"estimated_duration,omitempty"`

	// Parameters are free-form task inputs.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// StepResult records the outcome of one executed step or task.
//
// Failures are data: an unsuccessful result carries the error message and
// does not surface as a Go error unless infrastructure itself broke.
type StepResult struct {
	// StepName of the step or task that produced this result.
	StepName string `json:"step_name"`

	// Success indicates whether the step completed.
	Success bool `json:"success"`

	// Output holds the step's produced values, merged into the run context.
	Output map[string]any `json:"output,omitempty"`

	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`

	// Duration of the execution.
	Duration time.Duration `json:"duration"`
}

// Contribution is one agent's input to a collaboration.
type Contribution struct {
	// AgentID of the contributor.
	AgentID string `json:"agent_id"`

	// Text of the contribution.
	Text string `json:"text"`

	// Confidence the agent assigns to its own contribution, in [0,1].
	Confidence float64 `json:"confidence"`

	// Timestamp of when the contribution was produced.
	Timestamp time.Time `json:"timestamp"`
}

// Agent is the shared contract every capability implementation satisfies.
type Agent interface {
	// ID returns the agent identifier (defaults to its capability id).
	ID() string

	// Capability returns the capability this agent is bound to.
	Capability() Capability

	// ExecuteStep runs one workflow step against the accumulated run
	// context. Step-level failures come back as an unsuccessful
	// StepResult, not an error.
	ExecuteStep(ctx context.Context, step Step, runContext map[string]any) (*StepResult, error)

	// ExecuteTask runs one standalone planner task.
	ExecuteTask(ctx context.Context, task Task, runContext map[string]any) (*StepResult, error)

	// ContributeToCollaboration produces this agent's input toward a shared
	// goal. The workspace is visible to all participants for the duration
	// of the coordination call.
	ContributeToCollaboration(ctx context.Context, goal string, workspace *Workspace) (*Contribution, error)
}
