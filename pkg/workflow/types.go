// Package workflow executes fixed, ordered step templates against the agent
// registry. Templates are immutable and defined at build time; a run is one
// execution of a template against live inputs.
package workflow

import (
	"fmt"
	"time"

	"github.com/clinicore/clinicore/pkg/agent"
)

// Type names a built-in workflow template.
type Type string

const (
	TypePatientAdmission      Type = "PatientAdmission"
	TypeAppointmentScheduling Type = "AppointmentScheduling"
	TypeClinicalDocumentation Type = "ClinicalDocumentation"
	TypeDischargeProcess      Type = "DischargeProcess"
	TypeEmergencyTriage       Type = "EmergencyTriage"
)

// SuccessPolicy selects how a run's success is computed.
type SuccessPolicy string

const (
	// SuccessExecutedStepsOnly evaluates success only over steps that
	// actually executed. A run aborted after its first required step still
	// counts as failed because that step failed, but a run whose later
	// steps never ran is not penalized for them.
	SuccessExecutedStepsOnly SuccessPolicy = "executed_steps_only"

	// SuccessAllSteps additionally requires that every template step ran.
	SuccessAllSteps SuccessPolicy = "all_steps"
)

// Template is a fixed, ordered list of capability-bound steps.
type Template struct {
	// Type is the template identifier used to invoke it.
	Type Type `json:"type"`

	// Description of what the workflow accomplishes.
	Description string `json:"description"`

	// Steps in strict execution order. Step names are unique per template.
	Steps []agent.Step `json:"steps"`
}

// Capabilities returns the distinct capabilities the template's steps use.
func (t *Template) Capabilities() []agent.Capability {
	seen := make(map[agent.Capability]bool)
	var capabilities []agent.Capability
	for _, step := range t.Steps {
		if !seen[step.Capability] {
			seen[step.Capability] = true
			capabilities = append(capabilities, step.Capability)
		}
	}
	return capabilities
}

// Run records one execution of a template.
type Run struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Type of the executed template.
	Type Type `json:"type"`

	// Results holds one StepResult per executed step, in execution order.
	// Steps skipped after a required failure produce no result.
	Results []agent.StepResult `json:"results"`

	// Intermediate holds each executed step's output keyed by step name.
	Intermediate map[string]any `json:"intermediate,omitempty"`

	// Success per the engine's configured policy.
	Success bool `json:"success"`

	// StartedAt and CompletedAt bound the run.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// Duration returns the wall time the run took.
func (r *Run) Duration() time.Duration {
	return r.CompletedAt.Sub(r.StartedAt)
}

// UnknownWorkflowTypeError indicates the requested type matches no template.
type UnknownWorkflowTypeError struct {
	Type Type
}

func (e *UnknownWorkflowTypeError) Error() string {
	return fmt.Sprintf("unknown workflow type: %q", e.Type)
}
