package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/pkg/agent"
)

// EngineConfig configures the workflow engine.
type EngineConfig struct {
	// SuccessPolicy selects the success predicate. Defaults to
	// SuccessExecutedStepsOnly.
	SuccessPolicy SuccessPolicy `yaml:"success_policy,omitempty"`
}

// SetDefaults applies default values.
func (c *EngineConfig) SetDefaults() {
	if c.SuccessPolicy == "" {
		c.SuccessPolicy = SuccessExecutedStepsOnly
	}
}

// Validate checks the configuration.
func (c *EngineConfig) Validate() error {
	switch c.SuccessPolicy {
	case SuccessExecutedStepsOnly, SuccessAllSteps:
		return nil
	default:
		return fmt.Errorf("unknown success policy: %q", c.SuccessPolicy)
	}
}

// Engine executes built-in templates sequentially against the agent
// registry. It holds no durable state of its own; the optional checkpointer
// persists run progress after each step.
type Engine struct {
	config       EngineConfig
	templates    map[Type]*Template
	agents       *agent.Registry
	checkpointer Checkpointer
	logger       *slog.Logger
}

// NewEngine creates an engine over the built-in templates and validates at
// startup that every capability the templates reference has a bound agent.
func NewEngine(config EngineConfig, agents *agent.Registry, checkpointer Checkpointer) (*Engine, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if agents == nil {
		return nil, fmt.Errorf("engine requires an agent registry")
	}
	if checkpointer == nil {
		checkpointer = NilCheckpointer{}
	}

	templates := Templates()
	if err := agents.ValidateBindings(TemplateCapabilities(templates)); err != nil {
		return nil, err
	}

	return &Engine{
		config:       config,
		templates:    templates,
		agents:       agents,
		checkpointer: checkpointer,
		logger:       slog.Default().With("component", "workflow_engine"),
	}, nil
}

// Templates returns the engine's templates keyed by type.
func (e *Engine) Templates() map[Type]*Template {
	return e.templates
}

// Execute runs the named template against the input context.
//
// Steps execute strictly in template order. Each executed step appends a
// StepResult and merges its output into the accumulated context; when a
// required step fails the run aborts and skipped steps produce no result.
// Step failures are data inside the returned Run; the error return is
// reserved for an unknown workflow type and for an unresolvable capability,
// which startup binding validation makes unreachable in normal operation.
func (e *Engine) Execute(ctx context.Context, workflowType Type, inputContext map[string]any) (*Run, error) {
	template, ok := e.templates[workflowType]
	if !ok {
		return nil, &UnknownWorkflowTypeError{Type: workflowType}
	}

	run := &Run{
		ID:           uuid.NewString(),
		Type:         workflowType,
		Intermediate: make(map[string]any),
		StartedAt:    time.Now(),
	}
	e.logger.Info("workflow started", "run_id", run.ID, "type", workflowType, "steps", len(template.Steps))
	e.checkpoint(ctx, run)

	runContext := make(map[string]any, len(inputContext))
	for key, value := range inputContext {
		runContext[key] = value
	}

	for _, step := range template.Steps {
		stepAgent, err := e.agents.Resolve(step.Capability)
		if err != nil {
			run.CompletedAt = time.Now()
			return nil, fmt.Errorf("run %s step %q: %w", run.ID, step.Name, err)
		}

		result, err := stepAgent.ExecuteStep(ctx, step, runContext)
		if err != nil {
			result = &agent.StepResult{
				StepName: step.Name,
				Success:  false,
				Error:    err.Error(),
			}
		}
		run.Results = append(run.Results, *result)
		e.checkpointStep(ctx, run.ID, result)

		if result.Success {
			run.Intermediate[step.Name] = result.Output
			for key, value := range result.Output {
				runContext[key] = value
			}
			continue
		}

		e.logger.Warn("step failed",
			"run_id", run.ID,
			"step", step.Name,
			"required", step.Required,
			"error", result.Error)
		if step.Required {
			break
		}
	}

	run.Success = e.evaluateSuccess(template, run)
	run.CompletedAt = time.Now()
	e.checkpoint(ctx, run)
	e.logger.Info("workflow finished",
		"run_id", run.ID,
		"type", workflowType,
		"success", run.Success,
		"executed_steps", len(run.Results),
		"duration", run.Duration())
	return run, nil
}

func (e *Engine) evaluateSuccess(template *Template, run *Run) bool {
	for i, result := range run.Results {
		if !result.Success && template.Steps[i].Required {
			return false
		}
	}
	if e.config.SuccessPolicy == SuccessAllSteps && len(run.Results) != len(template.Steps) {
		return false
	}
	return true
}

func (e *Engine) checkpoint(ctx context.Context, run *Run) {
	if err := e.checkpointer.SaveRun(ctx, run); err != nil {
		e.logger.Warn("checkpoint failed", "run_id", run.ID, "error", err)
	}
}

func (e *Engine) checkpointStep(ctx context.Context, runID string, result *agent.StepResult) {
	if err := e.checkpointer.SaveStepResult(ctx, runID, result); err != nil {
		e.logger.Warn("step checkpoint failed", "run_id", runID, "step", result.StepName, "error", err)
	}
}
