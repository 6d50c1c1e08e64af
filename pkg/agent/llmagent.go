package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/clinicore/clinicore/pkg/model"
)

// capabilityPrompts are the default system prompts per capability.
var capabilityPrompts = map[Capability]string{
	CapabilityScheduling:       "You are a clinical scheduling assistant. Verify availability, resolve conflicts and propose concrete appointment slots.",
	CapabilityDocumentation:    "You are a clinical documentation assistant. Produce precise, structured notes and summaries from the provided context.",
	CapabilityTriage:           "You are a clinical triage assistant. Assess urgency, flag red-flag symptoms and recommend the appropriate care pathway.",
	CapabilityCommunication:    "You are a patient communication assistant. Draft clear, empathetic messages for patients and care teams.",
	CapabilityAdministrative:   "You are a healthcare administration assistant. Handle intake, insurance verification and record-keeping tasks.",
	CapabilityClinicalDecision: "You are a clinical decision support assistant. Reason over guidelines and patient context; always defer final decisions to clinicians.",
}

// LLMAgentConfig configures a capability-bound LLM agent.
type LLMAgentConfig struct {
	// ID of the agent. Defaults to the capability id.
	ID string `yaml:"id,omitempty"`

	// Capability the agent is bound to.
	Capability Capability `yaml:"capability"`

	// SystemPrompt overrides the built-in capability prompt.
	SystemPrompt string `yaml:"system_prompt,omitempty"`

	// MaxTokens caps each generation.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// ContributionConfidence is the confidence reported on collaboration
	// contributions, in [0,1].
	ContributionConfidence float64 `yaml:"contribution_confidence,omitempty"`
}

// SetDefaults applies default values.
func (c *LLMAgentConfig) SetDefaults() {
	if c.ID == "" {
		c.ID = string(c.Capability)
	}
	if c.SystemPrompt == "" {
		c.SystemPrompt = capabilityPrompts[c.Capability]
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 1024
	}
	if c.ContributionConfidence == 0 {
		c.ContributionConfidence = 0.75
	}
}

// Validate checks the configuration.
func (c *LLMAgentConfig) Validate() error {
	if !c.Capability.Valid() {
		return fmt.Errorf("unknown capability: %q", c.Capability)
	}
	if c.ContributionConfidence < 0 || c.ContributionConfidence > 1 {
		return fmt.Errorf("contribution_confidence must be in [0,1], got %f", c.ContributionConfidence)
	}
	return nil
}

// LLMAgent executes steps, tasks and collaboration contributions by prompting
// a language model with its capability-specific system prompt.
type LLMAgent struct {
	config LLMAgentConfig
	llm    model.LLM
	logger *slog.Logger
}

var _ Agent = (*LLMAgent)(nil)

// NewLLMAgent creates a capability-bound agent on top of the given model.
func NewLLMAgent(config LLMAgentConfig, llm model.LLM) (*LLMAgent, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid agent config: %w", err)
	}
	if llm == nil {
		return nil, fmt.Errorf("agent %q requires a model", config.ID)
	}
	return &LLMAgent{
		config: config,
		llm:    llm,
		logger: slog.Default().With("agent", config.ID),
	}, nil
}

// ID returns the agent identifier.
func (a *LLMAgent) ID() string { return a.config.ID }

// Capability returns the bound capability.
func (a *LLMAgent) Capability() Capability { return a.config.Capability }

// ExecuteStep runs one workflow step. Model failures come back as an
// unsuccessful StepResult so the caller can apply its required/optional
// policy; the error return is reserved for invariant violations.
func (a *LLMAgent) ExecuteStep(ctx context.Context, step Step, runContext map[string]any) (*StepResult, error) {
	if step.Name == "" {
		return nil, fmt.Errorf("step has no name")
	}
	started := time.Now()

	prompt := a.buildStepPrompt(step.Name, step.Parameters, runContext)
	text, err := a.generate(ctx, prompt)
	if err != nil {
		a.logger.Warn("step execution failed",
			"step", step.Name,
			"error", err)
		return &StepResult{
			StepName: step.Name,
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(started),
		}, nil
	}

	a.logger.Debug("step executed", "step", step.Name, "duration", time.Since(started))
	return &StepResult{
		StepName: step.Name,
		Success:  true,
		Output: map[string]any{
			step.Name + "_result": text,
		},
		Duration: time.Since(started),
	}, nil
}

// ExecuteTask runs one standalone planner task.
func (a *LLMAgent) ExecuteTask(ctx context.Context, task Task, runContext map[string]any) (*StepResult, error) {
	if task.Name == "" {
		return nil, fmt.Errorf("task has no name")
	}
	started := time.Now()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Task: %s\n", task.Name)
	if task.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", task.Description)
	}
	writeParams(&sb, task.Parameters)
	writeRunContext(&sb, runContext)
	sb.WriteString("\nComplete the task and report the result.")

	text, err := a.generate(ctx, sb.String())
	if err != nil {
		return &StepResult{
			StepName: task.Name,
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(started),
		}, nil
	}
	return &StepResult{
		StepName: task.Name,
		Success:  true,
		Output: map[string]any{
			task.Name + "_result": text,
		},
		Duration: time.Since(started),
	}, nil
}

// ContributeToCollaboration produces this agent's contribution toward the
// goal and records it in the shared workspace under the agent id.
func (a *LLMAgent) ContributeToCollaboration(ctx context.Context, goal string, workspace *Workspace) (*Contribution, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Shared goal: %s\n\n", goal)
	fmt.Fprintf(&sb, "Current workspace:\n%s\n\n", workspace.Snapshot())
	fmt.Fprintf(&sb, "Contribute your %s perspective. Build on what is already there; do not repeat it.", a.config.Capability)

	text, err := a.generate(ctx, sb.String())
	if err != nil {
		return nil, fmt.Errorf("agent %s contribution failed: %w", a.config.ID, err)
	}

	workspace.Put(a.config.ID, text)
	return &Contribution{
		AgentID:    a.config.ID,
		Text:       text,
		Confidence: a.config.ContributionConfidence,
		Timestamp:  time.Now(),
	}, nil
}

func (a *LLMAgent) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := a.llm.Generate(ctx, &model.Request{
		SystemPrompt: a.config.SystemPrompt,
		UserPrompt:   prompt,
		Config:       model.Deterministic(a.config.MaxTokens),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

func (a *LLMAgent) buildStepPrompt(name string, params, runContext map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Step: %s\n", name)
	writeParams(&sb, params)
	writeRunContext(&sb, runContext)
	sb.WriteString("\nExecute the step and report the result.")
	return sb.String()
}

func writeParams(sb *strings.Builder, params map[string]any) {
	if len(params) == 0 {
		return
	}
	sb.WriteString("Parameters:\n")
	for _, key := range sortedKeys(params) {
		fmt.Fprintf(sb, "  %s: %v\n", key, params[key])
	}
}

func writeRunContext(sb *strings.Builder, runContext map[string]any) {
	if len(runContext) == 0 {
		return
	}
	sb.WriteString("Accumulated context:\n")
	for _, key := range sortedKeys(runContext) {
		fmt.Fprintf(sb, "  %s: %v\n", key, runContext[key])
	}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
