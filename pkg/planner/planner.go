// Package planner decomposes a free-form goal into capability-bound tasks by
// prompting a language model for a structured JSON plan.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/clinicore/pkg/agent"
	"github.com/clinicore/clinicore/pkg/model"
)

const plannerSystemPrompt = `You are a healthcare operations planner. Decompose the goal into a short list of concrete tasks.

Respond with a JSON array only, no prose. Each element:
{
  "name": "short_snake_case_name",
  "description": "what the task accomplishes",
  "capability": "one of the listed capabilities",
  "dependencies": ["names of earlier tasks this builds on"],
  "estimated_minutes": 15
}`

// Config configures the planner.
type Config struct {
	// MaxTokens caps each planning generation.
	MaxTokens int `yaml:"max_tokens,omitempty"`
}

// SetDefaults applies default values.
func (c *Config) SetDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 1536
	}
}

// Planner turns goals into task plans.
type Planner struct {
	config Config
	llm    model.LLM
	logger *slog.Logger
}

// New creates a planner on top of the given model.
func New(config Config, llm model.LLM) (*Planner, error) {
	config.SetDefaults()
	if llm == nil {
		return nil, fmt.Errorf("planner requires a model")
	}
	return &Planner{
		config: config,
		llm:    llm,
		logger: slog.Default().With("component", "planner"),
	}, nil
}

// plannedTask is the wire shape the model is asked to produce.
type plannedTask struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Capability       string         `json:"capability"`
	Dependencies     []string       `json:"dependencies"`
	EstimatedMinutes int            `json:"estimated_minutes"`
	Parameters       map[string]any `json:"parameters"`
}

// PlanTasks decomposes the goal into capability-bound tasks.
//
// Malformed or unparseable model output degrades to an empty plan rather
// than an error; callers must treat an empty plan as "no actionable
// decomposition". Tasks referencing an unknown capability are dropped
// individually. Task dependencies are informational only; nothing schedules
// by them.
func (p *Planner) PlanTasks(ctx context.Context, goal string, planContext map[string]any) ([]agent.Task, error) {
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("planning requires a goal")
	}

	resp, err := p.llm.Generate(ctx, &model.Request{
		SystemPrompt: plannerSystemPrompt,
		UserPrompt:   p.buildPrompt(goal, planContext),
		Config:       model.Deterministic(p.config.MaxTokens),
	})
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	planned, ok := parsePlan(resp.Text)
	if !ok {
		p.logger.Warn("unparseable plan, degrading to empty", "goal", goal)
		return []agent.Task{}, nil
	}

	tasks := make([]agent.Task, 0, len(planned))
	for _, candidate := range planned {
		capability := agent.Capability(strings.ToLower(strings.TrimSpace(candidate.Capability)))
		if candidate.Name == "" || !capability.Valid() {
			p.logger.Warn("dropping planned task",
				"task", candidate.Name,
				"capability", candidate.Capability)
			continue
		}
		tasks = append(tasks, agent.Task{
			ID:                uuid.NewString(),
			Name:              candidate.Name,
			Description:       candidate.Description,
			Capability:        capability,
			Dependencies:      candidate.Dependencies,
			EstimatedDuration: time.Duration(candidate.EstimatedMinutes) * time.Minute,
			Parameters:        candidate.Parameters,
		})
	}

	p.logger.Debug("plan produced", "goal", goal, "tasks", len(tasks))
	return tasks, nil
}

func (p *Planner) buildPrompt(goal string, planContext map[string]any) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\n", goal)
	if len(planContext) > 0 {
		sb.WriteString("Context:\n")
		keys := make([]string, 0, len(planContext))
		for key := range planContext {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&sb, "  %s: %v\n", key, planContext[key])
		}
		sb.WriteString("\n")
	}
	sb.WriteString("Available capabilities:\n")
	for _, capability := range agent.Capabilities() {
		fmt.Fprintf(&sb, "  - %s\n", capability)
	}
	return sb.String()
}

// parsePlan extracts the JSON array from the model output, tolerating prose
// or code fences around it.
func parsePlan(text string) ([]plannedTask, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end <= start {
		return nil, false
	}

	var planned []plannedTask
	if err := json.Unmarshal([]byte(text[start:end+1]), &planned); err != nil {
		return nil, false
	}
	return planned, true
}
