// Package team coordinates multi-agent collaborations: a concurrent fan-out
// of contribution calls over a shared workspace, a barrier join, and a single
// synthesis pass over the collected contributions.
package team

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/clinicore/clinicore/pkg/agent"
	"github.com/clinicore/clinicore/pkg/model"
)

// Collaboration is the outcome of one coordination call.
type Collaboration struct {
	// ID uniquely identifies the collaboration.
	ID string `json:"id"`

	// Goal the participants worked toward.
	Goal string `json:"goal"`

	// Contributions collected from the participants, sorted by agent id.
	Contributions []agent.Contribution `json:"contributions"`

	// Text is the synthesized result.
	Text string `json:"text"`

	// Confidence aggregates the per-contribution confidences, weighted by
	// contribution length. Falls back to 0.85 when no contribution carries
	// a usable confidence.
	Confidence float64 `json:"confidence"`

	// Failed lists capabilities whose contribution was dropped. Only
	// populated when failure tolerance is enabled.
	Failed []string `json:"failed,omitempty"`

	// StartedAt and CompletedAt bound the coordination call.
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
}

// CoordinatorConfig configures the collaboration coordinator.
type CoordinatorConfig struct {
	// PerAgentTimeout bounds each contribution call. Zero means no
	// per-agent timeout beyond the caller's context.
	PerAgentTimeout time.Duration `yaml:"per_agent_timeout,omitempty"`

	// TolerateFailures degrades a failed contribution to a missing one
	// instead of aborting the whole collaboration. Off by default: one
	// failure fails the call and no partial result is returned.
	TolerateFailures bool `yaml:"tolerate_failures,omitempty"`

	// SynthesisMaxTokens caps the synthesis generation.
	SynthesisMaxTokens int `yaml:"synthesis_max_tokens,omitempty"`
}

// SetDefaults applies default values.
func (c *CoordinatorConfig) SetDefaults() {
	if c.SynthesisMaxTokens == 0 {
		c.SynthesisMaxTokens = 2048
	}
}

// Coordinator fans a goal out to a set of agents and synthesizes their
// contributions into one result.
type Coordinator struct {
	config CoordinatorConfig
	agents *agent.Registry
	llm    model.LLM
	logger *slog.Logger
}

// NewCoordinator creates a coordinator over the given registry and model.
func NewCoordinator(config CoordinatorConfig, agents *agent.Registry, llm model.LLM) (*Coordinator, error) {
	config.SetDefaults()
	if agents == nil {
		return nil, fmt.Errorf("coordinator requires an agent registry")
	}
	if llm == nil {
		return nil, fmt.Errorf("coordinator requires a model for synthesis")
	}
	return &Coordinator{
		config: config,
		agents: agents,
		llm:    llm,
		logger: slog.Default().With("component", "coordinator"),
	}, nil
}

// Coordinate runs one collaboration over the agents bound to the given
// capabilities. All contribution calls run concurrently against one shared
// workspace and join at a single barrier before synthesis.
//
// Any unresolvable capability fails the call up front. With failure
// tolerance off (the default), the first failed contribution cancels the
// remaining ones and the whole call fails with no partial result.
func (c *Coordinator) Coordinate(ctx context.Context, capabilities []agent.Capability, goal string) (*Collaboration, error) {
	if len(capabilities) == 0 {
		return nil, fmt.Errorf("coordination requires at least one capability")
	}
	if strings.TrimSpace(goal) == "" {
		return nil, fmt.Errorf("coordination requires a goal")
	}

	participants := make([]agent.Agent, 0, len(capabilities))
	for _, capability := range capabilities {
		a, err := c.agents.Resolve(capability)
		if err != nil {
			return nil, err
		}
		participants = append(participants, a)
	}

	collaboration := &Collaboration{
		ID:        uuid.NewString(),
		Goal:      goal,
		StartedAt: time.Now(),
	}
	c.logger.Info("collaboration started",
		"collaboration_id", collaboration.ID,
		"participants", len(participants))

	workspace := agent.NewWorkspace()
	contributions := make([]*agent.Contribution, len(participants))
	failures := make([]string, len(participants))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, participant := range participants {
		group.Go(func() error {
			callCtx := groupCtx
			if c.config.PerAgentTimeout > 0 {
				var cancel context.CancelFunc
				callCtx, cancel = context.WithTimeout(groupCtx, c.config.PerAgentTimeout)
				defer cancel()
			}

			contribution, err := participant.ContributeToCollaboration(callCtx, goal, workspace)
			if err != nil {
				if c.config.TolerateFailures {
					c.logger.Warn("contribution dropped",
						"collaboration_id", collaboration.ID,
						"agent", participant.ID(),
						"error", err)
					failures[i] = string(participant.Capability())
					return nil
				}
				return fmt.Errorf("agent %s: %w", participant.ID(), err)
			}
			contributions[i] = contribution
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("collaboration %s failed: %w", collaboration.ID, err)
	}

	for i, contribution := range contributions {
		if contribution != nil {
			collaboration.Contributions = append(collaboration.Contributions, *contribution)
		} else if failures[i] != "" {
			collaboration.Failed = append(collaboration.Failed, failures[i])
		}
	}
	sort.Slice(collaboration.Contributions, func(i, j int) bool {
		return collaboration.Contributions[i].AgentID < collaboration.Contributions[j].AgentID
	})
	if len(collaboration.Contributions) == 0 {
		return nil, fmt.Errorf("collaboration %s produced no contributions", collaboration.ID)
	}

	text, err := c.synthesize(ctx, goal, collaboration.Contributions)
	if err != nil {
		return nil, fmt.Errorf("collaboration %s synthesis failed: %w", collaboration.ID, err)
	}
	collaboration.Text = text
	collaboration.Confidence = aggregateConfidence(collaboration.Contributions)
	collaboration.CompletedAt = time.Now()

	c.logger.Info("collaboration finished",
		"collaboration_id", collaboration.ID,
		"contributions", len(collaboration.Contributions),
		"dropped", len(collaboration.Failed),
		"confidence", collaboration.Confidence)
	return collaboration, nil
}

func (c *Coordinator) synthesize(ctx context.Context, goal string, contributions []agent.Contribution) (string, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Goal: %s\n\nContributions:\n\n", goal)
	for _, contribution := range contributions {
		fmt.Fprintf(&sb, "[%s]\n%s\n\n", contribution.AgentID, contribution.Text)
	}
	sb.WriteString("Synthesize these contributions into one coherent result addressing the goal.")

	resp, err := c.llm.Generate(ctx, &model.Request{
		SystemPrompt: "You merge specialist contributions into a single, consistent plan. Preserve every concrete commitment; resolve conflicts explicitly.",
		UserPrompt:   sb.String(),
		Config:       model.Deterministic(c.config.SynthesisMaxTokens),
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// aggregateConfidence is the contribution-length-weighted mean of the
// per-contribution confidences. Contributions reporting no confidence are
// excluded; if none report one, the fixed 0.85 placeholder applies.
func aggregateConfidence(contributions []agent.Contribution) float64 {
	var weighted, totalWeight float64
	for _, contribution := range contributions {
		if contribution.Confidence <= 0 {
			continue
		}
		weight := float64(len(contribution.Text))
		if weight == 0 {
			weight = 1
		}
		weighted += contribution.Confidence * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 0.85
	}
	return weighted / totalWeight
}
