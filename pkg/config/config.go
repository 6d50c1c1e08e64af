// Package config defines the top-level YAML configuration and its loader.
// Component packages own their own config structs; this package composes
// them, applies defaults and validates the whole tree once at startup.
package config

import (
	"fmt"

	"github.com/clinicore/clinicore/pkg/agent"
	"github.com/clinicore/clinicore/pkg/embedder"
	"github.com/clinicore/clinicore/pkg/knowledge"
	"github.com/clinicore/clinicore/pkg/model"
	"github.com/clinicore/clinicore/pkg/planner"
	"github.com/clinicore/clinicore/pkg/rag"
	"github.com/clinicore/clinicore/pkg/team"
	"github.com/clinicore/clinicore/pkg/vector"
	"github.com/clinicore/clinicore/pkg/workflow"
)

// Config is the full runtime configuration.
type Config struct {
	// Model selects the generation provider.
	Model model.Config `yaml:"model"`

	// Embedder selects the embedding provider.
	Embedder embedder.Config `yaml:"embedder"`

	// Vector optionally backs the retrieval index with a vector database.
	// Absent means the in-memory index.
	Vector *vector.ProviderConfig `yaml:"vector,omitempty"`

	// Knowledge configures the knowledge store backend.
	Knowledge KnowledgeConfig `yaml:"knowledge,omitempty"`

	// Workflow configures the engine and optional run checkpointing.
	Workflow WorkflowConfig `yaml:"workflow,omitempty"`

	// Team configures the collaboration coordinator.
	Team team.CoordinatorConfig `yaml:"team,omitempty"`

	// Planner configures the task planner.
	Planner planner.Config `yaml:"planner,omitempty"`

	// RAG configures the query service.
	RAG RAGConfig `yaml:"rag,omitempty"`

	// Agents overrides the default one-agent-per-capability set.
	Agents []agent.LLMAgentConfig `yaml:"agents,omitempty"`
}

// KnowledgeConfig selects the knowledge store backend. An empty store
// driver selects the in-memory store.
type KnowledgeConfig struct {
	Store knowledge.SQLStoreConfig `yaml:"store,omitempty"`
}

// WorkflowConfig couples the engine policy with optional checkpointing.
// An empty checkpoint driver disables run persistence.
type WorkflowConfig struct {
	Engine     workflow.EngineConfig          `yaml:"engine,omitempty"`
	Checkpoint workflow.SQLCheckpointerConfig `yaml:"checkpoint,omitempty"`
}

// RAGConfig couples the query pipeline with its optional external helpers.
type RAGConfig struct {
	Query rag.Config `yaml:"query,omitempty"`

	// GuidelineSource configures the external guideline API; absent means
	// local guidelines only.
	GuidelineSource *rag.HTTPGuidelineSourceConfig `yaml:"guideline_source,omitempty"`

	// TranslateAnswers enables model-backed answer translation.
	TranslateAnswers bool `yaml:"translate_answers,omitempty"`
}

// SetDefaults applies defaults across the whole tree. When no agents are
// configured, one agent per capability is defaulted so every built-in
// workflow template is executable.
func (c *Config) SetDefaults() {
	c.Model.SetDefaults()
	c.Embedder.SetDefaults()
	if c.Vector != nil {
		c.Vector.SetDefaults()
	}
	c.Workflow.Engine.SetDefaults()
	c.Team.SetDefaults()
	c.Planner.SetDefaults()
	c.RAG.Query.SetDefaults()
	if c.RAG.GuidelineSource != nil {
		c.RAG.GuidelineSource.SetDefaults()
	}

	if len(c.Agents) == 0 {
		for _, capability := range agent.Capabilities() {
			c.Agents = append(c.Agents, agent.LLMAgentConfig{Capability: capability})
		}
	}
	for i := range c.Agents {
		c.Agents[i].SetDefaults()
	}
}

// Validate checks the whole tree.
func (c *Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return fmt.Errorf("model: %w", err)
	}
	if err := c.Embedder.Validate(); err != nil {
		return fmt.Errorf("embedder: %w", err)
	}
	if c.Vector != nil {
		if err := c.Vector.Validate(); err != nil {
			return fmt.Errorf("vector: %w", err)
		}
	}
	if err := c.Workflow.Engine.Validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if c.RAG.GuidelineSource != nil {
		if err := c.RAG.GuidelineSource.Validate(); err != nil {
			return fmt.Errorf("rag guideline source: %w", err)
		}
	}
	for i := range c.Agents {
		if err := c.Agents[i].Validate(); err != nil {
			return fmt.Errorf("agent %d: %w", i, err)
		}
	}
	return nil
}
