// Package runtime assembles the configured components into one live system:
// model, embedder, index, store, agents, workflow engine, coordinator,
// planner and query service.
package runtime

import (
	"fmt"
	"log/slog"

	"github.com/clinicore/clinicore/pkg/agent"
	"github.com/clinicore/clinicore/pkg/config"
	"github.com/clinicore/clinicore/pkg/embedder"
	"github.com/clinicore/clinicore/pkg/knowledge"
	"github.com/clinicore/clinicore/pkg/model"
	"github.com/clinicore/clinicore/pkg/planner"
	"github.com/clinicore/clinicore/pkg/rag"
	"github.com/clinicore/clinicore/pkg/team"
	"github.com/clinicore/clinicore/pkg/vector"
	"github.com/clinicore/clinicore/pkg/workflow"
)

// Runtime holds the wired components. Construct with New, release with
// Close.
type Runtime struct {
	LLM         model.LLM
	Embedder    embedder.Embedder
	Index       knowledge.RetrievalIndex
	Store       knowledge.Store
	Agents      *agent.Registry
	Engine      *workflow.Engine
	Coordinator *team.Coordinator
	Planner     *planner.Planner
	RAG         *rag.Service

	closers []func() error
	logger  *slog.Logger
}

// New wires a runtime from validated configuration. Construction fails fast:
// a misconfigured component or an unbound template capability surfaces here,
// not at first use.
func New(cfg *config.Config) (*Runtime, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is required")
	}

	r := &Runtime{logger: slog.Default().With("component", "runtime")}

	llm, err := model.New(&cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model: %w", err)
	}
	r.LLM = llm
	r.closers = append(r.closers, llm.Close)

	emb, err := embedder.New(&cfg.Embedder)
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("embedder: %w", err)
	}
	r.Embedder = emb
	r.closers = append(r.closers, emb.Close)

	if err := r.wireKnowledge(cfg); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.wireAgents(cfg); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.wireServices(cfg); err != nil {
		r.Close()
		return nil, err
	}

	r.logger.Info("runtime assembled",
		"model", llm.Name(),
		"embedder", emb.Model(),
		"agents", r.Agents.Count())
	return r, nil
}

func (r *Runtime) wireKnowledge(cfg *config.Config) error {
	if cfg.Vector != nil {
		provider, err := vector.NewProvider(cfg.Vector)
		if err != nil {
			return fmt.Errorf("vector provider: %w", err)
		}
		r.closers = append(r.closers, provider.Close)

		index, err := knowledge.NewProviderIndex(provider, "knowledge")
		if err != nil {
			return fmt.Errorf("retrieval index: %w", err)
		}
		r.Index = index
	} else {
		r.Index = knowledge.NewMemoryIndex()
	}

	if cfg.Knowledge.Store.Driver != "" {
		store, err := knowledge.NewSQLStore(cfg.Knowledge.Store)
		if err != nil {
			return fmt.Errorf("knowledge store: %w", err)
		}
		r.Store = store
	} else {
		r.Store = knowledge.NewMemoryStore()
	}
	r.closers = append(r.closers, r.Store.Close)
	return nil
}

func (r *Runtime) wireAgents(cfg *config.Config) error {
	r.Agents = agent.NewRegistry()
	for _, agentConfig := range cfg.Agents {
		a, err := agent.NewLLMAgent(agentConfig, r.LLM)
		if err != nil {
			return fmt.Errorf("agent %q: %w", agentConfig.ID, err)
		}
		if err := r.Agents.Register(a); err != nil {
			return fmt.Errorf("agent %q: %w", agentConfig.ID, err)
		}
	}
	return nil
}

func (r *Runtime) wireServices(cfg *config.Config) error {
	var checkpointer workflow.Checkpointer
	if cfg.Workflow.Checkpoint.Driver != "" {
		sqlCheckpointer, err := workflow.NewSQLCheckpointer(cfg.Workflow.Checkpoint)
		if err != nil {
			return fmt.Errorf("checkpointer: %w", err)
		}
		r.closers = append(r.closers, sqlCheckpointer.Close)
		checkpointer = sqlCheckpointer
	}

	engine, err := workflow.NewEngine(cfg.Workflow.Engine, r.Agents, checkpointer)
	if err != nil {
		return fmt.Errorf("workflow engine: %w", err)
	}
	r.Engine = engine

	coordinator, err := team.NewCoordinator(cfg.Team, r.Agents, r.LLM)
	if err != nil {
		return fmt.Errorf("coordinator: %w", err)
	}
	r.Coordinator = coordinator

	taskPlanner, err := planner.New(cfg.Planner, r.LLM)
	if err != nil {
		return fmt.Errorf("planner: %w", err)
	}
	r.Planner = taskPlanner

	var source rag.GuidelineSource
	if cfg.RAG.GuidelineSource != nil {
		httpSource, err := rag.NewHTTPGuidelineSource(*cfg.RAG.GuidelineSource)
		if err != nil {
			return fmt.Errorf("guideline source: %w", err)
		}
		source = httpSource
	}

	var translator rag.Translator
	if cfg.RAG.TranslateAnswers {
		llmTranslator, err := rag.NewLLMTranslator(r.LLM)
		if err != nil {
			return fmt.Errorf("translator: %w", err)
		}
		translator = llmTranslator
	}

	service, err := rag.NewService(cfg.RAG.Query, r.Embedder, r.Index, r.Store, r.LLM, source, translator)
	if err != nil {
		return fmt.Errorf("rag service: %w", err)
	}
	r.RAG = service
	return nil
}

// Close releases all held resources in reverse construction order. The
// first error wins; later closers still run.
func (r *Runtime) Close() error {
	var firstErr error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	r.closers = nil
	return firstErr
}
