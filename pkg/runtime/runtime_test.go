package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/agent"
	"github.com/clinicore/clinicore/pkg/config"
	"github.com/clinicore/clinicore/pkg/knowledge"
	"github.com/clinicore/clinicore/pkg/workflow"
)

func ollamaConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load([]byte(`
model:
  provider: ollama
embedder:
  provider: ollama
`))
	require.NoError(t, err)
	return cfg
}

func TestNewWiresDefaultRuntime(t *testing.T) {
	r, err := New(ollamaConfig(t))
	require.NoError(t, err)
	defer r.Close()

	assert.NotNil(t, r.LLM)
	assert.NotNil(t, r.Embedder)
	assert.IsType(t, &knowledge.MemoryIndex{}, r.Index)
	assert.IsType(t, &knowledge.MemoryStore{}, r.Store)
	assert.NotNil(t, r.Engine)
	assert.NotNil(t, r.Coordinator)
	assert.NotNil(t, r.Planner)
	assert.NotNil(t, r.RAG)

	// Default agents cover every capability so all templates are bound.
	assert.Equal(t, len(agent.Capabilities()), r.Agents.Count())
	assert.Len(t, r.Engine.Templates(), 5)
}

func TestNewFailsWhenTemplateCapabilityUnbound(t *testing.T) {
	cfg := ollamaConfig(t)
	cfg.Agents = []agent.LLMAgentConfig{{ID: "triage", Capability: agent.CapabilityTriage}}

	_, err := New(cfg)
	require.Error(t, err)
	var notFound *agent.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestNewWiresSQLBackends(t *testing.T) {
	cfg := ollamaConfig(t)
	cfg.Knowledge.Store = knowledge.SQLStoreConfig{Driver: "sqlite3", DSN: ":memory:"}
	cfg.Workflow.Checkpoint = workflow.SQLCheckpointerConfig{Driver: "sqlite3", DSN: ":memory:"}

	r, err := New(cfg)
	require.NoError(t, err)
	defer r.Close()

	assert.IsType(t, &knowledge.SQLStore{}, r.Store)
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	r, err := New(ollamaConfig(t))
	require.NoError(t, err)

	assert.NoError(t, r.Close())
	assert.NoError(t, r.Close())
}
