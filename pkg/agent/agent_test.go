package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicore/clinicore/pkg/model"
)

// stubLLM returns canned text or a canned error.
type stubLLM struct {
	text string
	err  error

	mu      sync.Mutex
	prompts []string
}

func (s *stubLLM) Name() string             { return "stub" }
func (s *stubLLM) Provider() model.Provider { return model.ProviderUnknown }
func (s *stubLLM) Close() error             { return nil }

func (s *stubLLM) Generate(_ context.Context, req *model.Request) (*model.Response, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, req.UserPrompt)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return &model.Response{Text: s.text}, nil
}

func newTestAgent(t *testing.T, capability Capability, llm model.LLM) *LLMAgent {
	t.Helper()
	a, err := NewLLMAgent(LLMAgentConfig{Capability: capability}, llm)
	require.NoError(t, err)
	return a
}

func TestNewLLMAgentValidation(t *testing.T) {
	_, err := NewLLMAgent(LLMAgentConfig{Capability: "surgery"}, &stubLLM{})
	assert.Error(t, err)

	_, err = NewLLMAgent(LLMAgentConfig{Capability: CapabilityTriage}, nil)
	assert.Error(t, err)

	a, err := NewLLMAgent(LLMAgentConfig{Capability: CapabilityTriage}, &stubLLM{})
	require.NoError(t, err)
	assert.Equal(t, "triage", a.ID())
	assert.Equal(t, CapabilityTriage, a.Capability())
}

func TestExecuteStepSuccess(t *testing.T) {
	llm := &stubLLM{text: "slot confirmed for Tuesday 10:00"}
	a := newTestAgent(t, CapabilityScheduling, llm)

	result, err := a.ExecuteStep(context.Background(), Step{
		Name:       "check_availability",
		Capability: CapabilityScheduling,
		Required:   true,
		Parameters: map[string]any{"provider": "dr_chen"},
	}, map[string]any{"patient": "p-100"})
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "check_availability", result.StepName)
	assert.Equal(t, "slot confirmed for Tuesday 10:00", result.Output["check_availability_result"])
	assert.Empty(t, result.Error)

	// Step parameters and accumulated context both reach the prompt.
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "dr_chen")
	assert.Contains(t, llm.prompts[0], "p-100")
}

func TestExecuteStepFailureIsData(t *testing.T) {
	a := newTestAgent(t, CapabilityTriage, &stubLLM{err: errors.New("model unavailable")})

	result, err := a.ExecuteStep(context.Background(), Step{Name: "assess_urgency"}, nil)
	require.NoError(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "model unavailable")
	assert.Nil(t, result.Output)
}

func TestContributeToCollaboration(t *testing.T) {
	a := newTestAgent(t, CapabilityDocumentation, &stubLLM{text: "draft discharge summary attached"})
	workspace := NewWorkspace()
	workspace.Put("triage", "urgency: routine")

	contribution, err := a.ContributeToCollaboration(context.Background(), "prepare discharge", workspace)
	require.NoError(t, err)

	assert.Equal(t, "documentation", contribution.AgentID)
	assert.Equal(t, "draft discharge summary attached", contribution.Text)
	assert.InDelta(t, 0.75, contribution.Confidence, 1e-9)
	assert.False(t, contribution.Timestamp.IsZero())

	// The contribution lands in the shared workspace.
	text, ok := workspace.Get("documentation")
	require.True(t, ok)
	assert.Equal(t, "draft discharge summary attached", text)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()
	triage := newTestAgent(t, CapabilityTriage, &stubLLM{text: "ok"})
	require.NoError(t, reg.Register(triage))

	resolved, err := reg.Resolve(CapabilityTriage)
	require.NoError(t, err)
	assert.Equal(t, "triage", resolved.ID())

	_, err = reg.Resolve(CapabilityScheduling)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, CapabilityScheduling, notFound.Capability)
}

func TestRegistryReplaceBinding(t *testing.T) {
	reg := NewRegistry()
	first, err := NewLLMAgent(LLMAgentConfig{ID: "triage-a", Capability: CapabilityTriage}, &stubLLM{})
	require.NoError(t, err)
	second, err := NewLLMAgent(LLMAgentConfig{ID: "triage-b", Capability: CapabilityTriage}, &stubLLM{})
	require.NoError(t, err)

	require.NoError(t, reg.Register(first))
	require.NoError(t, reg.Register(second))

	resolved, err := reg.Resolve(CapabilityTriage)
	require.NoError(t, err)
	assert.Equal(t, "triage-b", resolved.ID())
	assert.Equal(t, 1, reg.Count())
}

func TestValidateBindings(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newTestAgent(t, CapabilityTriage, &stubLLM{})))

	assert.NoError(t, reg.ValidateBindings([]Capability{CapabilityTriage}))

	err := reg.ValidateBindings([]Capability{CapabilityTriage, CapabilityClinicalDecision})
	require.Error(t, err)
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestRegistryExecuteTaskUnboundCapability(t *testing.T) {
	reg := NewRegistry()

	result := reg.ExecuteTask(context.Background(), Task{
		ID:         "t-1",
		Name:       "verify_insurance",
		Capability: CapabilityAdministrative,
	}, nil)

	assert.False(t, result.Success)
	assert.Equal(t, "verify_insurance", result.StepName)
	assert.Contains(t, result.Error, "administrative")
}

func TestRegistryExecuteTaskSuccess(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(newTestAgent(t, CapabilityAdministrative, &stubLLM{text: "coverage verified"})))

	result := reg.ExecuteTask(context.Background(), Task{
		Name:       "verify_insurance",
		Capability: CapabilityAdministrative,
	}, nil)

	assert.True(t, result.Success)
	assert.Equal(t, "coverage verified", result.Output["verify_insurance_result"])
}

func TestWorkspaceConcurrentWrites(t *testing.T) {
	workspace := NewWorkspace()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			workspace.Put(fmt.Sprintf("agent-%d", n), "contribution")
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, workspace.Len())
	assert.Len(t, workspace.Keys(), 20)
}
