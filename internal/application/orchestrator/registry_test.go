package orchestrator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aescanero/assetforge/pkg/domain"
)

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("extract")))

	err := r.Register(step("extract"))
	var dup *DuplicateStepError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, domain.StepName("extract"), dup.Step)
	assert.ErrorIs(t, err, ErrConfiguration)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		def  domain.StepDefinition
	}{
		{"empty name", domain.StepDefinition{Name: "  ", Action: succeed}},
		{"nil action", domain.StepDefinition{Name: "a"}},
		{"negative retries", domain.StepDefinition{Name: "a", MaxRetries: -1, Action: succeed}},
		{"empty dependency", domain.StepDefinition{Name: "a", Dependencies: []domain.StepName{""}, Action: succeed}},
		{"repeated dependency", domain.StepDefinition{Name: "a", Dependencies: []domain.StepName{"b", "b"}, Action: succeed}},
		{"blank dependency", domain.StepDefinition{Name: "a", Dependencies: []domain.StepName{"  "}, Action: succeed}},
		{"repeated after trimming", domain.StepDefinition{Name: "a", Dependencies: []domain.StepName{"b", " b "}, Action: succeed}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRegistry().Register(tt.def)
			var invalid *InvalidStepError
			require.ErrorAs(t, err, &invalid)
			assert.ErrorIs(t, err, ErrConfiguration)
		})
	}
}

func TestRegistryAllowsForwardReferences(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("package", "database")))
	require.NoError(t, r.Register(step("database")))

	assert.NoError(t, r.Validate())
}

func TestRegistryTrimsDependencyNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step(" extract ")))
	require.NoError(t, r.Register(step("images", " extract")))

	require.NoError(t, r.Validate())
	def, ok := r.Definition("images")
	require.True(t, ok)
	assert.Equal(t, []domain.StepName{"extract"}, def.Dependencies)
	assert.Equal(t, []domain.StepName{"images"}, r.Dependents("extract"))
}

func TestValidateReportsFirstUnknownDependency(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("a")))
	require.NoError(t, r.Register(step("b", "a", "missing")))
	require.NoError(t, r.Register(step("c", "other")))

	err := r.Validate()
	var unknown *UnknownDependencyError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, domain.StepName("b"), unknown.Step)
	assert.Equal(t, domain.StepName("missing"), unknown.Dependency)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestValidateDetectsCycle(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("a", "c")))
	require.NoError(t, r.Register(step("b", "a")))
	require.NoError(t, r.Register(step("c", "b")))
	require.NoError(t, r.Register(step("d")))

	err := r.Validate()
	var cyclic *CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	assert.ErrorIs(t, err, ErrConfiguration)

	require.NotEmpty(t, cyclic.Cycle)
	assert.Equal(t, cyclic.Step, cyclic.Cycle[0])
	assert.Equal(t, cyclic.Step, cyclic.Cycle[len(cyclic.Cycle)-1])
	assert.ElementsMatch(t, []domain.StepName{"a", "b", "c"}, cyclic.Cycle[:len(cyclic.Cycle)-1])
	assert.Contains(t, err.Error(), " -> ")
}

func TestValidateDetectsSelfDependency(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("a", "a")))

	err := r.Validate()
	var cyclic *CyclicDependencyError
	require.ErrorAs(t, err, &cyclic)
	assert.Equal(t, domain.StepName("a"), cyclic.Step)
	assert.Equal(t, []domain.StepName{"a", "a"}, cyclic.Cycle)
}

func TestValidateAcceptsDiamond(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("extract")))
	require.NoError(t, r.Register(step("images", "extract")))
	require.NoError(t, r.Register(step("database", "extract")))
	require.NoError(t, r.Register(step("package", "images", "database")))

	assert.NoError(t, r.Validate())
}

func TestDependentsInDeclarationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("extract")))
	require.NoError(t, r.Register(step("images", "extract")))
	require.NoError(t, r.Register(step("groups", "extract")))
	require.NoError(t, r.Register(step("database", "extract")))

	assert.Equal(t, []domain.StepName{"images", "groups", "database"}, r.Dependents("extract"))
	assert.Empty(t, r.Dependents("database"))
}

func TestTopologicalOrderBreaksTiesByDeclaration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("package", "images", "database")))
	require.NoError(t, r.Register(step("database", "extract")))
	require.NoError(t, r.Register(step("images", "extract")))
	require.NoError(t, r.Register(step("extract")))

	order, err := r.TopologicalOrder()
	require.NoError(t, err)
	assert.Equal(t, []domain.StepName{"extract", "database", "images", "package"}, order)
}

func TestTopologicalOrderFailsOnInvalidGraph(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(step("a", "b")))

	_, err := r.TopologicalOrder()
	assert.True(t, errors.Is(err, ErrConfiguration))
}

func TestDefinitionIsACopy(t *testing.T) {
	r := NewRegistry()
	def := step("b", "a")
	require.NoError(t, r.Register(def))

	def.Dependencies[0] = "mutated"
	got, ok := r.Definition("b")
	require.True(t, ok)
	assert.Equal(t, []domain.StepName{"a"}, got.Dependencies)

	got.Dependencies[0] = "mutated"
	again, _ := r.Definition("b")
	assert.Equal(t, []domain.StepName{"a"}, again.Dependencies)
}
