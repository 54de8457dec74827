package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/aescanero/assetforge/pkg/domain"
)

func succeed(context.Context) (bool, error) { return true, nil }

func fail(context.Context) (bool, error) { return false, errors.New("boom") }

// failTimes returns an action that fails n times and then succeeds, and a
// pointer to the number of calls made
func failTimes(n int) (domain.Action, *int) {
	var mu sync.Mutex
	calls := 0
	return func(context.Context) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls <= n {
			return false, errors.New("transient failure")
		}
		return true, nil
	}, &calls
}

func step(name string, deps ...string) domain.StepDefinition {
	def := domain.StepDefinition{
		Name:        domain.StepName(name),
		Description: "step " + name,
		Action:      succeed,
	}
	for _, d := range deps {
		def.Dependencies = append(def.Dependencies, domain.StepName(d))
	}
	return def
}

func newTestPipeline(t *testing.T, settings Settings) *Pipeline {
	t.Helper()
	return NewPipeline(nil, nil, nil, zaptest.NewLogger(t), settings)
}

func statuses(p *Pipeline) map[domain.StepName]domain.StepStatus {
	out := make(map[domain.StepName]domain.StepStatus)
	for name, st := range p.GetState() {
		out[name] = st.Status
	}
	return out
}
