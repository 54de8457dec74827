// Package policy loads per-step overrides for retry behaviour and step
// selection from a YAML file.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aescanero/assetforge/pkg/domain"
)

const SchemaV1 = "assetforge.steps.v1"

// Policy is the decoded policy file
type Policy struct {
	Schema string                `yaml:"schema"`
	Steps  map[string]StepPolicy `yaml:"steps"`
}

// StepPolicy overrides one step. Unset fields keep the step's own values.
type StepPolicy struct {
	Retryable  *bool `yaml:"retryable,omitempty"`
	MaxRetries *int  `yaml:"max_retries,omitempty"`
	Disabled   bool  `yaml:"disabled,omitempty"`
}

// Load reads and validates a policy file
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a policy document. Unknown keys are rejected.
func Parse(input []byte) (*Policy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(input))
	dec.KnownFields(true)

	var p Policy
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode policy: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the document without reference to any registered steps
func (p *Policy) Validate() error {
	if strings.TrimSpace(p.Schema) != SchemaV1 {
		return fmt.Errorf("policy.schema must be %q", SchemaV1)
	}
	for name, sp := range p.Steps {
		if strings.TrimSpace(name) == "" {
			return errors.New("policy.steps contains an empty step name")
		}
		if sp.MaxRetries != nil && *sp.MaxRetries < 0 {
			return fmt.Errorf("policy.steps.%s.max_retries must not be negative", name)
		}
	}
	return nil
}

// Apply returns defs with overrides applied and disabled steps removed.
// Naming a step that is not in defs is an error, so typos do not pass silently.
func (p *Policy) Apply(defs []domain.StepDefinition) ([]domain.StepDefinition, error) {
	if p == nil {
		return defs, nil
	}

	known := make(map[domain.StepName]bool, len(defs))
	for _, def := range defs {
		known[def.Name] = true
	}
	for name := range p.Steps {
		if !known[domain.StepName(name)] {
			return nil, fmt.Errorf("policy.steps.%s: no such step", name)
		}
	}

	out := make([]domain.StepDefinition, 0, len(defs))
	for _, def := range defs {
		sp, ok := p.Steps[def.Name.String()]
		if !ok {
			out = append(out, def)
			continue
		}
		if sp.Disabled {
			continue
		}

		def = def.Clone()
		if sp.Retryable != nil {
			def.Retryable = *sp.Retryable
		}
		if sp.MaxRetries != nil {
			def.MaxRetries = *sp.MaxRetries
		}
		out = append(out, def)
	}
	return out, nil
}

// Disabled lists the steps the policy removes
func (p *Policy) Disabled() []string {
	if p == nil {
		return nil
	}
	var names []string
	for name, sp := range p.Steps {
		if sp.Disabled {
			names = append(names, name)
		}
	}
	return names
}
