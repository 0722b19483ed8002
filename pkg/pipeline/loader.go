package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"toolflow/pkg/tool"
)

// StepSpec is the YAML declaration of one pipeline step.
type StepSpec struct {
	Args     map[string]any `yaml:"args"`
	Fallback *StepSpec      `yaml:"fallback"`
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Category string         `yaml:"category"`
	Tool     string         `yaml:"tool"`
	SaveAs   string         `yaml:"save_as"`
	OnError  string         `yaml:"on_error"`
	Critical bool           `yaml:"critical"`
}

// Spec is a declarative pipeline definition.
type Spec struct {
	Name  string     `yaml:"name"`
	Steps []StepSpec `yaml:"steps"`
}

// Load reads and parses a pipeline definition file.
func Load(path string) (*Spec, []Step, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return Parse(data)
}

// Parse parses a YAML pipeline definition into executable steps. Each
// declared step invokes its tool through the client and stores the decoded
// payload in the bag under save_as.
func Parse(data []byte) (*Spec, []Step, error) {
	var spec Spec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return nil, nil, fmt.Errorf("failed to parse pipeline yaml: %w", err)
	}
	if len(spec.Steps) == 0 {
		return nil, nil, fmt.Errorf("pipeline %q declares no steps", spec.Name)
	}

	steps := make([]Step, 0, len(spec.Steps))
	for i := range spec.Steps {
		step, err := buildStep(&spec.Steps[i])
		if err != nil {
			return nil, nil, err
		}
		steps = append(steps, step)
	}
	return &spec, steps, nil
}

func buildStep(spec *StepSpec) (Step, error) {
	if spec.ID == "" {
		return Step{}, fmt.Errorf("pipeline step %q has no id", spec.Name)
	}
	if spec.Tool == "" {
		return Step{}, fmt.Errorf("pipeline step %q has no tool", spec.ID)
	}

	policy, err := parsePolicy(spec.OnError)
	if err != nil {
		return Step{}, fmt.Errorf("pipeline step %q: %w", spec.ID, err)
	}

	step := Step{
		ID:       spec.ID,
		Name:     spec.Name,
		Category: spec.Category,
		Critical: spec.Critical,
		Policy:   policy,
		Run:      runSpec(spec),
	}

	if spec.Fallback != nil {
		fallback, err := buildStep(spec.Fallback)
		if err != nil {
			return Step{}, err
		}
		step.Fallback = &fallback
	}
	return step, nil
}

func parsePolicy(value string) (PolicyKind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "continue":
		return PolicyContinue, nil
	case "abort":
		return PolicyAbort, nil
	case "fallback":
		return PolicyFallback, nil
	default:
		return PolicyContinue, fmt.Errorf("unknown error policy %q", value)
	}
}

// runSpec builds the RunFunc for a declared step: resolve argument
// references, invoke the tool, store the payload.
func runSpec(spec *StepSpec) RunFunc {
	toolName := spec.Tool
	saveAs := spec.SaveAs
	args := spec.Args

	return func(ctx context.Context, client *tool.Client, sc *StepContext) error {
		result, err := client.Invoke(ctx, toolName, resolveArgs(args, sc))
		if err != nil {
			return err
		}
		if saveAs != "" {
			sc.Bag[saveAs] = decodePayload(result.Payload)
		}
		return nil
	}
}

// resolveArgs substitutes "$entity" and "$bag.<key>" string values from
// the step context. All other values pass through untouched.
func resolveArgs(args map[string]any, sc *StepContext) map[string]any {
	if len(args) == 0 {
		return nil
	}
	resolved := make(map[string]any, len(args))
	for key, value := range args {
		str, ok := value.(string)
		if !ok {
			resolved[key] = value
			continue
		}
		switch {
		case str == "$entity":
			resolved[key] = sc.EntityID
		case strings.HasPrefix(str, "$bag."):
			resolved[key] = sc.Bag[strings.TrimPrefix(str, "$bag.")]
		default:
			resolved[key] = value
		}
	}
	return resolved
}

// decodePayload unmarshals a tool payload for bag storage, falling back to
// the raw string for non-JSON payloads.
func decodePayload(payload json.RawMessage) any {
	if len(payload) == 0 {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return string(payload)
	}
	return decoded
}
