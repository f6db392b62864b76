package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a deployment plan from a YAML file. The in-process
// planner hands plans over directly; the file form exists for the CLI.
func Load(path string) (DeploymentPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan file: %w", err)
	}

	var p DeploymentPlan
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse plan file %s: %w", path, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
