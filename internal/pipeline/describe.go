package pipeline

import (
	"gopkg.in/yaml.v3"
)

// Plan is a serializable description of a graph.
type Plan struct {
	Pipeline string     `yaml:"pipeline" json:"pipeline"`
	Levels   [][]string `yaml:"levels" json:"levels"`
	Tasks    []PlanTask `yaml:"tasks" json:"tasks"`
}

// PlanTask describes one task of a Plan.
type PlanTask struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	DependsOn   []string `yaml:"dependsOn,omitempty" json:"dependsOn,omitempty"`
	Cleanup     bool     `yaml:"cleanup,omitempty" json:"cleanup,omitempty"`
}

// Describe returns the execution plan of g in topological order.
func (g *Graph) Describe() (Plan, error) {
	levels, err := g.Levels()
	if err != nil {
		return Plan{}, err
	}
	p := Plan{Pipeline: g.name, Levels: levels}
	for _, level := range levels {
		for _, name := range level {
			t := g.tasks[name]
			p.Tasks = append(p.Tasks, PlanTask{
				Name:        t.Name,
				Description: t.Description,
				DependsOn:   t.DependsOn,
				Cleanup:     t.Cleanup != nil,
			})
		}
	}
	return p, nil
}

// YAML renders the plan as YAML.
func (p Plan) YAML() ([]byte, error) {
	return yaml.Marshal(p)
}
