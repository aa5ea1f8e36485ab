// Package template loads, expands, validates, and serializes YAML project
// templates describing an epic → feature → story → task backlog.
//
// Templates may mark features and stories as parameterized: those nodes are
// duplicated once per named instance, with {{name}} placeholders substituted.
// The document shape is fixed; unrecognized YAML keys are dropped on load.
package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the root of a project template or generated backlog file.
// The template block carries authoring metadata and is never written back
// out by SaveYAML.
type Document struct {
	Epics    []*Epic        `yaml:"epics"`
	Template map[string]any `yaml:"template,omitempty"`
}

// Epic is the top level of the hierarchy.
type Epic struct {
	Title         string     `yaml:"title"`
	ID            int        `yaml:"id,omitempty"`
	State         string     `yaml:"state,omitempty"`
	Description   string     `yaml:"description,omitempty"`
	IterationPath string     `yaml:"iteration_path,omitempty"`
	Features      []*Feature `yaml:"features,omitempty"`
}

// Feature is an epic's child. Optional features may be excluded by keyword;
// parameterized features expand into one copy per default instance.
type Feature struct {
	Title         string   `yaml:"title"`
	ID            int      `yaml:"id,omitempty"`
	State         string   `yaml:"state,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	IterationPath string   `yaml:"iteration_path,omitempty"`
	Stories       []*Story `yaml:"stories,omitempty"`

	// Template-authoring metadata, stripped during expansion.
	Optional         bool     `yaml:"optional,omitempty"`
	Parameterized    bool     `yaml:"parameterized,omitempty"`
	DefaultInstances []string `yaml:"default_instances,omitempty"`
}

// Story is a feature's child. StoryPoints is a pointer so an explicit zero
// survives the round trip. InstanceKey matches override directives to a
// specific parameterized story when several coexist in one feature.
type Story struct {
	Title              string   `yaml:"title"`
	ID                 int      `yaml:"id,omitempty"`
	State              string   `yaml:"state,omitempty"`
	Description        string   `yaml:"description,omitempty"`
	AcceptanceCriteria string   `yaml:"acceptance_criteria,omitempty"`
	StoryPoints        *float64 `yaml:"story_points,omitempty"`
	IterationPath      string   `yaml:"iteration_path,omitempty"`
	Tasks              []*Task  `yaml:"tasks,omitempty"`

	// Template-authoring metadata, stripped during expansion.
	Parameterized    bool     `yaml:"parameterized,omitempty"`
	InstanceKey      string   `yaml:"instance_key,omitempty"`
	DefaultInstances []string `yaml:"default_instances,omitempty"`
}

// Task is the lowest level of the hierarchy. Estimate is effort in hours.
type Task struct {
	Title         string   `yaml:"title"`
	ID            int      `yaml:"id,omitempty"`
	State         string   `yaml:"state,omitempty"`
	Description   string   `yaml:"description,omitempty"`
	Estimate      *float64 `yaml:"estimate,omitempty"`
	IterationPath string   `yaml:"iteration_path,omitempty"`
}

// Load parses a YAML template file into a Document. No structural checks
// happen here; enforcement is Validate's job.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template file %s: %w", path, err)
	}
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template file %s: %w", path, err)
	}
	return &doc, nil
}
