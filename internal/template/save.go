package template

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// numberedLine matches multi-line strings that carry a numbered list.
var numberedLine = regexp.MustCompile(`(?m)^\d+\.`)

// SaveYAML writes the document to a file, creating parent directories as
// needed, and returns the path. The template metadata block is never
// persisted. Multi-line strings with bullet markers or numbered lists are
// written as literal block scalars so line breaks survive exactly; other
// multi-line strings fold.
func SaveYAML(doc *Document, path string) (string, error) {
	root := mappingNode()
	epicsSeq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, epic := range doc.Epics {
		epicsSeq.Content = append(epicsSeq.Content, epicNode(epic))
	}
	setKey(root, "epics", epicsSeq)

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("failed to encode YAML: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

func epicNode(epic *Epic) *yaml.Node {
	node := mappingNode()
	setStr(node, "title", epic.Title)
	setInt(node, "id", epic.ID)
	setStrOpt(node, "state", epic.State)
	setStrOpt(node, "description", epic.Description)
	setStrOpt(node, "iteration_path", epic.IterationPath)
	if len(epic.Features) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, feat := range epic.Features {
			seq.Content = append(seq.Content, featureNode(feat))
		}
		setKey(node, "features", seq)
	}
	return node
}

func featureNode(feat *Feature) *yaml.Node {
	node := mappingNode()
	setStr(node, "title", feat.Title)
	setInt(node, "id", feat.ID)
	setStrOpt(node, "state", feat.State)
	setStrOpt(node, "description", feat.Description)
	setStrOpt(node, "iteration_path", feat.IterationPath)
	setBool(node, "optional", feat.Optional)
	setBool(node, "parameterized", feat.Parameterized)
	setStrSeq(node, "default_instances", feat.DefaultInstances)
	if len(feat.Stories) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, story := range feat.Stories {
			seq.Content = append(seq.Content, storyNode(story))
		}
		setKey(node, "stories", seq)
	}
	return node
}

func storyNode(story *Story) *yaml.Node {
	node := mappingNode()
	setStr(node, "title", story.Title)
	setInt(node, "id", story.ID)
	setStrOpt(node, "state", story.State)
	setStrOpt(node, "description", story.Description)
	setStrOpt(node, "acceptance_criteria", story.AcceptanceCriteria)
	if story.StoryPoints != nil {
		setKey(node, "story_points", numberScalar(*story.StoryPoints))
	}
	setStrOpt(node, "iteration_path", story.IterationPath)
	setBool(node, "parameterized", story.Parameterized)
	setStrOpt(node, "instance_key", story.InstanceKey)
	setStrSeq(node, "default_instances", story.DefaultInstances)
	if len(story.Tasks) > 0 {
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, task := range story.Tasks {
			seq.Content = append(seq.Content, taskNode(task))
		}
		setKey(node, "tasks", seq)
	}
	return node
}

func taskNode(task *Task) *yaml.Node {
	node := mappingNode()
	setStr(node, "title", task.Title)
	setInt(node, "id", task.ID)
	setStrOpt(node, "state", task.State)
	setStrOpt(node, "description", task.Description)
	if task.Estimate != nil {
		setKey(node, "estimate", numberScalar(*task.Estimate))
	}
	setStrOpt(node, "iteration_path", task.IterationPath)
	return node
}

// Node construction helpers.

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode}
}

// setKey appends a key/value pair to a mapping node, preserving insertion order.
func setKey(m *yaml.Node, key string, value *yaml.Node) {
	m.Content = append(m.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// stringScalar builds a string scalar with the serialization style matching
// its content: literal block for bulleted or numbered multi-line text,
// folded block for other multi-line text, plain otherwise.
func stringScalar(s string) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	if strings.Contains(s, "\n") {
		if strings.Contains(s, "•") || numberedLine.MatchString(s) {
			node.Style = yaml.LiteralStyle
		} else {
			node.Style = yaml.FoldedStyle
		}
	}
	return node
}

// numberScalar renders integral floats without a trailing ".0".
func numberScalar(v float64) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.FormatFloat(v, 'g', -1, 64)}
}

func setStr(m *yaml.Node, key, val string) {
	setKey(m, key, stringScalar(val))
}

func setStrOpt(m *yaml.Node, key, val string) {
	if val != "" {
		setKey(m, key, stringScalar(val))
	}
}

func setInt(m *yaml.Node, key string, val int) {
	if val != 0 {
		setKey(m, key, &yaml.Node{Kind: yaml.ScalarNode, Value: strconv.Itoa(val)})
	}
}

func setBool(m *yaml.Node, key string, val bool) {
	if val {
		setKey(m, key, &yaml.Node{Kind: yaml.ScalarNode, Value: "true"})
	}
}

func setStrSeq(m *yaml.Node, key string, vals []string) {
	if len(vals) == 0 {
		return
	}
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, v := range vals {
		seq.Content = append(seq.Content, stringScalar(v))
	}
	setKey(m, key, seq)
}
