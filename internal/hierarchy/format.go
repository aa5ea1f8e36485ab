package hierarchy

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pegodk/azpm/internal/template"
	"github.com/pegodk/azpm/internal/workitem"
)

// FormatTreeText renders a tree as readable text lines, depth-first. Each
// level indents two spaces; non-root nodes get a connector (└── for the last
// sibling, ├── otherwise). Extras that are present (state, story points,
// estimate, iteration) follow the title in parentheses.
func FormatTreeText(tree []*Node, indent int) []string {
	var lines []string
	for i, node := range tree {
		prefix := strings.Repeat("  ", indent)
		connector := ""
		if indent > 0 {
			if i == len(tree)-1 {
				connector = "└── "
			} else {
				connector = "├── "
			}
		}

		label := fmt.Sprintf("%s: %s", node.Type, node.Title)
		var extras []string
		if node.State != "" {
			extras = append(extras, node.State)
		}
		if node.StoryPoints != nil && *node.StoryPoints != 0 {
			extras = append(extras, "SP:"+formatNum(*node.StoryPoints))
		}
		if node.Estimate != nil && *node.Estimate != 0 {
			extras = append(extras, "Est:"+formatNum(*node.Estimate)+"h")
		}
		if node.IterationPath != "" {
			extras = append(extras, "Iteration:"+node.IterationPath)
		}
		if len(extras) > 0 {
			label += fmt.Sprintf("  (%s)", strings.Join(extras, ", "))
		}
		lines = append(lines, prefix+connector+label)

		if len(node.Children) > 0 {
			lines = append(lines, FormatTreeText(node.Children, indent+1)...)
		}
	}
	return lines
}

// ToDocument projects a tree into the template document shape, carrying only
// the fields valid for each work-item type: epics and features never get
// story points or estimates, stories add story_points and cleaned acceptance
// criteria, tasks add estimate. Empty fields are omitted so the YAML stays
// clean, and child collections only admit children of the expected type.
func ToDocument(tree []*Node) *template.Document {
	doc := &template.Document{}
	for _, node := range tree {
		if node.Type == workitem.TypeEpic {
			doc.Epics = append(doc.Epics, epicFromNode(node))
		}
	}
	return doc
}

func epicFromNode(node *Node) *template.Epic {
	epic := &template.Epic{
		Title:         node.Title,
		ID:            node.ID,
		State:         node.State,
		Description:   CleanHTML(node.Description),
		IterationPath: node.IterationPath,
	}
	for _, child := range node.Children {
		if child.Type == workitem.TypeFeature {
			epic.Features = append(epic.Features, featureFromNode(child))
		}
	}
	return epic
}

func featureFromNode(node *Node) *template.Feature {
	feat := &template.Feature{
		Title:         node.Title,
		ID:            node.ID,
		State:         node.State,
		Description:   CleanHTML(node.Description),
		IterationPath: node.IterationPath,
	}
	for _, child := range node.Children {
		if child.Type == workitem.TypeStory {
			feat.Stories = append(feat.Stories, storyFromNode(child))
		}
	}
	return feat
}

func storyFromNode(node *Node) *template.Story {
	story := &template.Story{
		Title:              node.Title,
		ID:                 node.ID,
		State:              node.State,
		Description:        CleanHTML(node.Description),
		AcceptanceCriteria: CleanHTML(node.AcceptanceCriteria),
		StoryPoints:        node.StoryPoints,
		IterationPath:      node.IterationPath,
	}
	for _, child := range node.Children {
		if child.Type == workitem.TypeTask {
			story.Tasks = append(story.Tasks, taskFromNode(child))
		}
	}
	return story
}

func taskFromNode(node *Node) *template.Task {
	return &template.Task{
		Title:         node.Title,
		ID:            node.ID,
		State:         node.State,
		Description:   CleanHTML(node.Description),
		Estimate:      node.Estimate,
		IterationPath: node.IterationPath,
	}
}

var (
	divOpen  = regexp.MustCompile(`<div>`)
	divClose = regexp.MustCompile(`</div>`)
	brTag    = regexp.MustCompile(`<br\s*/?>`)
	anyTag   = regexp.MustCompile(`<[^>]+>`)
)

// CleanHTML strips the basic HTML markup Azure DevOps puts in rich-text
// fields: <div> opens and <br> become newlines, every other tag is removed,
// and the result is trimmed.
func CleanHTML(text string) string {
	if text == "" {
		return ""
	}
	text = divOpen.ReplaceAllString(text, "\n")
	text = divClose.ReplaceAllString(text, "")
	text = brTag.ReplaceAllString(text, "\n")
	text = anyTag.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// formatNum renders integral floats without a trailing ".0".
func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
